package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nexus/internal/domain"
)

const agentColumns = `id,name,role,capabilities_json,status,identity,zenon_address,current_task_id,last_heartbeat,created_at,last_active_at`

func scanAgent(s scanner) (domain.Agent, error) {
	var a domain.Agent
	var caps string
	var zenon sql.NullString
	var current sql.NullInt64
	if err := s.Scan(&a.ID, &a.Name, &a.Role, &caps, &a.Status, &a.Identity, &zenon, &current, &a.LastHeartbeat, &a.CreatedAt, &a.LastActiveAt); err != nil {
		return domain.Agent{}, notFound(err)
	}
	if err := json.Unmarshal([]byte(caps), &a.Capabilities); err != nil {
		return domain.Agent{}, fmt.Errorf("agent %s capabilities: %w", a.ID, err)
	}
	if a.Capabilities == nil {
		a.Capabilities = []string{}
	}
	a.ZenonAddress = zenon.String
	a.CurrentTaskID = int64Ptr(current)
	return a, nil
}

func capabilitiesJSON(caps []string) (string, error) {
	if caps == nil {
		caps = []string{}
	}
	data, err := json.Marshal(caps)
	return string(data), err
}

func (r Repo) InsertAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	caps, err := capabilitiesJSON(a.Capabilities)
	if err != nil {
		return err
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO agents(`+agentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Role, caps, a.Status, a.Identity, nullable(a.ZenonAddress), nullableInt64Ptr(a.CurrentTaskID),
		a.LastHeartbeat, a.CreatedAt, a.LastActiveAt)
	return err
}

// UpdateAgent writes back the full row. The id is the lookup key, so renames go
// through ReplaceAgentID.
func (r Repo) UpdateAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	caps, err := capabilitiesJSON(a.Capabilities)
	if err != nil {
		return err
	}
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE agents SET name=?, role=?, capabilities_json=?, status=?, identity=?, zenon_address=?, current_task_id=?, last_heartbeat=?, last_active_at=? WHERE id=?`,
		a.Name, a.Role, caps, a.Status, a.Identity, nullable(a.ZenonAddress), nullableInt64Ptr(a.CurrentTaskID),
		a.LastHeartbeat, a.LastActiveAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAgentID renames an agent and carries its assignments and votes along
// so a rename cannot be used to vote twice.
func (r Repo) ReplaceAgentID(ctx context.Context, tx *sql.Tx, oldID, newID string) error {
	q := r.conn(tx)
	for _, stmt := range []string{
		`UPDATE agents SET id=? WHERE id=?`,
		`UPDATE tasks SET assigned_to=? WHERE assigned_to=?`,
		`UPDATE votes SET agent_id=? WHERE agent_id=?`,
		`UPDATE discovered_tasks SET discovered_by=? WHERE discovered_by=?`,
	} {
		if _, err := q.ExecContext(ctx, stmt, newID, oldID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetAgent(ctx context.Context, tx *sql.Tx, id string) (domain.Agent, error) {
	return scanAgent(r.conn(tx).QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=?`, id))
}

func (r Repo) GetAgentByIdentity(ctx context.Context, tx *sql.Tx, identity string) (domain.Agent, error) {
	return scanAgent(r.conn(tx).QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE identity=?`, identity))
}

type AgentFilters struct {
	Status     string
	Capability string
}

func (r Repo) ListAgents(ctx context.Context, tx *sql.Tx, f AgentFilters) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	if f.Capability != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(agents.capabilities_json) WHERE json_each.value=?)`
		args = append(args, f.Capability)
	}
	query += ` ORDER BY id`
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountActiveAgents counts agents whose last activity is strictly after since.
// Timestamps are fixed-width RFC3339 UTC so string order is time order.
func (r Repo) CountActiveAgents(ctx context.Context, tx *sql.Tx, since string) (int, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE last_active_at > ?`, since).Scan(&n)
	return n, err
}

func (r Repo) TouchAgentActivity(ctx context.Context, tx *sql.Tx, id, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `UPDATE agents SET last_active_at=? WHERE id=?`, now, id)
	return err
}

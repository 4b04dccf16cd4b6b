package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// RegisterOptions is the argument bundle for RegisterAgent.
type RegisterOptions struct {
	AgentID      string
	Name         string
	ZenonAddress string
	// Role defaults to zeno.
	Role     domain.Role
	Identity string
}

// RegisterAgent binds an agent record to the caller's identity, creating or
// updating it. The identity's role is assigned the first time only.
func (e Engine) RegisterAgent(ctx context.Context, opts RegisterOptions) (domain.Agent, error) {
	var out domain.Agent
	err := e.withTx(ctx, "register_agent", func(tx *sql.Tx, _ *outbox) error {
		id := strings.TrimSpace(opts.AgentID)
		name := strings.TrimSpace(opts.Name)
		if id == "" || name == "" {
			return domain.Errorf(domain.ErrValidation, "agent id and name required")
		}
		if opts.Identity == "" {
			return domain.Errorf(domain.ErrUnauthorized, "identity required")
		}
		role := opts.Role
		if role == "" {
			role = domain.RoleZeno
		}
		if _, err := domain.ParseRole(string(role)); err != nil {
			return err
		}
		authority := e.authority()
		if !authority.CanRequest(opts.Identity, role) {
			return domain.Errorf(domain.ErrUnauthorized, "only operator identities can register as zoe or admin")
		}

		now := e.stamp()
		isNew := false
		existing, err := e.Repo.GetAgent(ctx, tx, id)
		switch {
		case err == nil:
			if existing.Identity != opts.Identity {
				return domain.Errorf(domain.ErrConflict, "agent id %s already registered by another identity", id)
			}
			out = existing
		case errors.Is(err, repo.ErrNotFound):
			bound, err := e.Repo.GetAgentByIdentity(ctx, tx, opts.Identity)
			switch {
			case err == nil:
				if err := e.Repo.ReplaceAgentID(ctx, tx, bound.ID, id); err != nil {
					return fmt.Errorf("rename agent: %w", err)
				}
				bound.ID = id
				out = bound
			case errors.Is(err, repo.ErrNotFound):
				isNew = true
				out = domain.Agent{
					ID:           id,
					Capabilities: []string{},
					Status:       domain.AgentOnline,
					Identity:     opts.Identity,
					CreatedAt:    now,
				}
			default:
				return err
			}
		default:
			return err
		}

		out.Name = name
		out.Role = role
		out.ZenonAddress = opts.ZenonAddress
		out.LastHeartbeat = now
		out.LastActiveAt = now
		if isNew {
			if err := e.Repo.InsertAgent(ctx, tx, out); err != nil {
				return fmt.Errorf("insert agent: %w", err)
			}
		} else if err := e.Repo.UpdateAgent(ctx, tx, out); err != nil {
			return err
		}

		if _, ok, err := authority.RoleOf(ctx, tx, opts.Identity); err != nil {
			return err
		} else if !ok {
			if err := authority.AssignRole(ctx, tx, opts.Identity, role); err != nil {
				return err
			}
		}
		return e.event(ctx, tx, "agent.register", "agent", id, opts.Identity, events.EventPayload{"role": role})
	})
	return out, err
}

// Heartbeat refreshes the liveness and activity stamps of the caller's agent.
func (e Engine) Heartbeat(ctx context.Context, agentID, identity string) (domain.Agent, error) {
	var out domain.Agent
	err := e.withTx(ctx, "heartbeat", func(tx *sql.Tx, _ *outbox) error {
		a, err := e.Repo.GetAgent(ctx, tx, agentID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("agent %s: %w", agentID, repo.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if a.Identity != identity {
			return domain.Errorf(domain.ErrUnauthorized, "agent %s is bound to another identity", agentID)
		}
		now := e.stamp()
		a.LastHeartbeat = now
		a.LastActiveAt = now
		if err := e.Repo.UpdateAgent(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// UpdateCapabilities replaces the caller's capability tags.
func (e Engine) UpdateCapabilities(ctx context.Context, capabilities []string, identity string) (domain.Agent, error) {
	var out domain.Agent
	err := e.withTx(ctx, "update_agent_capabilities", func(tx *sql.Tx, _ *outbox) error {
		a, err := e.caller(ctx, tx, identity)
		if err != nil {
			return err
		}
		a.Capabilities = domain.NormalizeCapabilities(capabilities)
		a.LastActiveAt = e.stamp()
		if err := e.Repo.UpdateAgent(ctx, tx, a); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "agent.capabilities", "agent", a.ID, identity, events.EventPayload{"capabilities": a.Capabilities}); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// SetAgentStatus changes the caller's own status. Working requires a task the
// caller holds in claimed or in_progress; a claimed task is promoted.
func (e Engine) SetAgentStatus(ctx context.Context, status domain.AgentStatus, taskID *int64, identity string) (domain.Agent, error) {
	var out domain.Agent
	err := e.withTx(ctx, "set_agent_status", func(tx *sql.Tx, ob *outbox) error {
		if _, err := domain.ParseAgentStatus(string(status)); err != nil {
			return err
		}
		a, err := e.caller(ctx, tx, identity)
		if err != nil {
			return err
		}
		if status != domain.AgentWorking && taskID != nil {
			return domain.Errorf(domain.ErrValidation, "task id can only be provided when status is working")
		}
		now := e.stamp()
		var next *int64
		if status == domain.AgentWorking {
			if taskID == nil {
				return domain.Errorf(domain.ErrValidation, "task id is required when status is working")
			}
			t, err := getTask(ctx, e.Repo, tx, *taskID)
			if err != nil {
				return err
			}
			if t.AssignedTo == nil || *t.AssignedTo != a.ID {
				return domain.Errorf(domain.ErrUnauthorized, "task %d is not assigned to agent %s", t.ID, a.ID)
			}
			switch t.Status {
			case domain.TaskClaimed:
				t.Status = domain.TaskInProgress
				t.StatusChangedBy = &identity
				t.StatusChangedAt = &now
				t.UpdatedAt = now
				if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
					return err
				}
				if err := e.event(ctx, tx, "task.status", "task", idString(t.ID), identity, events.EventPayload{
					"from": domain.TaskClaimed, "to": domain.TaskInProgress,
				}); err != nil {
					return err
				}
			case domain.TaskInProgress:
			default:
				return domain.Errorf(domain.ErrInvalidState, "task %d must be claimed or in_progress to mark working", t.ID)
			}
			id := t.ID
			next = &id
			if a.Status != domain.AgentWorking || a.CurrentTaskID == nil || *a.CurrentTaskID != id {
				ob.post(ChannelGeneral, fmt.Sprintf("%s is now working on task %d", a.Name, id))
			}
		}
		a.Status = status
		a.CurrentTaskID = next
		a.LastHeartbeat = now
		if err := e.Repo.UpdateAgent(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// WhoAmI returns the agent and role bound to identity.
func (e Engine) WhoAmI(ctx context.Context, identity string) (domain.Agent, domain.Role, error) {
	role, ok, err := e.authority().RoleOf(ctx, nil, identity)
	if err != nil {
		return domain.Agent{}, "", err
	}
	if !ok {
		role = domain.RoleZeno
	}
	a, err := e.caller(ctx, nil, identity)
	return a, role, err
}

func (e Engine) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	a, err := e.Repo.GetAgent(ctx, nil, id)
	if errors.Is(err, repo.ErrNotFound) {
		return a, fmt.Errorf("agent %s: %w", id, repo.ErrNotFound)
	}
	return a, err
}

func (e Engine) ListAgents(ctx context.Context, f repo.AgentFilters) ([]domain.Agent, error) {
	return e.Repo.ListAgents(ctx, nil, f)
}

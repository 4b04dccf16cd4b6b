package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

const ideaColumns = `id,title,description,category,status,active_agent_count,quorum,approval_threshold,veto_threshold,up_votes,down_votes,veto_count,total_votes,created_by,created_at,updated_at`

func scanIdea(s scanner) (domain.Idea, error) {
	var i domain.Idea
	var desc, category sql.NullString
	err := s.Scan(&i.ID, &i.Title, &desc, &category, &i.Status, &i.ActiveAgentCount, &i.Quorum, &i.ApprovalThreshold, &i.VetoThreshold,
		&i.UpVotes, &i.DownVotes, &i.VetoCount, &i.TotalVotes, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return domain.Idea{}, notFound(err)
	}
	i.Description = desc.String
	i.Category = category.String
	return i, nil
}

// InsertIdea stores the idea and returns it with its assigned id.
func (r Repo) InsertIdea(ctx context.Context, tx *sql.Tx, i domain.Idea) (domain.Idea, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO ideas(title,description,category,status,active_agent_count,quorum,approval_threshold,veto_threshold,up_votes,down_votes,veto_count,total_votes,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.Title, nullable(i.Description), nullable(i.Category), i.Status, i.ActiveAgentCount, i.Quorum, i.ApprovalThreshold, i.VetoThreshold,
		i.UpVotes, i.DownVotes, i.VetoCount, i.TotalVotes, i.CreatedBy, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return domain.Idea{}, err
	}
	i.ID, err = res.LastInsertId()
	return i, err
}

// UpdateIdea writes status and tallies. Thresholds are never rewritten after insert.
func (r Repo) UpdateIdea(ctx context.Context, tx *sql.Tx, i domain.Idea) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE ideas SET status=?, up_votes=?, down_votes=?, veto_count=?, total_votes=?, updated_at=? WHERE id=?`,
		i.Status, i.UpVotes, i.DownVotes, i.VetoCount, i.TotalVotes, i.UpdatedAt, i.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIdea(ctx context.Context, tx *sql.Tx, id int64) (domain.Idea, error) {
	return scanIdea(r.conn(tx).QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=?`, id))
}

func (r Repo) ListIdeas(ctx context.Context, tx *sql.Tx, status string) ([]domain.Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Idea
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

func (r Repo) InsertVote(ctx context.Context, tx *sql.Tx, v domain.Vote) (domain.Vote, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO votes(idea_id,agent_id,vote_type,created_at) VALUES (?,?,?,?)`,
		v.IdeaID, v.AgentID, v.Type, v.CreatedAt)
	if err != nil {
		return domain.Vote{}, err
	}
	v.ID, err = res.LastInsertId()
	return v, err
}

// GetVote finds the vote an agent cast on an idea.
func (r Repo) GetVote(ctx context.Context, tx *sql.Tx, ideaID int64, agentID string) (domain.Vote, error) {
	var v domain.Vote
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id,idea_id,agent_id,vote_type,created_at FROM votes WHERE idea_id=? AND agent_id=?`, ideaID, agentID).
		Scan(&v.ID, &v.IdeaID, &v.AgentID, &v.Type, &v.CreatedAt)
	if err != nil {
		return domain.Vote{}, notFound(err)
	}
	return v, nil
}

func (r Repo) ListVotes(ctx context.Context, tx *sql.Tx, ideaID int64) ([]domain.Vote, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id,idea_id,agent_id,vote_type,created_at FROM votes WHERE idea_id=? ORDER BY id`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.ID, &v.IdeaID, &v.AgentID, &v.Type, &v.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

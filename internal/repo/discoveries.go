package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

const discoveryColumns = `id,discovered_by,current_task_id,project_id,title,description,priority,task_type,severity,status,created_task_id,escalated_idea_id,rejection_reason,created_at,reviewed_at,reviewed_by`

func scanDiscovery(s scanner) (domain.DiscoveredTask, error) {
	var d domain.DiscoveredTask
	var current, createdTask, escalated sql.NullInt64
	var desc, taskType, severity, reason, reviewedAt, reviewedBy sql.NullString
	err := s.Scan(&d.ID, &d.DiscoveredBy, &current, &d.ProjectID, &d.Title, &desc, &d.Priority, &taskType, &severity, &d.Status,
		&createdTask, &escalated, &reason, &d.CreatedAt, &reviewedAt, &reviewedBy)
	if err != nil {
		return domain.DiscoveredTask{}, notFound(err)
	}
	d.CurrentTaskID = int64Ptr(current)
	d.Description = desc.String
	d.TaskType = taskType.String
	d.Severity = severity.String
	d.CreatedTaskID = int64Ptr(createdTask)
	d.EscalatedIdeaID = int64Ptr(escalated)
	d.RejectionReason = stringPtr(reason)
	d.ReviewedAt = stringPtr(reviewedAt)
	d.ReviewedBy = stringPtr(reviewedBy)
	return d, nil
}

func (r Repo) InsertDiscovery(ctx context.Context, tx *sql.Tx, d domain.DiscoveredTask) (domain.DiscoveredTask, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO discovered_tasks(discovered_by,current_task_id,project_id,title,description,priority,task_type,severity,status,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.DiscoveredBy, nullableInt64Ptr(d.CurrentTaskID), d.ProjectID, d.Title, nullable(d.Description), d.Priority,
		nullable(d.TaskType), nullable(d.Severity), d.Status, d.CreatedAt)
	if err != nil {
		return domain.DiscoveredTask{}, err
	}
	d.ID, err = res.LastInsertId()
	return d, err
}

// UpdateDiscoveryReview records the outcome of a review.
func (r Repo) UpdateDiscoveryReview(ctx context.Context, tx *sql.Tx, d domain.DiscoveredTask) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE discovered_tasks SET status=?, created_task_id=?, escalated_idea_id=?, rejection_reason=?, reviewed_at=?, reviewed_by=? WHERE id=?`,
		d.Status, nullableInt64Ptr(d.CreatedTaskID), nullableInt64Ptr(d.EscalatedIdeaID), nullableStringPtr(d.RejectionReason),
		nullableStringPtr(d.ReviewedAt), nullableStringPtr(d.ReviewedBy), d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDiscovery(ctx context.Context, tx *sql.Tx, id int64) (domain.DiscoveredTask, error) {
	return scanDiscovery(r.conn(tx).QueryRowContext(ctx, `SELECT `+discoveryColumns+` FROM discovered_tasks WHERE id=?`, id))
}

type DiscoveryFilters struct {
	ProjectID int64
	Status    string
}

func (r Repo) ListDiscoveries(ctx context.Context, tx *sql.Tx, f DiscoveryFilters) ([]domain.DiscoveredTask, error) {
	query := `SELECT ` + discoveryColumns + ` FROM discovered_tasks WHERE 1=1`
	var args []any
	if f.ProjectID != 0 {
		query += ` AND project_id=?`
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY id`
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DiscoveredTask
	for rows.Next() {
		d, err := scanDiscovery(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

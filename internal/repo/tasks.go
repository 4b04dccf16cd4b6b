package repo

import (
	"context"
	"database/sql"
	"strings"

	"nexus/internal/domain"
)

const taskColumns = `id,project_id,title,description,status,assigned_to,claimed_at,github_issue_url,github_pr_url,priority,source_idea_id,review_count,blocked_from_status,archived_reason,status_changed_by,status_changed_at,created_by,created_at,updated_at`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var desc, assigned, claimedAt, issue, pr, blockedFrom, archived, changedBy, changedAt sql.NullString
	var sourceIdea sql.NullInt64
	err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &desc, &t.Status, &assigned, &claimedAt, &issue, &pr, &t.Priority, &sourceIdea,
		&t.ReviewCount, &blockedFrom, &archived, &changedBy, &changedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, notFound(err)
	}
	t.Description = desc.String
	t.AssignedTo = stringPtr(assigned)
	t.ClaimedAt = stringPtr(claimedAt)
	t.GithubIssueURL = stringPtr(issue)
	t.GithubPRURL = stringPtr(pr)
	t.SourceIdeaID = int64Ptr(sourceIdea)
	if blockedFrom.Valid {
		st := domain.TaskStatus(blockedFrom.String)
		t.BlockedFromStatus = &st
	}
	t.ArchivedReason = stringPtr(archived)
	t.StatusChangedBy = stringPtr(changedBy)
	t.StatusChangedAt = stringPtr(changedAt)
	return t, nil
}

func blockedFromArg(st *domain.TaskStatus) any {
	if st == nil {
		return nil
	}
	return string(*st)
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (domain.Task, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO tasks(project_id,title,description,status,assigned_to,claimed_at,github_issue_url,github_pr_url,priority,source_idea_id,review_count,blocked_from_status,archived_reason,status_changed_by,status_changed_at,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ProjectID, t.Title, nullable(t.Description), t.Status, nullableStringPtr(t.AssignedTo), nullableStringPtr(t.ClaimedAt),
		nullableStringPtr(t.GithubIssueURL), nullableStringPtr(t.GithubPRURL), t.Priority, nullableInt64Ptr(t.SourceIdeaID), t.ReviewCount,
		blockedFromArg(t.BlockedFromStatus), nullableStringPtr(t.ArchivedReason), nullableStringPtr(t.StatusChangedBy), nullableStringPtr(t.StatusChangedAt),
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.ID, err = res.LastInsertId()
	return t, err
}

// UpdateTask replaces every mutable column of the task row.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, assigned_to=?, claimed_at=?, github_issue_url=?, github_pr_url=?, priority=?, source_idea_id=?, review_count=?, blocked_from_status=?, archived_reason=?, status_changed_by=?, status_changed_at=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Status, nullableStringPtr(t.AssignedTo), nullableStringPtr(t.ClaimedAt),
		nullableStringPtr(t.GithubIssueURL), nullableStringPtr(t.GithubPRURL), t.Priority, nullableInt64Ptr(t.SourceIdeaID), t.ReviewCount,
		blockedFromArg(t.BlockedFromStatus), nullableStringPtr(t.ArchivedReason), nullableStringPtr(t.StatusChangedBy), nullableStringPtr(t.StatusChangedAt),
		t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	return scanTask(r.conn(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	ProjectID  int64
	Status     string
	AssignedTo string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != 0 {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY priority DESC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

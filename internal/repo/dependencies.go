package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

func (r Repo) InsertDependency(ctx context.Context, tx *sql.Tx, d domain.TaskDependency) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO task_dependencies(task_id, depends_on_id, dep_type, created_at) VALUES (?,?,?,?)`,
		d.TaskID, d.DependsOnID, d.Type, d.CreatedAt)
	return err
}

func (r Repo) DependencyExists(ctx context.Context, tx *sql.Tx, taskID, dependsOn int64, depType domain.DependencyType) (bool, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT 1 FROM task_dependencies WHERE task_id=? AND depends_on_id=? AND dep_type=? LIMIT 1`,
		taskID, dependsOn, depType).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListDependencies returns the outgoing edges of a task.
func (r Repo) ListDependencies(ctx context.Context, tx *sql.Tx, taskID int64) ([]domain.TaskDependency, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT task_id, depends_on_id, dep_type, created_at FROM task_dependencies WHERE task_id=? ORDER BY depends_on_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskDependency
	for rows.Next() {
		var d domain.TaskDependency
		if err := rows.Scan(&d.TaskID, &d.DependsOnID, &d.Type, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ListDependents returns the edges pointing at a task.
func (r Repo) ListDependents(ctx context.Context, tx *sql.Tx, dependsOn int64) ([]domain.TaskDependency, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT task_id, depends_on_id, dep_type, created_at FROM task_dependencies WHERE depends_on_id=? ORDER BY task_id`, dependsOn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskDependency
	for rows.Next() {
		var d domain.TaskDependency
		if err := rows.Scan(&d.TaskID, &d.DependsOnID, &d.Type, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

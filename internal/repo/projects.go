package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

const projectColumns = `id,source_idea_id,name,github_repo,description,status,created_by,created_at`

func scanProject(s scanner) (domain.Project, error) {
	var p domain.Project
	var repoURL, desc sql.NullString
	if err := s.Scan(&p.ID, &p.SourceIdeaID, &p.Name, &repoURL, &desc, &p.Status, &p.CreatedBy, &p.CreatedAt); err != nil {
		return domain.Project{}, notFound(err)
	}
	p.GithubRepo = repoURL.String
	p.Description = desc.String
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (domain.Project, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO projects(source_idea_id,name,github_repo,description,status,created_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.SourceIdeaID, p.Name, nullable(p.GithubRepo), nullable(p.Description), p.Status, p.CreatedBy, p.CreatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id int64) (domain.Project, error) {
	return scanProject(r.conn(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

func (r Repo) GetProjectBySourceIdea(ctx context.Context, tx *sql.Tx, ideaID int64) (domain.Project, error) {
	return scanProject(r.conn(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE source_idea_id=?`, ideaID))
}

func (r Repo) UpdateProjectStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.ProjectStatus) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListProjects(ctx context.Context, tx *sql.Tx, status string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id`
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

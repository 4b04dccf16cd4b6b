package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

func (r Repo) GetIdentityRole(ctx context.Context, tx *sql.Tx, identity string) (domain.IdentityRole, error) {
	var ir domain.IdentityRole
	err := r.conn(tx).QueryRowContext(ctx, `SELECT identity, role, assigned_at FROM identity_roles WHERE identity=?`, identity).
		Scan(&ir.Identity, &ir.Role, &ir.AssignedAt)
	if err != nil {
		return domain.IdentityRole{}, notFound(err)
	}
	return ir, nil
}

// InsertIdentityRole stores a new binding. Callers check for an existing row first;
// the primary key rejects a second insert regardless.
func (r Repo) InsertIdentityRole(ctx context.Context, tx *sql.Tx, ir domain.IdentityRole) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO identity_roles(identity, role, assigned_at) VALUES (?,?,?)`,
		ir.Identity, ir.Role, ir.AssignedAt)
	return err
}

func (r Repo) ListIdentityRoles(ctx context.Context, tx *sql.Tx) ([]domain.IdentityRole, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT identity, role, assigned_at FROM identity_roles ORDER BY identity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IdentityRole
	for rows.Next() {
		var ir domain.IdentityRole
		if err := rows.Scan(&ir.Identity, &ir.Role, &ir.AssignedAt); err != nil {
			return nil, err
		}
		res = append(res, ir)
	}
	return res, rows.Err()
}

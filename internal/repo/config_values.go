package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

func (r Repo) GetConfigValue(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var v string
	err := r.conn(tx).QueryRowContext(ctx, `SELECT value FROM config WHERE key=?`, key).Scan(&v)
	if err != nil {
		return "", notFound(err)
	}
	return v, nil
}

func (r Repo) UpsertConfigValue(ctx context.Context, tx *sql.Tx, key, value, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO config(key, value, updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, key, value, now)
	return err
}

// InsertConfigDefault seeds key only when it is absent.
func (r Repo) InsertConfigDefault(ctx context.Context, tx *sql.Tx, key, value, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT OR IGNORE INTO config(key, value, updated_at) VALUES (?,?,?)`, key, value, now)
	return err
}

func (r Repo) ListConfig(ctx context.Context, tx *sql.Tx) ([]domain.ConfigEntry, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT key, value, updated_at FROM config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ConfigEntry
	for rows.Next() {
		var c domain.ConfigEntry
		if err := rows.Scan(&c.Key, &c.Value, &c.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

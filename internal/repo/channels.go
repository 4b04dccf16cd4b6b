package repo

import (
	"context"
	"database/sql"

	"nexus/internal/domain"
)

func (r Repo) InsertChannel(ctx context.Context, tx *sql.Tx, c domain.Channel) (domain.Channel, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO channels(name, created_by, created_at) VALUES (?,?,?)`, c.Name, nullable(c.CreatedBy), c.CreatedAt)
	if err != nil {
		return domain.Channel{}, err
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

// EnsureChannel inserts the channel if no channel with that name exists.
func (r Repo) EnsureChannel(ctx context.Context, tx *sql.Tx, name, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT OR IGNORE INTO channels(name, created_at) VALUES (?,?)`, name, now)
	return err
}

func (r Repo) GetChannelByName(ctx context.Context, tx *sql.Tx, name string) (domain.Channel, error) {
	var c domain.Channel
	var by sql.NullString
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM channels WHERE name=?`, name).
		Scan(&c.ID, &c.Name, &by, &c.CreatedAt)
	if err != nil {
		return domain.Channel{}, notFound(err)
	}
	c.CreatedBy = by.String
	return c, nil
}

func (r Repo) GetChannel(ctx context.Context, tx *sql.Tx, id int64) (domain.Channel, error) {
	var c domain.Channel
	var by sql.NullString
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM channels WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &by, &c.CreatedAt)
	if err != nil {
		return domain.Channel{}, notFound(err)
	}
	c.CreatedBy = by.String
	return c, nil
}

func (r Repo) ListChannels(ctx context.Context, tx *sql.Tx) ([]domain.Channel, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id, name, created_by, created_at FROM channels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Channel
	for rows.Next() {
		var c domain.Channel
		var by sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &by, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedBy = by.String
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertMessage(ctx context.Context, tx *sql.Tx, m domain.Message) (domain.Message, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO messages(channel_id, sender_id, content, message_type, context_id, created_at) VALUES (?,?,?,?,?,?)`,
		nullableInt64Ptr(m.ChannelID), m.SenderID, m.Content, m.Type, nullableStringPtr(m.ContextID), m.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

// ListMessages returns channel messages with ids above afterID, oldest first.
func (r Repo) ListMessages(ctx context.Context, tx *sql.Tx, channelID, afterID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id, channel_id, sender_id, content, message_type, context_id, created_at FROM messages WHERE channel_id=? AND id>? ORDER BY id LIMIT ?`,
		channelID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows, false)
}

func (r Repo) InsertProjectChannel(ctx context.Context, tx *sql.Tx, projectID int64, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO project_channels(project_id, created_at) VALUES (?,?)`, projectID, now)
	return err
}

func (r Repo) ProjectChannelExists(ctx context.Context, tx *sql.Tx, projectID int64) (bool, error) {
	var n int
	err := r.conn(tx).QueryRowContext(ctx, `SELECT 1 FROM project_channels WHERE project_id=?`, projectID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) InsertProjectMessage(ctx context.Context, tx *sql.Tx, m domain.Message) (domain.Message, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO project_messages(project_id, sender_id, content, message_type, context_id, created_at) VALUES (?,?,?,?,?,?)`,
		nullableInt64Ptr(m.ProjectID), m.SenderID, m.Content, m.Type, nullableStringPtr(m.ContextID), m.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

func (r Repo) ListProjectMessages(ctx context.Context, tx *sql.Tx, projectID, afterID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT id, project_id, sender_id, content, message_type, context_id, created_at FROM project_messages WHERE project_id=? AND id>? ORDER BY id LIMIT ?`,
		projectID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows, true)
}

func scanMessages(rows *sql.Rows, project bool) ([]domain.Message, error) {
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		var m domain.Message
		var owner int64
		var contextID sql.NullString
		if err := rows.Scan(&m.ID, &owner, &m.SenderID, &m.Content, &m.Type, &contextID, &m.CreatedAt); err != nil {
			return nil, err
		}
		if project {
			m.ProjectID = &owner
		} else {
			m.ChannelID = &owner
		}
		m.ContextID = stringPtr(contextID)
		res = append(res, m)
	}
	return res, rows.Err()
}

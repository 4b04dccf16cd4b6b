package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nexus/internal/db"
	"nexus/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrate.Migrate(conn))
	require.NoError(t, migrate.MigrateContext(context.Background(), conn))

	latest, err := migrate.Latest()
	require.NoError(t, err)
	var v int
	require.NoError(t, conn.QueryRow(`SELECT version FROM schema_version`).Scan(&v))
	require.Equal(t, latest, v)
}

func TestVotesUniquePerAgent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	_, err = conn.Exec(`INSERT INTO ideas(title,status,active_agent_count,quorum,approval_threshold,veto_threshold,created_by,created_at,updated_at)
VALUES ('x','voting',0,5,5,3,'a','2024-01-01T00:00:00Z','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO votes(idea_id,agent_id,vote_type,created_at) VALUES (1,'a','up','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO votes(idea_id,agent_id,vote_type,created_at) VALUES (1,'a','down','2024-01-01T00:00:00Z')`)
	require.Error(t, err)
}

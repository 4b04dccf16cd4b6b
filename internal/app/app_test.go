package app_test

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/app"
	"nexus/internal/config"
	"nexus/internal/domain"
	"nexus/internal/engine"
)

func TestOpenBootstrapsWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(config.GenerateDefault("alice")), 0o644))

	var logs bytes.Buffer
	a, err := app.Open(context.Background(), app.Options{Workspace: dir, LogOutput: &logs})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Nil(t, a.NATS)
	_, role, _ := a.Engine.WhoAmI(context.Background(), "alice")
	assert.Equal(t, domain.RoleZoe, role)

	chans, err := a.Engine.ListChannels(context.Background())
	require.NoError(t, err)
	var names []string
	for _, c := range chans {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, engine.ChannelGeneral)
	assert.Contains(t, names, engine.ChannelZoe)
}

func TestNewLoggerFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	app.NewLogger(cfg, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.Log.Level = "warn"
	buf.Reset()
	app.NewLogger(cfg, &buf).Info("quiet")
	assert.Empty(t, buf.String())
}

// Package app wires storage, notifications and metrics into a ready engine.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nats-io/nats.go"

	"nexus/internal/config"
	"nexus/internal/db"
	"nexus/internal/engine"
	"nexus/internal/metrics"
	"nexus/internal/migrate"
	"nexus/internal/notify"
)

// App holds the process-wide handles for a workspace.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Metrics   *metrics.Metrics
	NATS      *nats.Conn
	Log       *slog.Logger
}

type Options struct {
	Workspace string
	// Config overrides nexus.yml when set.
	Config *config.Config
	// NATSURL overrides nats.url from the config.
	NATSURL   string
	LogOutput io.Writer
}

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg != nil && strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open loads config, opens and migrates the database, connects NATS when a
// url is configured and bootstraps the governance defaults.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.LoadOrDefault(opts.Workspace)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	log := NewLogger(cfg, opts.LogOutput)

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	natsURL := cfg.NATS.URL
	if opts.NATSURL != "" {
		natsURL = opts.NATSURL
	}
	nc, err := notify.Connect(natsURL, log)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m := metrics.New()
	eng := engine.New(conn, cfg)
	eng.Log = log
	eng.Metrics = m
	store := notify.NewStore(conn, nil, m, log)
	if nc != nil {
		store.Publisher = nc
		log.Info("nats connected", "url", nc.ConnectedUrl())
	}
	eng.Notifier = store

	a := &App{Workspace: opts.Workspace, Config: cfg, DB: conn, Engine: eng, Metrics: m, NATS: nc, Log: log}
	if _, err := eng.Bootstrap(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return a, nil
}

func (a *App) Close() error {
	if a.NATS != nil {
		if err := a.NATS.Drain(); err != nil {
			a.Log.Warn("nats drain", "error", err)
		}
	}
	return a.DB.Close()
}

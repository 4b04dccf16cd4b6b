package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"nexus/internal/engine/quorum"
	"nexus/internal/repo"
)

// windowDays reads the activity window from the config table.
func (e Engine) windowDays(ctx context.Context, tx *sql.Tx) (int, error) {
	raw, err := e.Repo.GetConfigValue(ctx, tx, ConfigActivityWindowDays)
	if errors.Is(err, repo.ErrNotFound) {
		return quorum.ParseWindowDays("", false), nil
	}
	if err != nil {
		return 0, err
	}
	return quorum.ParseWindowDays(raw, true), nil
}

func (e Engine) activeAgents(ctx context.Context, tx *sql.Tx) (int, error) {
	days, err := e.windowDays(ctx, tx)
	if err != nil {
		return 0, err
	}
	cutoff := e.now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	return e.Repo.CountActiveAgents(ctx, tx, cutoff)
}

func (e Engine) thresholds(ctx context.Context, tx *sql.Tx) (quorum.Thresholds, error) {
	n, err := e.activeAgents(ctx, tx)
	if err != nil {
		return quorum.Thresholds{}, err
	}
	return quorum.Calculate(n), nil
}

// CountActiveAgents returns the number of agents active inside the window.
func (e Engine) CountActiveAgents(ctx context.Context) (int, error) {
	return e.activeAgents(ctx, nil)
}

// CurrentThresholds returns the thresholds a new idea would snapshot now.
func (e Engine) CurrentThresholds(ctx context.Context) (quorum.Thresholds, error) {
	return e.thresholds(ctx, nil)
}

// WindowDays returns the activity window in effect.
func (e Engine) WindowDays(ctx context.Context) (int, error) {
	return e.windowDays(ctx, nil)
}

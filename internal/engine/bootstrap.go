package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// BootstrapResult reports what Bootstrap created.
type BootstrapResult struct {
	Channels        []string `json:"channels"`
	OperatorsSeeded int      `json:"operators_seeded"`
	WindowDays      int      `json:"window_days"`
}

// Bootstrap seeds the default channels, the activity window and Zoe roles
// for configured operators. It is safe to run repeatedly.
func (e Engine) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	var res BootstrapResult
	err := e.withTx(ctx, "bootstrap", func(tx *sql.Tx, _ *outbox) error {
		now := e.stamp()
		channels := []string{ChannelGeneral, ChannelZoe}
		if e.Config != nil {
			for _, ch := range e.Config.Channels {
				channels = append(channels, strings.ToLower(strings.TrimSpace(ch)))
			}
		}
		for _, ch := range channels {
			if err := e.Repo.EnsureChannel(ctx, tx, ch, now); err != nil {
				return fmt.Errorf("ensure channel %s: %w", ch, err)
			}
		}
		res.Channels = channels
		res.WindowDays = e.Config.WindowDays()
		if err := e.Repo.InsertConfigDefault(ctx, tx, ConfigActivityWindowDays, strconv.Itoa(res.WindowDays), now); err != nil {
			return fmt.Errorf("seed config: %w", err)
		}
		n, err := e.authority().SeedOperators(ctx, tx)
		if err != nil {
			return fmt.Errorf("seed operators: %w", err)
		}
		res.OperatorsSeeded = n
		return e.event(ctx, tx, "system.bootstrap", "system", "", "system", events.EventPayload{
			"channels": channels, "operators_seeded": n,
		})
	})
	return res, err
}

// SetConfig writes a runtime setting. Zoe only.
func (e Engine) SetConfig(ctx context.Context, key, value, identity string) (domain.ConfigEntry, error) {
	var out domain.ConfigEntry
	err := e.withTx(ctx, "set_config", func(tx *sql.Tx, _ *outbox) error {
		if err := e.authority().RequireRole(ctx, tx, identity, domain.RoleZoe); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return domain.Errorf(domain.ErrValidation, "config key required")
		}
		if key == ConfigActivityWindowDays {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err != nil || n <= 0 {
				return domain.Errorf(domain.ErrValidation, "%s must be a positive integer", key)
			}
		}
		now := e.stamp()
		if err := e.Repo.UpsertConfigValue(ctx, tx, key, value, now); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "config.set", "config", key, identity, events.EventPayload{"value": value}); err != nil {
			return err
		}
		out = domain.ConfigEntry{Key: key, Value: value, UpdatedAt: now}
		return nil
	})
	return out, err
}

func (e Engine) GetConfig(ctx context.Context, key string) (string, error) {
	v, err := e.Repo.GetConfigValue(ctx, nil, key)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("config %s: %w", key, repo.ErrNotFound)
	}
	return v, err
}

func (e Engine) ListConfig(ctx context.Context) ([]domain.ConfigEntry, error) {
	return e.Repo.ListConfig(ctx, nil)
}

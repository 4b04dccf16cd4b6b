package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"nexus/internal/config"
	"nexus/internal/domain"
	"nexus/internal/engine/auth"
	"nexus/internal/events"
	"nexus/internal/metrics"
	"nexus/internal/notify"
	"nexus/internal/repo"
)

const (
	ChannelGeneral = "general"
	ChannelZoe     = "zoe"

	ConfigActivityWindowDays = "activity_window_days"
)

// Engine runs governance commands. Every exported command executes in one
// transaction; notifications queued by a command are posted after commit.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Config   *config.Config
	Log      *slog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	log := slog.Default()
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{},
		Auth:     auth.NewService(r, cfg.Operators),
		Notifier: notify.NewStore(db, nil, nil, log),
		Config:   cfg,
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// authority returns the role service bound to the engine's clock.
func (e Engine) authority() auth.Service {
	a := e.Auth
	a.Repo = e.Repo
	a.Now = e.now
	return a
}

type notice struct {
	channel string
	text    string
}

// outbox collects notifications raised while a command runs.
type outbox struct {
	notices []notice
}

func (o *outbox) post(channel, text string) {
	o.notices = append(o.notices, notice{channel: channel, text: text})
}

// withTx runs fn in a transaction, commits, then flushes queued notices.
// A failed notice is logged and does not undo the committed command.
func (e Engine) withTx(ctx context.Context, command string, fn func(tx *sql.Tx, out *outbox) error) (err error) {
	defer func() { e.Metrics.Command(command, err) }()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var out outbox
	if err := fn(tx, &out); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", command, err)
	}
	e.flush(ctx, command, out)
	return nil
}

func (e Engine) flush(ctx context.Context, command string, out outbox) {
	if e.Notifier == nil {
		return
	}
	for _, n := range out.notices {
		if err := e.Notifier.PostSystemMessage(ctx, n.text, n.channel); err != nil {
			e.logger().Warn("notification failed", "command", command, "channel", n.channel, "error", err)
		}
	}
}

func (e Engine) event(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actor string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, entityKind, entityID, actor, payload)
}

// caller resolves the registered agent bound to identity.
func (e Engine) caller(ctx context.Context, tx *sql.Tx, identity string) (domain.Agent, error) {
	if identity == "" {
		return domain.Agent{}, domain.Errorf(domain.ErrUnauthorized, "identity required")
	}
	a, err := e.Repo.GetAgentByIdentity(ctx, tx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Agent{}, fmt.Errorf("agent for identity %s: %w", identity, repo.ErrNotFound)
	}
	return a, err
}

func (e Engine) privileged(ctx context.Context, tx *sql.Tx, identity string) (bool, error) {
	return e.authority().HasRole(ctx, tx, identity, domain.RoleAdmin)
}

func (e Engine) touch(ctx context.Context, tx *sql.Tx, agentID string) error {
	return e.Repo.TouchAgentActivity(ctx, tx, agentID, e.stamp())
}

func getTask(ctx context.Context, r repo.Repo, tx *sql.Tx, id int64) (domain.Task, error) {
	t, err := r.GetTask(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return t, fmt.Errorf("task %d: %w", id, repo.ErrNotFound)
	}
	return t, err
}

func getProject(ctx context.Context, r repo.Repo, tx *sql.Tx, id int64) (domain.Project, error) {
	p, err := r.GetProject(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return p, fmt.Errorf("project %d: %w", id, repo.ErrNotFound)
	}
	return p, err
}

func getIdea(ctx context.Context, r repo.Repo, tx *sql.Tx, id int64) (domain.Idea, error) {
	i, err := r.GetIdea(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return i, fmt.Errorf("idea %d: %w", id, repo.ErrNotFound)
	}
	return i, err
}

func validPriority(p int) error {
	if p < 0 || p > 10 {
		return domain.Errorf(domain.ErrValidation, "priority must be between 0 and 10, got %d", p)
	}
	return nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

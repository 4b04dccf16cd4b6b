// Package notify posts system messages into channels and fans them out to NATS.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"nexus/internal/domain"
	"nexus/internal/metrics"
	"nexus/internal/repo"
)

// SystemSender is the sender id stamped on system messages.
const SystemSender = "system"

const DefaultChannel = "general"

// Notifier delivers a system message to a named channel.
type Notifier interface {
	PostSystemMessage(ctx context.Context, text, channel string) error
}

// Publisher is the subset of *nats.Conn used for fan-out.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the payload published on NATS for each posted message.
type Envelope struct {
	DeliveryID string `json:"delivery_id"`
	MessageID  int64  `json:"message_id"`
	Channel    string `json:"channel"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// Subject returns the NATS subject for a channel.
func Subject(channel string) string {
	return "nexus.channel." + channel
}

// Store writes system messages to the channel tables in their own
// transaction. Publisher is optional.
type Store struct {
	DB        *sql.DB
	Repo      repo.Repo
	Publisher Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Now       func() time.Time
}

func NewStore(db *sql.DB, pub Publisher, m *metrics.Metrics, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}
	return Store{DB: db, Repo: repo.Repo{DB: db}, Publisher: pub, Metrics: m, Log: log, Now: time.Now}
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Store) PostSystemMessage(ctx context.Context, text, channel string) (err error) {
	if channel == "" {
		channel = DefaultChannel
	}
	defer func() { s.Metrics.Notification(channel, err) }()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ch, err := s.Repo.GetChannelByName(ctx, tx, channel)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("channel %s not found: %w", channel, repo.ErrNotFound)
	}
	if err != nil {
		return err
	}
	msg, err := s.Repo.InsertMessage(ctx, tx, domain.Message{
		ChannelID: &ch.ID,
		SenderID:  SystemSender,
		Content:   text,
		Type:      domain.MessageSystem,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("insert system message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.Publisher != nil {
		s.publish(channel, msg)
	}
	return nil
}

// publish is best effort: the message row is already durable.
func (s Store) publish(channel string, msg domain.Message) {
	data, err := json.Marshal(Envelope{
		DeliveryID: ulid.Make().String(),
		MessageID:  msg.ID,
		Channel:    channel,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		s.Log.Warn("encode notification", "channel", channel, "error", err)
		return
	}
	if err := s.Publisher.Publish(Subject(channel), data); err != nil {
		s.Log.Warn("publish notification", "channel", channel, "subject", Subject(channel), "error", err)
	}
}

// Connect dials NATS. An empty url returns a nil connection and no error so
// callers can run without fan-out.
func Connect(url string, log *slog.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("nexus"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil && log != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// Discard drops every notification.
type Discard struct{}

func (Discard) PostSystemMessage(context.Context, string, string) error { return nil }

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// MessageOptions is the argument bundle for SendMessage and SendProjectMessage.
type MessageOptions struct {
	ChannelID int64
	ProjectID int64
	Content   string
	Type      domain.MessageType
	ContextID string
	Identity  string
}

// checkMessage validates content and the role gate for the message type.
func (e Engine) checkMessage(ctx context.Context, tx *sql.Tx, opts MessageOptions) (domain.Agent, domain.MessageType, error) {
	if strings.TrimSpace(opts.Content) == "" {
		return domain.Agent{}, "", domain.Errorf(domain.ErrValidation, "message content required")
	}
	mt, err := domain.ParseMessageType(string(opts.Type))
	if err != nil {
		return domain.Agent{}, "", err
	}
	sender, err := e.caller(ctx, tx, opts.Identity)
	if err != nil {
		return domain.Agent{}, "", err
	}
	switch mt {
	case domain.MessageSystem:
		err = e.authority().RequireRole(ctx, tx, opts.Identity, domain.RoleAdmin)
	case domain.MessageDirective:
		err = e.authority().RequireRole(ctx, tx, opts.Identity, domain.RoleZoe)
	}
	return sender, mt, err
}

// SendMessage posts into a channel.
func (e Engine) SendMessage(ctx context.Context, opts MessageOptions) (domain.Message, error) {
	var out domain.Message
	err := e.withTx(ctx, "send_message", func(tx *sql.Tx, _ *outbox) error {
		sender, mt, err := e.checkMessage(ctx, tx, opts)
		if err != nil {
			return err
		}
		ch, err := e.Repo.GetChannel(ctx, tx, opts.ChannelID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("channel %d: %w", opts.ChannelID, repo.ErrNotFound)
		}
		if err != nil {
			return err
		}
		m, err := e.Repo.InsertMessage(ctx, tx, domain.Message{
			ChannelID: &ch.ID,
			SenderID:  sender.ID,
			Content:   opts.Content,
			Type:      mt,
			ContextID: optionalString(opts.ContextID),
			CreatedAt: e.stamp(),
		})
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := e.touch(ctx, tx, sender.ID); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// SendProjectMessage posts into a project's channel.
func (e Engine) SendProjectMessage(ctx context.Context, opts MessageOptions) (domain.Message, error) {
	var out domain.Message
	err := e.withTx(ctx, "send_project_message", func(tx *sql.Tx, _ *outbox) error {
		sender, mt, err := e.checkMessage(ctx, tx, opts)
		if err != nil {
			return err
		}
		p, err := getProject(ctx, e.Repo, tx, opts.ProjectID)
		if err != nil {
			return err
		}
		ok, err := e.Repo.ProjectChannelExists(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project channel %d: %w", p.ID, repo.ErrNotFound)
		}
		m, err := e.Repo.InsertProjectMessage(ctx, tx, domain.Message{
			ProjectID: &p.ID,
			SenderID:  sender.ID,
			Content:   opts.Content,
			Type:      mt,
			ContextID: optionalString(opts.ContextID),
			CreatedAt: e.stamp(),
		})
		if err != nil {
			return fmt.Errorf("insert project message: %w", err)
		}
		if err := e.touch(ctx, tx, sender.ID); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// CreateChannel adds a named channel. Admin only.
func (e Engine) CreateChannel(ctx context.Context, name, identity string) (domain.Channel, error) {
	var out domain.Channel
	err := e.withTx(ctx, "create_channel", func(tx *sql.Tx, _ *outbox) error {
		if err := e.authority().RequireRole(ctx, tx, identity, domain.RoleAdmin); err != nil {
			return err
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return domain.Errorf(domain.ErrValidation, "channel name required")
		}
		if _, err := e.Repo.GetChannelByName(ctx, tx, name); err == nil {
			return domain.Errorf(domain.ErrConflict, "channel %s already exists", name)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		ch, err := e.Repo.InsertChannel(ctx, tx, domain.Channel{Name: name, CreatedBy: identity, CreatedAt: e.stamp()})
		if err != nil {
			return fmt.Errorf("insert channel: %w", err)
		}
		if err := e.event(ctx, tx, "channel.create", "channel", idString(ch.ID), identity, events.EventPayload{"name": name}); err != nil {
			return err
		}
		out = ch
		return nil
	})
	return out, err
}

func (e Engine) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	return e.Repo.ListChannels(ctx, nil)
}

func (e Engine) ChannelByName(ctx context.Context, name string) (domain.Channel, error) {
	ch, err := e.Repo.GetChannelByName(ctx, nil, name)
	if errors.Is(err, repo.ErrNotFound) {
		return ch, fmt.Errorf("channel %s: %w", name, repo.ErrNotFound)
	}
	return ch, err
}

func (e Engine) ListMessages(ctx context.Context, channelID, afterID int64, limit int) ([]domain.Message, error) {
	if _, err := e.Repo.GetChannel(ctx, nil, channelID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("channel %d: %w", channelID, repo.ErrNotFound)
		}
		return nil, err
	}
	return e.Repo.ListMessages(ctx, nil, channelID, afterID, limit)
}

func (e Engine) ListProjectMessages(ctx context.Context, projectID, afterID int64, limit int) ([]domain.Message, error) {
	if _, err := getProject(ctx, e.Repo, nil, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListProjectMessages(ctx, nil, projectID, afterID, limit)
}

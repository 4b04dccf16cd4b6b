package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
)

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-channels",
		Method:      http.MethodGet,
		Path:        "/channels",
		Summary:     "List channels",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOut[[]domain.Channel], error) {
		items, err := e.ListChannels(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-channel",
		Method:        http.MethodPost,
		Path:          "/channels",
		Summary:       "Create a channel",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateChannelRequest `json:"body"`
	}) (*bodyOut[domain.Channel], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ch, err := e.CreateChannel(ctx, input.Body.Name, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ch), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-channel-messages",
		Method:      http.MethodGet,
		Path:        "/channels/{channel_id}/messages",
		Summary:     "Read channel messages after a cursor",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ChannelID int64 `path:"channel_id"`
		After     int64 `query:"after"`
		Limit     int   `query:"limit" default:"50"`
	}) (*bodyOut[[]domain.Message], error) {
		items, err := e.ListMessages(ctx, input.ChannelID, input.After, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-channel-message",
		Method:        http.MethodPost,
		Path:          "/channels/{channel_id}/messages",
		Summary:       "Post to a channel",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		ChannelID int64              `path:"channel_id"`
		Body      SendMessageRequest `json:"body"`
	}) (*bodyOut[domain.Message], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SendMessage(ctx, engine.MessageOptions{
			ChannelID: input.ChannelID,
			Content:   input.Body.Content,
			Type:      domain.MessageType(input.Body.Type),
			ContextID: input.Body.ContextID,
			Identity:  identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-messages",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/messages",
		Summary:     "Read project messages after a cursor",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		After     int64 `query:"after"`
		Limit     int   `query:"limit" default:"50"`
	}) (*bodyOut[[]domain.Message], error) {
		items, err := e.ListProjectMessages(ctx, input.ProjectID, input.After, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-project-message",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/messages",
		Summary:       "Post to a project channel",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64              `path:"project_id"`
		Body      SendMessageRequest `json:"body"`
	}) (*bodyOut[domain.Message], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SendProjectMessage(ctx, engine.MessageOptions{
			ProjectID: input.ProjectID,
			Content:   input.Body.Content,
			Type:      domain.MessageType(input.Body.Type),
			ContextID: input.Body.ContextID,
			Identity:  identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})
}

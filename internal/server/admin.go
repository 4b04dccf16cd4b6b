package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*bodyOut[paginatedEvents], error) {
		before, cerr := parseCursor(input.Cursor)
		if cerr != nil {
			return nil, cerr
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.ListEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedEvents{Items: nonNilSlice(items)}
		if len(items) > limit {
			out.Items = items[:limit]
			out.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		return reply(out), nil
	})
}

func registerAdmin(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "List runtime configuration",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOut[[]domain.ConfigEntry], error) {
		items, err := e.ListConfig(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-config",
		Method:      http.MethodPut,
		Path:        "/config/{key}",
		Summary:     "Set a runtime configuration value",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Key  string           `path:"key"`
		Body SetConfigRequest `json:"body"`
	}) (*bodyOut[domain.ConfigEntry], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.SetConfig(ctx, input.Key, input.Body.Value, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(entry), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Mint an API key",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*bodyOut[engine.CreatedAPIKey], error) {
		caller, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		identity := input.Body.Identity
		if identity == "" {
			identity = caller
		}
		key, err := e.CreateAPIKey(ctx, identity, input.Body.Name, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(key), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List the caller's API keys",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOut[[]domain.APIKey], error) {
		caller, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAPIKeys(ctx, caller)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{key_id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		caller, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, input.KeyID, caller); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

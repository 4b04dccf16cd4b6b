package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-agent",
		Method:        http.MethodPost,
		Path:          "/agents",
		Summary:       "Register or update the caller's agent",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body RegisterAgentRequest `json:"body"`
	}) (*bodyOut[domain.Agent], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.RegisterAgent(ctx, engine.RegisterOptions{
			AgentID:      input.Body.ID,
			Name:         input.Body.Name,
			ZenonAddress: input.Body.ZenonAddress,
			Role:         domain.Role(input.Body.Role),
			Identity:     identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List agents",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:"online,offline,working"`
		Capability string `query:"capability"`
	}) (*bodyOut[[]domain.Agent], error) {
		items, err := e.ListAgents(ctx, repo.AgentFilters{Status: input.Status, Capability: input.Capability})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{agent_id}",
		Summary:     "Get agent",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		AgentID string `path:"agent_id"`
	}) (*bodyOut[domain.Agent], error) {
		a, err := e.GetAgent(ctx, input.AgentID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "agent-heartbeat",
		Method:      http.MethodPost,
		Path:        "/agents/{agent_id}/heartbeat",
		Summary:     "Refresh agent liveness",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		AgentID string `path:"agent_id"`
	}) (*bodyOut[domain.Agent], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Heartbeat(ctx, input.AgentID, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-capabilities",
		Method:      http.MethodPut,
		Path:        "/me/capabilities",
		Summary:     "Replace the caller's capability tags",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CapabilitiesRequest `json:"body"`
	}) (*bodyOut[domain.Agent], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateCapabilities(ctx, input.Body.Capabilities, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-agent-status",
		Method:      http.MethodPost,
		Path:        "/me/status",
		Summary:     "Change the caller's status",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Body AgentStatusRequest `json:"body"`
	}) (*bodyOut[domain.Agent], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.SetAgentStatus(ctx, domain.AgentStatus(input.Body.Status), input.Body.TaskID, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})
}

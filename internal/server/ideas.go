package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
)

func registerIdeas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "propose-idea",
		Method:        http.MethodPost,
		Path:          "/ideas",
		Summary:       "Propose an idea for voting",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body ProposeIdeaRequest `json:"body"`
	}) (*bodyOut[domain.Idea], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.ProposeIdea(ctx, engine.IdeaProposal{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			Identity:    identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(idea), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"voting,approved_for_project,rejected,implemented"`
	}) (*bodyOut[[]domain.Idea], error) {
		items, err := e.ListIdeas(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}",
		Summary:     "Get idea",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		IdeaID int64 `path:"idea_id"`
	}) (*bodyOut[domain.Idea], error) {
		idea, err := e.GetIdea(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(idea), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "vote-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{idea_id}/votes",
		Summary:     "Cast the caller's vote",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		IdeaID int64       `path:"idea_id"`
		Body   VoteRequest `json:"body"`
	}) (*bodyOut[domain.Idea], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.VoteIdea(ctx, input.IdeaID, domain.VoteType(input.Body.Type), identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(idea), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-votes",
		Method:      http.MethodGet,
		Path:        "/ideas/{idea_id}/votes",
		Summary:     "List votes on an idea",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		IdeaID int64 `path:"idea_id"`
	}) (*bodyOut[[]domain.Vote], error) {
		items, err := e.ListVotes(ctx, input.IdeaID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-idea-implemented",
		Method:      http.MethodPost,
		Path:        "/ideas/{idea_id}/implemented",
		Summary:     "Close an approved idea as implemented",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		IdeaID int64 `path:"idea_id"`
	}) (*bodyOut[domain.Idea], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.MarkImplemented(ctx, input.IdeaID, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(idea), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "thresholds",
		Method:      http.MethodGet,
		Path:        "/thresholds",
		Summary:     "Thresholds a new idea would snapshot now",
		Errors:      commonErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOut[ThresholdsResponse], error) {
		days, err := e.WindowDays(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		th, err := e.CurrentThresholds(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ThresholdsResponse{WindowDays: days, Thresholds: th}), nil
	})
}

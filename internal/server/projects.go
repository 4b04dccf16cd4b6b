package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create a project from an approved idea",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*bodyOut[domain.Project], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			SourceIdeaID: input.Body.SourceIdeaID,
			Name:         input.Body.Name,
			GithubRepo:   input.Body.GithubRepo,
			Description:  input.Body.Description,
			Identity:     identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,paused"`
	}) (*bodyOut[[]domain.Project], error) {
		items, err := e.ListProjects(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*bodyOut[domain.Project], error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-project-status",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/status",
		Summary:     "Pause or resume a project",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64                `path:"project_id"`
		Body      ProjectStatusRequest `json:"body"`
	}) (*bodyOut[domain.Project], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProjectStatus(ctx, input.ProjectID, domain.ProjectStatus(input.Body.Status), identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})
}

func registerDiscoveries(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "discover-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/discoveries",
		Summary:       "File a discovered task for review",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64           `path:"project_id"`
		Body      DiscoverRequest `json:"body"`
	}) (*bodyOut[domain.DiscoveredTask], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.Discover(ctx, engine.DiscoveryOptions{
			CurrentTaskID: input.Body.CurrentTaskID,
			ProjectID:     input.ProjectID,
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			Priority:      input.Body.Priority,
			TaskType:      input.Body.TaskType,
			Severity:      input.Body.Severity,
			Identity:      identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-discoveries",
		Method:      http.MethodGet,
		Path:        "/discoveries",
		Summary:     "List discovered tasks",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `query:"project_id"`
		Status    string `query:"status" enum:"pending_review,approved,rejected,escalated_to_idea"`
	}) (*bodyOut[[]domain.DiscoveredTask], error) {
		items, err := e.ListDiscoveries(ctx, repo.DiscoveryFilters{ProjectID: input.ProjectID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-discovery",
		Method:      http.MethodGet,
		Path:        "/discoveries/{discovery_id}",
		Summary:     "Get discovered task",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		DiscoveryID int64 `path:"discovery_id"`
	}) (*bodyOut[domain.DiscoveredTask], error) {
		d, err := e.GetDiscovery(ctx, input.DiscoveryID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-discovery",
		Method:      http.MethodPost,
		Path:        "/discoveries/{discovery_id}/review",
		Summary:     "Approve, reject or escalate a discovered task",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		DiscoveryID int64         `path:"discovery_id"`
		Body        ReviewRequest `json:"body"`
	}) (*bodyOut[domain.DiscoveredTask], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.ReviewDiscovery(ctx, input.DiscoveryID, domain.ReviewDecision(input.Body.Decision), input.Body.Reason, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})
}

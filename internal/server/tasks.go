package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID int64             `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*bodyOut[domain.Task], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ProjectID:      input.ProjectID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			SourceIdeaID:   input.Body.SourceIdeaID,
			GithubIssueURL: input.Body.GithubIssueURL,
			Identity:       identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID  int64  `query:"project_id"`
		Status     string `query:"status" enum:"open,claimed,in_progress,review,completed,blocked,archived"`
		AssignedTo string `query:"assigned_to"`
		Limit      int    `query:"limit" default:"50"`
	}) (*bodyOut[[]domain.Task], error) {
		items, err := e.ListTasks(ctx, repo.TaskFilters{
			ProjectID:  input.ProjectID,
			Status:     input.Status,
			AssignedTo: input.AssignedTo,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"task_id"`
	}) (*bodyOut[domain.Task], error) {
		t, err := e.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/claim",
		Summary:     "Claim an open task",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"task_id"`
	}) (*bodyOut[domain.Task], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ClaimTask(ctx, input.TaskID, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Move a task through its lifecycle",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64             `path:"task_id"`
		Body   TaskStatusRequest `json:"body"`
	}) (*bodyOut[domain.Task], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTaskStatus(ctx, engine.TaskStatusOptions{
			TaskID:        input.TaskID,
			Status:        domain.TaskStatus(input.Body.Status),
			GithubPRURL:   input.Body.GithubPRURL,
			ArchiveReason: input.Body.ArchiveReason,
			Identity:      identity,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-dependency",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/dependencies",
		Summary:       "Add a dependency edge",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64             `path:"task_id"`
		Body   DependencyRequest `json:"body"`
	}) (*bodyOut[domain.TaskDependency], error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		depType := domain.DependencyType(input.Body.Type)
		if depType == "" {
			depType = domain.DepBlocks
		}
		d, err := e.AddDependency(ctx, input.TaskID, input.Body.DependsOnID, depType, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-dependencies",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/dependencies",
		Summary:     "List a task's dependencies",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"task_id"`
	}) (*bodyOut[[]domain.TaskDependency], error) {
		items, err := e.ListDependencies(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-blockers",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/blockers",
		Summary:     "Whether a blocking dependency is unfinished",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"task_id"`
	}) (*bodyOut[BlockersResponse], error) {
		blocked, err := e.HasOpenBlockers(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BlockersResponse{TaskID: input.TaskID, Blocked: blocked}), nil
	})
}

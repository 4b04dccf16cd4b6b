package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nexus/internal/domain"
	"nexus/internal/engine/depgraph"
	"nexus/internal/events"
	"nexus/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID      int64
	Title          string
	Description    string
	Priority       int
	SourceIdeaID   *int64
	GithubIssueURL string
	Identity       string
}

// CreateTask adds an Open task to a project. Admin only.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	var out domain.Task
	err := e.withTx(ctx, "create_task", func(tx *sql.Tx, ob *outbox) error {
		if err := e.authority().RequireRole(ctx, tx, opts.Identity, domain.RoleAdmin); err != nil {
			return err
		}
		creator, err := e.caller(ctx, tx, opts.Identity)
		if err != nil {
			return err
		}
		if strings.TrimSpace(opts.Title) == "" {
			return domain.Errorf(domain.ErrValidation, "title is required")
		}
		if err := validPriority(opts.Priority); err != nil {
			return err
		}
		if _, err := getProject(ctx, e.Repo, tx, opts.ProjectID); err != nil {
			return err
		}
		if opts.SourceIdeaID != nil {
			if _, err := getIdea(ctx, e.Repo, tx, *opts.SourceIdeaID); err != nil {
				return err
			}
		}
		now := e.stamp()
		t, err := e.Repo.InsertTask(ctx, tx, domain.Task{
			ProjectID:      opts.ProjectID,
			Title:          strings.TrimSpace(opts.Title),
			Description:    opts.Description,
			Status:         domain.TaskOpen,
			Priority:       opts.Priority,
			SourceIdeaID:   opts.SourceIdeaID,
			GithubIssueURL: optionalString(opts.GithubIssueURL),
			CreatedBy:      creator.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		if err := e.event(ctx, tx, "task.create", "task", idString(t.ID), opts.Identity, events.EventPayload{
			"project_id": t.ProjectID, "priority": t.Priority,
		}); err != nil {
			return err
		}
		ob.post(ChannelGeneral, fmt.Sprintf("New task created: %d", t.ID))
		out = t
		return nil
	})
	return out, err
}

// ClaimTask assigns an Open, unblocked task in an active project to the caller.
func (e Engine) ClaimTask(ctx context.Context, taskID int64, identity string) (domain.Task, error) {
	var out domain.Task
	err := e.withTx(ctx, "claim_task", func(tx *sql.Tx, _ *outbox) error {
		agent, err := e.caller(ctx, tx, identity)
		if err != nil {
			return err
		}
		t, err := getTask(ctx, e.Repo, tx, taskID)
		if err != nil {
			return err
		}
		project, err := getProject(ctx, e.Repo, tx, t.ProjectID)
		if err != nil {
			return err
		}
		if t.Status != domain.TaskOpen {
			return domain.Errorf(domain.ErrInvalidState, "task %d is not available (status %s)", t.ID, t.Status)
		}
		if project.Status != domain.ProjectActive {
			return domain.Errorf(domain.ErrInvalidState, "project %d is not active", project.ID)
		}
		blocked, err := e.hasOpenBlockers(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if blocked {
			return domain.Errorf(domain.ErrInvalidState, "task %d has uncompleted dependencies", t.ID)
		}

		now := e.stamp()
		t.Status = domain.TaskClaimed
		t.AssignedTo = &agent.ID
		t.ClaimedAt = &now
		t.BlockedFromStatus = nil
		t.ArchivedReason = nil
		t.StatusChangedBy = &identity
		t.StatusChangedAt = &now
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}

		agent.Status = domain.AgentOnline
		agent.CurrentTaskID = nil
		agent.LastActiveAt = now
		if err := e.Repo.UpdateAgent(ctx, tx, agent); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "task.claim", "task", idString(t.ID), identity, events.EventPayload{"agent_id": agent.ID}); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// TaskStatusOptions is the argument bundle for UpdateTaskStatus.
type TaskStatusOptions struct {
	TaskID        int64
	Status        domain.TaskStatus
	GithubPRURL   string
	ArchiveReason *string
	Identity      string
}

// UpdateTaskStatus moves a claimed task through its lifecycle.
func (e Engine) UpdateTaskStatus(ctx context.Context, opts TaskStatusOptions) (domain.Task, error) {
	var out domain.Task
	err := e.withTx(ctx, "update_task_status", func(tx *sql.Tx, _ *outbox) error {
		if _, err := domain.ParseTaskStatus(string(opts.Status)); err != nil {
			return err
		}
		agent, err := e.caller(ctx, tx, opts.Identity)
		if err != nil {
			return err
		}
		t, err := getTask(ctx, e.Repo, tx, opts.TaskID)
		if err != nil {
			return err
		}
		privileged, err := e.privileged(ctx, tx, opts.Identity)
		if err != nil {
			return err
		}
		next := opts.Status
		assignee := t.AssignedTo != nil && *t.AssignedTo == agent.ID
		switch {
		case !assignee && !privileged:
			return domain.Errorf(domain.ErrUnauthorized, "not assigned to task %d", t.ID)
		case next == domain.TaskArchived && !privileged:
			return domain.Errorf(domain.ErrUnauthorized, "only admin or zoe can archive tasks")
		case next != domain.TaskArchived && opts.ArchiveReason != nil:
			return domain.Errorf(domain.ErrValidation, "archive reason can only be provided when archiving")
		case t.Status == domain.TaskArchived && next == domain.TaskArchived:
			out = t
			return nil
		case t.Status == domain.TaskArchived:
			return domain.Errorf(domain.ErrInvalidState, "archived tasks are immutable")
		case t.Status == domain.TaskReview && next == domain.TaskCompleted && !privileged:
			return domain.Errorf(domain.ErrUnauthorized, "only admin or zoe can move a task from review to completed")
		case t.Status == domain.TaskOpen && next != domain.TaskArchived:
			return domain.Errorf(domain.ErrInvalidTransition, "use claim to transition open task %d", t.ID)
		}
		if err := CheckTaskTransition(t.Status, next, t.BlockedFromStatus); err != nil {
			return err
		}

		now := e.stamp()
		prev := t.Status
		switch {
		case next == domain.TaskBlocked && prev != domain.TaskBlocked:
			from := prev
			t.BlockedFromStatus = &from
			t.ArchivedReason = nil
		case next == domain.TaskBlocked:
			// still blocked; keep the status to restore
		case next == domain.TaskArchived:
			t.BlockedFromStatus = nil
			t.ArchivedReason = opts.ArchiveReason
		default:
			t.BlockedFromStatus = nil
			t.ArchivedReason = nil
		}
		if next == domain.TaskReview && prev != domain.TaskReview {
			t.ReviewCount++
		}
		if opts.GithubPRURL != "" {
			t.GithubPRURL = &opts.GithubPRURL
		}
		if prev != next {
			t.StatusChangedBy = &opts.Identity
			t.StatusChangedAt = &now
		}
		t.Status = next
		t.UpdatedAt = now
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}

		// Re-read after the write before touching the assignee.
		t, err = getTask(ctx, e.Repo, tx, t.ID)
		if err != nil {
			return err
		}
		if err := e.syncAssignee(ctx, tx, t, now); err != nil {
			return err
		}
		if err := e.touch(ctx, tx, agent.ID); err != nil {
			return err
		}
		if err := e.event(ctx, tx, "task.status", "task", idString(t.ID), opts.Identity, events.EventPayload{
			"from": prev, "to": next,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// syncAssignee keeps the assignee's working state consistent with the task.
func (e Engine) syncAssignee(ctx context.Context, tx *sql.Tx, t domain.Task, now string) error {
	if t.AssignedTo == nil {
		return nil
	}
	a, err := e.Repo.GetAgent(ctx, tx, *t.AssignedTo)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case t.Status == domain.TaskInProgress:
		id := t.ID
		a.Status = domain.AgentWorking
		a.CurrentTaskID = &id
	case a.CurrentTaskID != nil && *a.CurrentTaskID == t.ID:
		a.Status = domain.AgentOnline
		a.CurrentTaskID = nil
	default:
		return nil
	}
	a.LastActiveAt = now
	return e.Repo.UpdateAgent(ctx, tx, a)
}

// AddDependency records that taskID depends on dependsOn.
func (e Engine) AddDependency(ctx context.Context, taskID, dependsOn int64, depType domain.DependencyType, identity string) (domain.TaskDependency, error) {
	var out domain.TaskDependency
	err := e.withTx(ctx, "add_task_dependency", func(tx *sql.Tx, _ *outbox) error {
		depType, err := domain.ParseDependencyType(string(depType))
		if err != nil {
			return err
		}
		if _, err := e.caller(ctx, tx, identity); err != nil {
			return err
		}
		if taskID == dependsOn {
			return domain.Errorf(domain.ErrValidation, "task %d cannot depend on itself", taskID)
		}
		if _, err := getTask(ctx, e.Repo, tx, taskID); err != nil {
			return err
		}
		if _, err := getTask(ctx, e.Repo, tx, dependsOn); err != nil {
			return err
		}
		exists, err := e.Repo.DependencyExists(ctx, tx, taskID, dependsOn, depType)
		if err != nil {
			return err
		}
		if exists {
			return domain.Errorf(domain.ErrConflict, "dependency %d -> %d (%s) already exists", taskID, dependsOn, depType)
		}
		if depType.Blocking() {
			cyc, err := depgraph.WouldCycle(ctx, taskID, dependsOn, e.blockingNeighbors(tx))
			if err != nil {
				return err
			}
			if cyc {
				return domain.Errorf(domain.ErrConflict, "dependency %d -> %d would create a cycle", taskID, dependsOn)
			}
		}
		out = domain.TaskDependency{TaskID: taskID, DependsOnID: dependsOn, Type: depType, CreatedAt: e.stamp()}
		if err := e.Repo.InsertDependency(ctx, tx, out); err != nil {
			return fmt.Errorf("insert dependency: %w", err)
		}
		return e.event(ctx, tx, "task.dependency.add", "task", idString(taskID), identity, events.EventPayload{
			"depends_on": dependsOn, "type": depType,
		})
	})
	return out, err
}

func (e Engine) blockingNeighbors(tx *sql.Tx) depgraph.NeighborFunc {
	return func(ctx context.Context, id int64) ([]int64, error) {
		deps, err := e.Repo.ListDependencies(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, len(deps))
		for _, d := range deps {
			if d.Type.Blocking() {
				out = append(out, d.DependsOnID)
			}
		}
		return out, nil
	}
}

func (e Engine) hasOpenBlockers(ctx context.Context, tx *sql.Tx, taskID int64) (bool, error) {
	deps, err := e.Repo.ListDependencies(ctx, tx, taskID)
	if err != nil {
		return false, err
	}
	for _, d := range deps {
		if !d.Type.Blocking() {
			continue
		}
		blocker, err := e.Repo.GetTask(ctx, tx, d.DependsOnID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if blocker.Status != domain.TaskCompleted {
			return true, nil
		}
	}
	return false, nil
}

// HasOpenBlockers reports whether a blocking dependency of the task is unfinished.
func (e Engine) HasOpenBlockers(ctx context.Context, taskID int64) (bool, error) {
	if _, err := getTask(ctx, e.Repo, nil, taskID); err != nil {
		return false, err
	}
	return e.hasOpenBlockers(ctx, nil, taskID)
}

func (e Engine) ListDependencies(ctx context.Context, taskID int64) ([]domain.TaskDependency, error) {
	if _, err := getTask(ctx, e.Repo, nil, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListDependencies(ctx, nil, taskID)
}

func (e Engine) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return getTask(ctx, e.Repo, nil, id)
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, nil, f)
}

package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/config"
	"nexus/internal/db"
	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/migrate"
	"nexus/internal/repo"
)

const operator = "op"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	clock  *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Operators = []string{operator}
	env := &testEnv{Ctx: context.Background()}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	env.clock = &now
	env.Engine = engine.New(conn, cfg)
	env.Engine.Now = func() time.Time { return *env.clock }
	if _, err := env.Engine.Bootstrap(env.Ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := env.Engine.RegisterAgent(env.Ctx, engine.RegisterOptions{
		AgentID: "zoe-1", Name: "Zoe", Role: domain.RoleZoe, Identity: operator,
	}); err != nil {
		t.Fatalf("register operator: %v", err)
	}
	return env
}

func (env *testEnv) advance(d time.Duration) {
	next := env.clock.Add(d)
	*env.clock = next
}

func (env *testEnv) register(t *testing.T, identity string) domain.Agent {
	t.Helper()
	a, err := env.Engine.RegisterAgent(env.Ctx, engine.RegisterOptions{
		AgentID: "agent-" + identity, Name: "Agent " + identity, Identity: identity,
	})
	if err != nil {
		t.Fatalf("register %s: %v", identity, err)
	}
	return a
}

// project seeds an approved idea directly and builds a project on it.
func (env *testEnv) project(t *testing.T) domain.Project {
	t.Helper()
	now := env.clock.UTC().Format(time.RFC3339)
	idea, err := env.Engine.Repo.InsertIdea(env.Ctx, nil, domain.Idea{
		Title: "seed", Status: domain.IdeaApprovedForProject,
		Quorum: 5, ApprovalThreshold: 5, VetoThreshold: 3,
		CreatedBy: "zoe-1", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed idea: %v", err)
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		SourceIdeaID: idea.ID, Name: "Project " + fmt.Sprint(idea.ID), Identity: operator,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (env *testEnv) task(t *testing.T, projectID int64, title string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: projectID, Title: title, Identity: operator})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env *testEnv) setStatus(identity string, taskID int64, status domain.TaskStatus) (domain.Task, error) {
	return env.Engine.UpdateTaskStatus(env.Ctx, engine.TaskStatusOptions{TaskID: taskID, Status: status, Identity: identity})
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	z := env.register(t, "z1")
	p := env.project(t)
	task := env.task(t, p.ID, "Do work")
	assert.Equal(t, domain.TaskOpen, task.Status)

	task, err := env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskClaimed, task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, z.ID, *task.AssignedTo)
	assert.NotNil(t, task.ClaimedAt)

	a, err := env.Engine.SetAgentStatus(env.Ctx, domain.AgentWorking, &task.ID, "z1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentWorking, a.Status)
	task, err = env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, task.Status)

	task, err = env.setStatus("z1", task.ID, domain.TaskReview)
	require.NoError(t, err)
	assert.Equal(t, 1, task.ReviewCount)

	_, err = env.setStatus("z1", task.ID, domain.TaskCompleted)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	task, err = env.setStatus(operator, task.ID, domain.TaskCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	require.NotNil(t, task.StatusChangedBy)
	assert.Equal(t, operator, *task.StatusChangedBy)

	a, err = env.Engine.GetAgent(env.Ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentOnline, a.Status)
	assert.Nil(t, a.CurrentTaskID)
}

func TestCheckTaskTransitionTable(t *testing.T) {
	allowed := map[domain.TaskStatus][]domain.TaskStatus{
		domain.TaskClaimed:    {domain.TaskInProgress, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskInProgress: {domain.TaskReview, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskReview:     {domain.TaskCompleted, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskCompleted:  {domain.TaskArchived},
		domain.TaskOpen:       {domain.TaskArchived},
		domain.TaskArchived:   {},
	}
	for cur, nexts := range allowed {
		for _, next := range domain.TaskStatuses {
			want := cur == next
			for _, n := range nexts {
				if n == next {
					want = true
				}
			}
			err := engine.CheckTaskTransition(cur, next, nil)
			if want {
				assert.NoError(t, err, "%s -> %s", cur, next)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", cur, next)
			}
		}
	}

	from := domain.TaskReview
	for _, next := range domain.TaskStatuses {
		err := engine.CheckTaskTransition(domain.TaskBlocked, next, &from)
		switch next {
		case domain.TaskReview, domain.TaskBlocked, domain.TaskArchived:
			assert.NoError(t, err, "blocked -> %s", next)
		default:
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, "blocked -> %s", next)
		}
	}
}

// taskIn drives a fresh task into status through the public commands.
func (env *testEnv) taskIn(t *testing.T, projectID int64, status domain.TaskStatus) domain.Task {
	t.Helper()
	task := env.task(t, projectID, "in "+string(status))
	if status == domain.TaskOpen {
		return task
	}
	if status == domain.TaskArchived {
		task, err := env.setStatus(operator, task.ID, domain.TaskArchived)
		require.NoError(t, err)
		return task
	}
	task, err := env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	require.NoError(t, err)
	path := map[domain.TaskStatus][]domain.TaskStatus{
		domain.TaskClaimed:    {},
		domain.TaskInProgress: {domain.TaskInProgress},
		domain.TaskReview:     {domain.TaskInProgress, domain.TaskReview},
		domain.TaskCompleted:  {domain.TaskInProgress, domain.TaskReview, domain.TaskCompleted},
		domain.TaskBlocked:    {domain.TaskInProgress, domain.TaskBlocked},
	}[status]
	for _, step := range path {
		task, err = env.setStatus(operator, task.ID, step)
		require.NoError(t, err, "-> %s", step)
	}
	require.Equal(t, status, task.Status)
	return task
}

func TestUpdateTaskStatusTable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)

	allowed := map[domain.TaskStatus][]domain.TaskStatus{
		domain.TaskOpen:       {domain.TaskArchived},
		domain.TaskClaimed:    {domain.TaskClaimed, domain.TaskInProgress, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskInProgress: {domain.TaskInProgress, domain.TaskReview, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskReview:     {domain.TaskReview, domain.TaskCompleted, domain.TaskBlocked, domain.TaskArchived},
		domain.TaskCompleted:  {domain.TaskCompleted, domain.TaskArchived},
		domain.TaskBlocked:    {domain.TaskBlocked, domain.TaskInProgress, domain.TaskArchived},
		domain.TaskArchived:   {domain.TaskArchived},
	}
	for _, cur := range domain.TaskStatuses {
		for _, next := range domain.TaskStatuses {
			task := env.taskIn(t, p.ID, cur)
			want := false
			for _, n := range allowed[cur] {
				if n == next {
					want = true
				}
			}
			got, err := env.setStatus(operator, task.ID, next)
			switch {
			case want:
				if assert.NoError(t, err, "%s -> %s", cur, next) {
					assert.Equal(t, next, got.Status, "%s -> %s", cur, next)
				}
			case cur == domain.TaskArchived:
				assert.ErrorIs(t, err, domain.ErrInvalidState, "%s -> %s", cur, next)
			default:
				assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", cur, next)
			}
		}
	}
}

func TestBlockedRestoresOnlyPriorStatus(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)
	task := env.task(t, p.ID, "blocky")
	_, err := env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	require.NoError(t, err)
	_, err = env.setStatus("z1", task.ID, domain.TaskInProgress)
	require.NoError(t, err)

	task, err = env.setStatus("z1", task.ID, domain.TaskBlocked)
	require.NoError(t, err)
	require.NotNil(t, task.BlockedFromStatus)
	assert.Equal(t, domain.TaskInProgress, *task.BlockedFromStatus)

	_, err = env.setStatus("z1", task.ID, domain.TaskReview)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	task, err = env.setStatus("z1", task.ID, domain.TaskInProgress)
	require.NoError(t, err)
	assert.Nil(t, task.BlockedFromStatus)
}

func TestArchiveRules(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)
	task := env.task(t, p.ID, "to archive")
	_, err := env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	require.NoError(t, err)

	reason := "duplicate"
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, engine.TaskStatusOptions{TaskID: task.ID, Status: domain.TaskInProgress, ArchiveReason: &reason, Identity: "z1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.setStatus("z1", task.ID, domain.TaskArchived)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	task, err = env.Engine.UpdateTaskStatus(env.Ctx, engine.TaskStatusOptions{TaskID: task.ID, Status: domain.TaskArchived, ArchiveReason: &reason, Identity: operator})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskArchived, task.Status)
	require.NotNil(t, task.ArchivedReason)
	assert.Equal(t, reason, *task.ArchivedReason)

	_, err = env.setStatus(operator, task.ID, domain.TaskInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.setStatus("z1", task.ID, domain.TaskArchived)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	again, err := env.setStatus(operator, task.ID, domain.TaskArchived)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskArchived, again.Status)
	require.NotNil(t, again.ArchivedReason)
	assert.Equal(t, reason, *again.ArchivedReason)
}

func TestOpenTaskNeedsClaim(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	task := env.task(t, p.ID, "open")
	_, err := env.setStatus(operator, task.ID, domain.TaskInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	env.register(t, "z1")
	_, err = env.setStatus("z1", task.ID, domain.TaskInProgress)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "x", Identity: "z1"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "x", Priority: 11, Identity: operator})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: 999, Title: "x", Identity: operator})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestClaimGating(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	env.register(t, "z2")
	p := env.project(t)
	dep := env.task(t, p.ID, "dep")
	main := env.task(t, p.ID, "main")
	_, err := env.Engine.AddDependency(env.Ctx, main.ID, dep.ID, domain.DepBlocks, "z1")
	require.NoError(t, err)

	blocked, err := env.Engine.HasOpenBlockers(env.Ctx, main.ID)
	require.NoError(t, err)
	assert.True(t, blocked)
	_, err = env.Engine.ClaimTask(env.Ctx, main.ID, "z1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.Engine.ClaimTask(env.Ctx, dep.ID, "z2")
	require.NoError(t, err)
	_, err = env.Engine.ClaimTask(env.Ctx, dep.ID, "z1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	for _, st := range []domain.TaskStatus{domain.TaskInProgress, domain.TaskReview} {
		_, err = env.setStatus("z2", dep.ID, st)
		require.NoError(t, err)
	}
	_, err = env.setStatus(operator, dep.ID, domain.TaskCompleted)
	require.NoError(t, err)

	_, err = env.Engine.ClaimTask(env.Ctx, main.ID, "z1")
	require.NoError(t, err)
}

func TestClaimRequiresActiveProject(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)
	task := env.task(t, p.ID, "paused")
	_, err := env.Engine.UpdateProjectStatus(env.Ctx, p.ID, domain.ProjectPaused, operator)
	require.NoError(t, err)
	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.Engine.ClaimTask(env.Ctx, 999, "z1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "nobody")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAddDependencyRules(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)
	a := env.task(t, p.ID, "a")
	b := env.task(t, p.ID, "b")
	c := env.task(t, p.ID, "c")

	_, err := env.Engine.AddDependency(env.Ctx, a.ID, b.ID, domain.DepBlocks, "z1")
	require.NoError(t, err)
	_, err = env.Engine.AddDependency(env.Ctx, b.ID, c.ID, domain.DepParentChild, "z1")
	require.NoError(t, err)

	_, err = env.Engine.AddDependency(env.Ctx, c.ID, a.ID, domain.DepBlocks, "z1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = env.Engine.AddDependency(env.Ctx, a.ID, b.ID, domain.DepBlocks, "z1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = env.Engine.AddDependency(env.Ctx, a.ID, a.ID, domain.DepBlocks, "z1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.Engine.AddDependency(env.Ctx, a.ID, 999, domain.DepBlocks, "z1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.AddDependency(env.Ctx, a.ID, c.ID, "sideways", "z1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	deps, err := env.Engine.ListDependencies(env.Ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, b.ID, deps[0].DependsOnID)
}

func TestSetAgentStatusRules(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	env.register(t, "z2")
	p := env.project(t)
	task := env.task(t, p.ID, "mine")

	_, err := env.Engine.SetAgentStatus(env.Ctx, domain.AgentOnline, &task.ID, "z1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.Engine.SetAgentStatus(env.Ctx, domain.AgentWorking, nil, "z1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.Engine.ClaimTask(env.Ctx, task.ID, "z1")
	require.NoError(t, err)
	_, err = env.Engine.SetAgentStatus(env.Ctx, domain.AgentWorking, &task.ID, "z2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	a, err := env.Engine.SetAgentStatus(env.Ctx, domain.AgentOffline, nil, "z1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentOffline, a.Status)

	_, err = env.Engine.SetAgentStatus(env.Ctx, domain.AgentWorking, &task.ID, "z1")
	require.NoError(t, err)
	msgs := env.generalMessages(t)
	require.NotEmpty(t, msgs)
	assert.Equal(t, fmt.Sprintf("Agent z1 is now working on task %d", task.ID), msgs[len(msgs)-1].Content)
	task, err = env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, task.Status)
}

func (env *testEnv) generalMessages(t *testing.T) []domain.Message {
	t.Helper()
	ch, err := env.Engine.ChannelByName(env.Ctx, engine.ChannelGeneral)
	require.NoError(t, err)
	msgs, err := env.Engine.ListMessages(env.Ctx, ch.ID, 0, 500)
	require.NoError(t, err)
	return msgs
}

func TestCommandsPostNotifications(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	task := env.task(t, p.ID, "announce")

	var contents []string
	for _, m := range env.generalMessages(t) {
		assert.Equal(t, domain.MessageSystem, m.Type)
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, fmt.Sprintf("New task created: %d", task.ID))
	assert.Contains(t, contents, fmt.Sprintf("Project '%s' created from idea %d", p.Name, p.SourceIdeaID))
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) PostSystemMessage(context.Context, string, string) error {
	f.calls++
	return errors.New("bus down")
}

func TestNotificationFailureKeepsCommand(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	n := &failingNotifier{}
	env.Engine.Notifier = n

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "survives", Identity: operator})
	require.NoError(t, err)
	assert.Equal(t, 1, n.calls)

	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "survives", got.Title)
}

func TestFailedCommandRollsBack(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	before, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{Limit: 1000})
	require.NoError(t, err)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "  ", Identity: operator})
	assert.ErrorIs(t, err, domain.ErrValidation)

	after, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	tasks, err := env.Engine.ListTasks(env.Ctx, repo.TaskFilters{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain"
	"nexus/internal/engine"
	"nexus/internal/repo"
)

func TestDiscoveryApproveCreatesTask(t *testing.T) {
	env := newTestEnv(t)
	z := env.register(t, "z1")
	p := env.project(t)
	cur := env.task(t, p.ID, "current")

	d, err := env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{
		CurrentTaskID: &cur.ID, ProjectID: p.ID, Title: "Flaky test", Priority: 4, Severity: "high", Identity: "z1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveryPendingReview, d.Status)
	assert.Equal(t, z.ID, d.DiscoveredBy)

	reason := "not needed"
	_, err = env.Engine.ReviewDiscovery(env.Ctx, d.ID, domain.DecisionApproveAsTask, &reason, operator)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.Engine.ReviewDiscovery(env.Ctx, d.ID, domain.DecisionApproveAsTask, nil, "z1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	d, err = env.Engine.ReviewDiscovery(env.Ctx, d.ID, domain.DecisionApproveAsTask, nil, operator)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveryApproved, d.Status)
	require.NotNil(t, d.CreatedTaskID)
	require.NotNil(t, d.ReviewedBy)
	assert.Equal(t, "zoe-1", *d.ReviewedBy)

	task, err := env.Engine.GetTask(env.Ctx, *d.CreatedTaskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOpen, task.Status)
	assert.Equal(t, "Flaky test", task.Title)
	assert.Equal(t, 4, task.Priority)
	assert.Equal(t, p.ID, task.ProjectID)

	_, err = env.Engine.ReviewDiscovery(env.Ctx, d.ID, domain.DecisionReject, nil, operator)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestDiscoveryRejectAndEscalate(t *testing.T) {
	env := newTestEnv(t)
	z := env.register(t, "z1")
	p := env.project(t)

	rej, err := env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{ProjectID: p.ID, Title: "Noise", Identity: "z1"})
	require.NoError(t, err)
	reason := "duplicate"
	rej, err = env.Engine.ReviewDiscovery(env.Ctx, rej.ID, domain.DecisionReject, &reason, operator)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveryRejected, rej.Status)
	require.NotNil(t, rej.RejectionReason)
	assert.Equal(t, reason, *rej.RejectionReason)
	assert.Nil(t, rej.CreatedTaskID)

	esc, err := env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{
		ProjectID: p.ID, Title: "New protocol", Description: "bigger than a task", TaskType: "research", Identity: "z1",
	})
	require.NoError(t, err)
	esc, err = env.Engine.ReviewDiscovery(env.Ctx, esc.ID, domain.DecisionEscalateToIdea, nil, operator)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveryEscalatedToIdea, esc.Status)
	require.NotNil(t, esc.EscalatedIdeaID)

	idea, err := env.Engine.GetIdea(env.Ctx, *esc.EscalatedIdeaID)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaVoting, idea.Status)
	assert.Equal(t, "New protocol", idea.Title)
	assert.Equal(t, "research", idea.Category)
	assert.Equal(t, z.ID, idea.CreatedBy)
	assert.Equal(t, 5, idea.Quorum)

	pending, err := env.Engine.ListDiscoveries(env.Ctx, repo.DiscoveryFilters{Status: string(domain.DiscoveryPendingReview)})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDiscoverValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)

	_, err := env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{ProjectID: 999, Title: "x", Identity: "z1"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{ProjectID: p.ID, Title: "x", Priority: -1, Identity: "z1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.Engine.ReviewDiscovery(env.Ctx, 999, domain.DecisionReject, nil, operator)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.ReviewDiscovery(env.Ctx, 999, "shelve", nil, operator)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreatorsAreAgentIDs(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "z1")
	p := env.project(t)
	assert.Equal(t, "zoe-1", p.CreatedBy)

	direct := env.task(t, p.ID, "direct")
	assert.Equal(t, "zoe-1", direct.CreatedBy)

	d, err := env.Engine.Discover(env.Ctx, engine.DiscoveryOptions{ProjectID: p.ID, Title: "found", Identity: "z1"})
	require.NoError(t, err)
	d, err = env.Engine.ReviewDiscovery(env.Ctx, d.ID, domain.DecisionApproveAsTask, nil, operator)
	require.NoError(t, err)
	require.NotNil(t, d.CreatedTaskID)
	approved, err := env.Engine.GetTask(env.Ctx, *d.CreatedTaskID)
	require.NoError(t, err)
	assert.Equal(t, direct.CreatedBy, approved.CreatedBy)

	require.NoError(t, env.Engine.Auth.AssignRole(env.Ctx, nil, "ghost", domain.RoleAdmin))
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "nobody", Identity: "ghost"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

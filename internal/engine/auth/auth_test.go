package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/db"
	"nexus/internal/domain"
	"nexus/internal/engine/auth"
	"nexus/internal/migrate"
	"nexus/internal/repo"
)

func TestSatisfiesHierarchy(t *testing.T) {
	cases := []struct {
		held, required domain.Role
		want           bool
	}{
		{domain.RoleZoe, domain.RoleZoe, true},
		{domain.RoleZoe, domain.RoleAdmin, true},
		{domain.RoleZoe, domain.RoleZeno, true},
		{domain.RoleAdmin, domain.RoleZoe, false},
		{domain.RoleAdmin, domain.RoleAdmin, true},
		{domain.RoleAdmin, domain.RoleZeno, true},
		{domain.RoleZeno, domain.RoleZoe, false},
		{domain.RoleZeno, domain.RoleAdmin, false},
		{domain.RoleZeno, domain.RoleZeno, true},
		{"", domain.RoleZeno, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, auth.Satisfies(tc.held, tc.required), "%s vs %s", tc.held, tc.required)
	}
}

func newService(t *testing.T, operators ...string) (auth.Service, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return auth.NewService(repo.Repo{DB: conn}, operators), context.Background()
}

func TestRequireRoleWithoutBinding(t *testing.T) {
	svc, ctx := newService(t)

	require.NoError(t, svc.RequireRole(ctx, nil, "stranger", domain.RoleZeno))

	err := svc.RequireRole(ctx, nil, "stranger", domain.RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	var forbidden auth.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, domain.RoleAdmin, forbidden.Role)
}

func TestAssignRoleIsOneShot(t *testing.T) {
	svc, ctx := newService(t)

	require.NoError(t, svc.AssignRole(ctx, nil, "id-1", domain.RoleAdmin))
	ok, err := svc.HasRole(ctx, nil, "id-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	err = svc.AssignRole(ctx, nil, "id-1", domain.RoleZoe)
	assert.ErrorIs(t, err, domain.ErrConflict)

	ok, err = svc.HasRole(ctx, nil, "id-1", domain.RoleZoe)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeedOperatorsGrantsZoeOnce(t *testing.T) {
	svc, ctx := newService(t, "op-1", " op-2 ", "")

	n, err := svc.SeedOperators(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = svc.SeedOperators(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, svc.RequireRole(ctx, nil, "op-2", domain.RoleZoe))
	assert.True(t, svc.CanRequest("op-1", domain.RoleAdmin))
	assert.False(t, svc.CanRequest("other", domain.RoleZoe))
	assert.True(t, svc.CanRequest("other", domain.RoleZeno))
}

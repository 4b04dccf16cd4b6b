package depgraph_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/engine/depgraph"
)

func TestReachableChain(t *testing.T) {
	g := depgraph.Graph{}
	g.Add(1, 2)
	g.Add(2, 3)
	ctx := context.Background()

	ok, err := depgraph.Reachable(ctx, 1, 3, g.Neighbors)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = depgraph.Reachable(ctx, 3, 1, g.Neighbors)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWouldCycle(t *testing.T) {
	g := depgraph.Graph{}
	g.Add(1, 2)
	g.Add(2, 3)
	ctx := context.Background()

	cyc, err := depgraph.WouldCycle(ctx, 3, 1, g.Neighbors)
	require.NoError(t, err)
	assert.True(t, cyc, "3 -> 1 closes 1 -> 2 -> 3")

	cyc, err = depgraph.WouldCycle(ctx, 1, 3, g.Neighbors)
	require.NoError(t, err)
	assert.False(t, cyc, "redundant forward edge is fine")
}

func TestReachableDeepChainDoesNotRecurse(t *testing.T) {
	g := depgraph.Graph{}
	const n = 200000
	for i := int64(0); i < n; i++ {
		g.Add(i, i+1)
	}
	ok, err := depgraph.Reachable(context.Background(), 0, n, g.Neighbors)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReachableTerminatesOnExistingCycle(t *testing.T) {
	g := depgraph.Graph{}
	g.Add(1, 2)
	g.Add(2, 1)
	ok, err := depgraph.Reachable(context.Background(), 1, 9, g.Neighbors)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomInsertionsStayAcyclic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := depgraph.Graph{}
	ctx := context.Background()
	const nodes = 40
	for i := 0; i < 600; i++ {
		from := int64(rng.Intn(nodes))
		to := int64(rng.Intn(nodes))
		if from == to {
			continue
		}
		cyc, err := depgraph.WouldCycle(ctx, from, to, g.Neighbors)
		require.NoError(t, err)
		if !cyc {
			g.Add(from, to)
		}
	}
	for origin := int64(0); origin < nodes; origin++ {
		for _, next := range g[origin] {
			back, err := depgraph.Reachable(ctx, next, origin, g.Neighbors)
			require.NoError(t, err)
			assert.False(t, back, "cycle through %d", origin)
		}
	}
}

// Package depgraph answers reachability questions over task dependency edges.
package depgraph

import "context"

// NeighborFunc returns the ids a node points at through blocking edges.
type NeighborFunc func(ctx context.Context, id int64) ([]int64, error)

// Reachable reports whether target can be reached from start by following
// edges. It walks with an explicit stack and visited set so depth is bounded
// by the number of distinct nodes, not by the goroutine stack.
func Reachable(ctx context.Context, start, target int64, next NeighborFunc) (bool, error) {
	if start == target {
		return true, nil
	}
	visited := map[int64]struct{}{start: {}}
	stack := []int64{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		neighbors, err := next(ctx, cur)
		if err != nil {
			return false, err
		}
		for _, n := range neighbors {
			if n == target {
				return true, nil
			}
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			stack = append(stack, n)
		}
	}
	return false, nil
}

// WouldCycle reports whether adding task -> dependsOn closes a loop, which is
// the case when task is already reachable from dependsOn.
func WouldCycle(ctx context.Context, task, dependsOn int64, next NeighborFunc) (bool, error) {
	return Reachable(ctx, dependsOn, task, next)
}

// Graph is an in-memory adjacency list used for planning and tests.
type Graph map[int64][]int64

func (g Graph) Neighbors(_ context.Context, id int64) ([]int64, error) {
	return g[id], nil
}

// Add records from -> to.
func (g Graph) Add(from, to int64) {
	g[from] = append(g[from], to)
}

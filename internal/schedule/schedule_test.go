package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_LinearChain(t *testing.T) {
	// a -> b -> c -> d
	nodes := []string{"d", "c", "b", "a"}
	edges := []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "d"}}

	sched, err := Compute(nodes, edges)
	require.NoError(t, err)
	require.Equal(t, Schedule{Batch{"a"}, Batch{"b"}, Batch{"c"}, Batch{"d"}}, sched)
}

func TestCompute_Diamond(t *testing.T) {
	// r -> l, r -> m, l -> j, m -> j
	nodes := []string{"j", "l", "m", "r"}
	edges := []Edge{
		{From: "r", To: "l"},
		{From: "r", To: "m"},
		{From: "l", To: "j"},
		{From: "m", To: "j"},
	}

	sched, err := Compute(nodes, edges)
	require.NoError(t, err)
	require.Equal(t, Schedule{Batch{"r"}, Batch{"l", "m"}, Batch{"j"}}, sched)
}

func TestCompute_NoEdges(t *testing.T) {
	nodes := []string{"c", "a", "b"}
	sched, err := Compute(nodes, nil)
	require.NoError(t, err)
	require.Equal(t, Schedule{Batch{"a", "b", "c"}}, sched)
}

func TestCompute_Cycle(t *testing.T) {
	nodes := []string{"alpha", "beta"}
	edges := []Edge{{From: "alpha", To: "beta"}, {From: "beta", To: "alpha"}}

	_, err := Compute(nodes, edges)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []string{"alpha", "beta"}, cycleErr.Nodes)
}

func TestCompute_ExternalPredecessorsDontGateBatching(t *testing.T) {
	// x's only predecessor is external (not in nodes) so x is a root.
	nodes := []string{"x", "y"}
	edges := []Edge{{From: "external", To: "x"}, {From: "x", To: "y"}}

	sched, err := Compute(nodes, edges)
	require.NoError(t, err)
	require.Equal(t, Schedule{Batch{"x"}, Batch{"y"}}, sched)
}

func TestCompute_BatchCountEqualsLongestPathPlusOne(t *testing.T) {
	nodes := []string{"a", "b", "c", "d", "e"}
	edges := []Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "d"},
		{From: "a", To: "e"},
	}

	sched, err := Compute(nodes, edges)
	require.NoError(t, err)
	require.Len(t, sched, 4) // longest path a->b->c->d has 4 nodes

	// invariant 1: every edge goes from an earlier batch to a later one.
	level := make(map[string]int)
	for i, b := range sched {
		for _, n := range b {
			level[n] = i
		}
	}
	for _, e := range edges {
		require.Less(t, level[e.From], level[e.To])
	}
}

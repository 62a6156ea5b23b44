// Package schedule implements the batch scheduler: it topologically
// orders the internal stage graph and partitions it into the minimum
// number of dependency-respecting batches.
//
// This package is grounded on the same in-degree bookkeeping shape a
// reachability graph already uses (edges/reverse-edges maps), generalized
// from "is X reachable from Y" to "assign every node the length of its
// longest predecessor chain".
package schedule

import (
	"fmt"
	"sort"
)

// Batch is an ordered, lexicographically-sorted list of internal stage
// aliases that are pairwise independent and safe to build in parallel.
type Batch []string

// Schedule is the ordered sequence of batches covering every internal
// node exactly once.
type Schedule []Batch

// CycleError is returned when the internal subgraph contains a cycle.
// This is a required, checked property rather than undefined behavior:
// the caller must not emit a bake file when this error is returned.
type CycleError struct {
	// Nodes is the residual subgraph: every alias whose in-degree never
	// reached zero, sorted for deterministic reporting.
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among stages: %v", e.Nodes)
}

// Edge is the minimal edge shape the scheduler needs: a dependency from
// From (must build first) to To (depends on From). Internal-to-internal
// only — external predecessors never gate batching and must already be
// excluded by the caller (internal/stagegraph.Graph does this).
type Edge struct {
	From string
	To   string
}

// Compute assigns every node in nodes a batch using Kahn-style in-degree
// peeling: batch 0 is every node with zero internal in-degree; batch k is
// every node whose last remaining predecessor was in batch k-1. Ordering
// within a batch is lexicographic by alias for reproducibility.
func Compute(nodes []string, edges []Edge) (Schedule, error) {
	indeg := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	known := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		indeg[n] = 0
		known[n] = true
	}
	for _, e := range edges {
		if !known[e.From] || !known[e.To] {
			continue // edge touches a node outside this schedule's universe
		}
		indeg[e.To]++
		succ[e.From] = append(succ[e.From], e.To)
	}

	var schedule Schedule
	remaining := len(nodes)

	current := frontier(indeg, nil)
	for len(current) > 0 {
		sort.Strings(current)
		schedule = append(schedule, Batch(current))
		remaining -= len(current)

		var next []string
		for _, n := range current {
			for _, s := range succ[n] {
				indeg[s]--
				if indeg[s] == 0 {
					next = append(next, s)
				}
			}
		}
		current = next
	}

	if remaining > 0 {
		var residual []string
		for n, d := range indeg {
			if d > 0 {
				residual = append(residual, n)
			}
		}
		sort.Strings(residual)
		return nil, &CycleError{Nodes: residual}
	}

	return schedule, nil
}

// frontier returns every node with indeg == 0, excluding those in skip.
func frontier(indeg map[string]int, skip map[string]bool) []string {
	var out []string
	for n, d := range indeg {
		if d == 0 && !skip[n] {
			out = append(out, n)
		}
	}
	return out
}

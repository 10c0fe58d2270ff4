// Package search implements a generic A* search with a pluggable successor
// function, heuristic and goal predicate.
//
// States must be comparable. Costs accumulate additively along a path and the
// heuristic must never overestimate the remaining cost. Ties between equal
// scores are broken in insertion order.
//
// An EvaluatedPathSet may be supplied to prune transitions that are already
// known to fail. PathSet is a ready-made implementation keyed by path
// signature, which lets callers re-run a search and have it route around
// paths that failed when they were evaluated.
//
// Basic usage:
//
//	result := search.Find(search.Problem[string, string]{
//	    Start:      "a",
//	    Successors: expand,
//	    Goal:       func(n *search.Node[string, string]) bool { return n.State == "z" },
//	})
//	if result.Node != nil {
//	    for _, step := range result.Node.Path() { ... }
//	}
package search

package search

import (
	"fmt"
	"sync"
)

// PathSet is an EvaluatedPathSet of failed path signatures. A transition is
// excluded when the path it would create has been added. Safe for concurrent
// use.
type PathSet[S comparable, E any] struct {
	mu    sync.RWMutex
	paths map[string]struct{}

	// Fallback is consulted for transitions not in the set. Optional.
	Fallback func(signature string) bool
}

// NewPathSet creates an empty set.
func NewPathSet[S comparable, E any]() *PathSet[S, E] {
	return &PathSet[S, E]{paths: make(map[string]struct{})}
}

// TransitionSignature is the signature of the path parent->t.To.
func TransitionSignature[S comparable, E any](parent *Node[S, E], t Transition[S, E]) string {
	return parent.Signature() + "->" + fmt.Sprint(t.To)
}

// Add marks the path to n as failed.
func (ps *PathSet[S, E]) Add(n *Node[S, E]) string {
	sig := n.Signature()
	ps.AddSignature(sig)
	return sig
}

// AddSignature marks a path signature as failed.
func (ps *PathSet[S, E]) AddSignature(sig string) {
	ps.mu.Lock()
	ps.paths[sig] = struct{}{}
	ps.mu.Unlock()
}

// Contains reports whether sig has been added.
func (ps *PathSet[S, E]) Contains(sig string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	_, ok := ps.paths[sig]
	return ok
}

// Len returns the number of failed paths.
func (ps *PathSet[S, E]) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.paths)
}

// Excludes implements EvaluatedPathSet.
func (ps *PathSet[S, E]) Excludes(parent *Node[S, E], t Transition[S, E]) bool {
	sig := TransitionSignature(parent, t)
	if ps.Contains(sig) {
		return true
	}
	return ps.Fallback != nil && ps.Fallback(sig)
}

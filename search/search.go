package search

import (
	"container/heap"
	"fmt"
	"strings"
	"time"
)

// Transition is one edge leaving a state.
type Transition[S comparable, E any] struct {
	To   S
	Edge E
	Cost float64
}

// Node is a state reached by a specific path.
type Node[S comparable, E any] struct {
	State  S
	Edge   E // the edge taken to reach State; zero for the start node
	Parent *Node[S, E]
	Cost   float64 // accumulated path cost
	Score  float64 // Cost plus heuristic
	Depth  int
}

// Path returns the nodes from the start node to n.
func (n *Node[S, E]) Path() []*Node[S, E] {
	path := make([]*Node[S, E], n.Depth+1)
	for cur := n; cur != nil; cur = cur.Parent {
		path[cur.Depth] = cur
	}
	return path
}

// Signature identifies the path to n by its states.
func (n *Node[S, E]) Signature() string {
	path := n.Path()
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprint(p.State)
	}
	return strings.Join(parts, "->")
}

// EvaluatedPathSet decides whether a transition from parent should be pruned.
type EvaluatedPathSet[S comparable, E any] interface {
	Excludes(parent *Node[S, E], t Transition[S, E]) bool
}

// Problem describes one search.
type Problem[S comparable, E any] struct {
	Start      S
	Successors func(n *Node[S, E]) []Transition[S, E]
	Goal       func(n *Node[S, E]) bool

	// Heuristic estimates the remaining cost from a state. Nil means zero,
	// which makes the search uniform-cost.
	Heuristic func(s S) float64

	// Exclude prunes transitions before they are admitted. Optional.
	Exclude EvaluatedPathSet[S, E]

	// Cancelled is polled before every expansion. Optional.
	Cancelled func() bool

	// MaxIterations bounds the number of expansions. Zero means unbounded.
	MaxIterations int
}

// Result is the outcome of Find. Node is nil unless the goal was reached.
type Result[S comparable, E any] struct {
	Node       *Node[S, E]
	Iterations int
	Elapsed    time.Duration
	Cancelled  bool
	Truncated  bool
}

// Found reports whether the goal was reached.
func (r Result[S, E]) Found() bool { return r.Node != nil }

// Find runs the search to completion, cancellation or the iteration bound.
// It never expands a finalized state again unless a strictly better path to
// it is found.
func Find[S comparable, E any](p Problem[S, E]) Result[S, E] {
	started := time.Now()
	result := Result[S, E]{}
	finish := func(n *Node[S, E]) Result[S, E] {
		result.Node = n
		result.Elapsed = time.Since(started)
		return result
	}

	h := p.Heuristic
	if h == nil {
		h = func(S) float64 { return 0 }
	}

	open := make(map[S]*Node[S, E])
	closed := make(map[S]*Node[S, E])
	queue := &priorityQueue[S, E]{}

	root := &Node[S, E]{State: p.Start, Score: h(p.Start)}
	open[p.Start] = root
	queue.add(root)

	for queue.Len() > 0 {
		if p.Cancelled != nil && p.Cancelled() {
			result.Cancelled = true
			return finish(nil)
		}
		if p.MaxIterations > 0 && result.Iterations >= p.MaxIterations {
			result.Truncated = true
			return finish(nil)
		}

		current := heap.Pop(queue).(*item[S, E]).node
		if open[current.State] != current {
			// superseded by a better path
			continue
		}
		delete(open, current.State)
		closed[current.State] = current
		result.Iterations++

		if p.Goal(current) {
			return finish(current)
		}

		for _, t := range p.Successors(current) {
			if p.Exclude != nil && p.Exclude.Excludes(current, t) {
				continue
			}
			cost := current.Cost + t.Cost
			score := cost + h(t.To)

			if existing, ok := open[t.To]; ok && existing.Score <= score {
				continue
			}
			if existing, ok := closed[t.To]; ok {
				if existing.Score <= score {
					continue
				}
				delete(closed, t.To)
			}

			child := &Node[S, E]{
				State:  t.To,
				Edge:   t.Edge,
				Parent: current,
				Cost:   cost,
				Score:  score,
				Depth:  current.Depth + 1,
			}
			open[t.To] = child
			queue.add(child)
		}
	}
	return finish(nil)
}

type item[S comparable, E any] struct {
	node *Node[S, E]
	seq  uint64
}

// priorityQueue orders by score, then by insertion.
type priorityQueue[S comparable, E any] struct {
	items []*item[S, E]
	seq   uint64
}

func (pq *priorityQueue[S, E]) add(n *Node[S, E]) {
	pq.seq++
	heap.Push(pq, &item[S, E]{node: n, seq: pq.seq})
}

func (pq *priorityQueue[S, E]) Len() int { return len(pq.items) }

func (pq *priorityQueue[S, E]) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.node.Score != b.node.Score {
		return a.node.Score < b.node.Score
	}
	return a.seq < b.seq
}

func (pq *priorityQueue[S, E]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *priorityQueue[S, E]) Push(x any) {
	pq.items = append(pq.items, x.(*item[S, E]))
}

func (pq *priorityQueue[S, E]) Pop() any {
	old := pq.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	pq.items = old[:n-1]
	return it
}

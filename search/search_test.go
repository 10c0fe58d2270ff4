package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weighted map[string][]Transition[string, string]

func (w weighted) expand(n *Node[string, string]) []Transition[string, string] {
	return w[n.State]
}

func edge(to string, cost float64) Transition[string, string] {
	return Transition[string, string]{To: to, Edge: "->" + to, Cost: cost}
}

func goalIs(state string) func(*Node[string, string]) bool {
	return func(n *Node[string, string]) bool { return n.State == state }
}

func states(n *Node[string, string]) []string {
	var out []string
	for _, p := range n.Path() {
		out = append(out, p.State)
	}
	return out
}

func TestFind_CheapestPath(t *testing.T) {
	g := weighted{
		"a": {edge("b", 1), edge("c", 5)},
		"b": {edge("c", 1)},
		"c": {edge("d", 1)},
	}
	result := Find(Problem[string, string]{Start: "a", Successors: g.expand, Goal: goalIs("d")})

	require.True(t, result.Found())
	assert.Equal(t, []string{"a", "b", "c", "d"}, states(result.Node))
	assert.Equal(t, 3.0, result.Node.Cost)
	assert.Equal(t, "->d", result.Node.Edge)
	assert.Equal(t, "a->b->c->d", result.Node.Signature())
}

func TestFind_StartIsGoal(t *testing.T) {
	result := Find(Problem[string, string]{Start: "a", Successors: weighted{}.expand, Goal: goalIs("a")})
	require.True(t, result.Found())
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 0, result.Node.Depth)
}

func TestFind_ExhaustsOnCycle(t *testing.T) {
	g := weighted{
		"a": {edge("b", 1)},
		"b": {edge("c", 1)},
		"c": {edge("a", 1), edge("b", 1)},
	}
	result := Find(Problem[string, string]{Start: "a", Successors: g.expand, Goal: goalIs("z")})

	assert.False(t, result.Found())
	assert.False(t, result.Cancelled)
	assert.Equal(t, 3, result.Iterations)
}

func TestFind_TiesBrokenByInsertionOrder(t *testing.T) {
	g := weighted{
		"start": {edge("x", 1), edge("y", 1)},
		"x":     {edge("goal", 1)},
		"y":     {edge("goal", 1)},
	}
	result := Find(Problem[string, string]{Start: "start", Successors: g.expand, Goal: goalIs("goal")})
	require.True(t, result.Found())
	assert.Equal(t, []string{"start", "x", "goal"}, states(result.Node))

	g["start"] = []Transition[string, string]{edge("y", 1), edge("x", 1)}
	result = Find(Problem[string, string]{Start: "start", Successors: g.expand, Goal: goalIs("goal")})
	require.True(t, result.Found())
	assert.Equal(t, []string{"start", "y", "goal"}, states(result.Node))
}

func TestFind_HeuristicGuidesExpansion(t *testing.T) {
	g := weighted{
		"a":  {edge("l1", 1), edge("r1", 1)},
		"l1": {edge("l2", 1)},
		"l2": {edge("goal", 1)},
		"r1": {edge("r2", 1)},
		"r2": {edge("r3", 1)},
	}
	remaining := map[string]float64{"a": 3, "l1": 2, "l2": 1, "goal": 0, "r1": 10, "r2": 10, "r3": 10}
	result := Find(Problem[string, string]{
		Start:      "a",
		Successors: g.expand,
		Goal:       goalIs("goal"),
		Heuristic:  func(s string) float64 { return remaining[s] },
	})
	require.True(t, result.Found())
	assert.Equal(t, 4, result.Iterations, "right branch is never expanded")
}

func TestFind_ClosedStatesNotRevisitedWithWorseScore(t *testing.T) {
	expansions := map[string]int{}
	g := weighted{
		"a": {edge("b", 1), edge("c", 1)},
		"b": {edge("c", 5), edge("d", 1)},
		"c": {edge("b", 5), edge("d", 1)},
		"d": {edge("a", 1), edge("b", 1), edge("c", 1)},
	}
	result := Find(Problem[string, string]{
		Start: "a",
		Successors: func(n *Node[string, string]) []Transition[string, string] {
			expansions[n.State]++
			return g.expand(n)
		},
		Goal: goalIs("none"),
	})

	assert.False(t, result.Found())
	for state, count := range expansions {
		assert.Equal(t, 1, count, state)
	}
}

func TestFind_ReopensOnStrictlyBetterPath(t *testing.T) {
	// the heuristic overestimates at b, so c is first closed via the expensive edge
	g := weighted{
		"a": {edge("b", 1), edge("c", 10)},
		"b": {edge("c", 1)},
		"c": {edge("goal", 1)},
	}
	h := map[string]float64{"b": 20, "goal": 50}
	result := Find(Problem[string, string]{
		Start:      "a",
		Successors: g.expand,
		Goal:       goalIs("goal"),
		Heuristic:  func(s string) float64 { return h[s] },
	})
	require.True(t, result.Found())
	assert.Equal(t, 3.0, result.Node.Cost)
	assert.Equal(t, []string{"a", "b", "c", "goal"}, states(result.Node))
}

func TestFind_ExcludedTransitionsArePruned(t *testing.T) {
	g := weighted{
		"a": {edge("b", 1), edge("c", 2)},
		"b": {edge("goal", 1)},
		"c": {edge("goal", 1)},
	}
	failed := NewPathSet[string, string]()
	failed.AddSignature("a->b->goal")

	result := Find(Problem[string, string]{Start: "a", Successors: g.expand, Goal: goalIs("goal"), Exclude: failed})
	require.True(t, result.Found())
	assert.Equal(t, []string{"a", "c", "goal"}, states(result.Node))

	failed.Add(result.Node)
	result = Find(Problem[string, string]{Start: "a", Successors: g.expand, Goal: goalIs("goal"), Exclude: failed})
	assert.False(t, result.Found())
	assert.Equal(t, 2, failed.Len())
}

func TestPathSet_Fallback(t *testing.T) {
	ps := NewPathSet[string, string]()
	ps.Fallback = func(sig string) bool { return sig == "a->b" }
	root := &Node[string, string]{State: "a"}

	assert.True(t, ps.Excludes(root, edge("b", 1)))
	assert.False(t, ps.Excludes(root, edge("c", 1)))
}

func TestFind_Cancelled(t *testing.T) {
	g := weighted{"a": {edge("b", 1)}, "b": {edge("c", 1)}, "c": {edge("d", 1)}}
	polls := 0
	result := Find(Problem[string, string]{
		Start:      "a",
		Successors: g.expand,
		Goal:       goalIs("d"),
		Cancelled: func() bool {
			polls++
			return polls > 2
		},
	})
	assert.True(t, result.Cancelled)
	assert.False(t, result.Found())
	assert.Equal(t, 2, result.Iterations)
}

func TestFind_MaxIterations(t *testing.T) {
	g := weighted{"a": {edge("b", 1)}, "b": {edge("c", 1)}, "c": {edge("d", 1)}}
	result := Find(Problem[string, string]{Start: "a", Successors: g.expand, Goal: goalIs("d"), MaxIterations: 2})
	assert.True(t, result.Truncated)
	assert.False(t, result.Found())
	assert.Equal(t, 2, result.Iterations)
}

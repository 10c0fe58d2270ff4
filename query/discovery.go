package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/graph"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/operation"
	"github.com/c360/semquery/schema"
	"github.com/c360/semquery/search"
)

type (
	searchNode       = search.Node[string, graph.Edge]
	searchTransition = search.Transition[string, graph.Edge]
)

const rootState = "ROOT"

// Edge costs. Reading attributes and widening to a supertype cost a step;
// crossing into an operation costs more than any local read.
func stepCost(r graph.Relationship) float64 {
	switch r {
	case graph.HasAttribute, graph.ExtendsType:
		return 1
	case graph.IsParameterOn:
		return 3
	default:
		return 0
	}
}

var (
	errConstraintMismatch = stderrors.New("value does not satisfy constraints")
	errDepthExceeded      = stderrors.New("discovery depth exceeded")
)

type limits struct {
	maxIterations  int
	maxDepth       int
	maxEvaluations int
}

// discoverer resolves expressions against a fact bag. Values are read
// directly from facts when possible, otherwise a path is searched in the
// schema graph and evaluated edge by edge. A path whose evaluation fails is
// excluded and the search runs again.
type discoverer struct {
	queryID    string
	schema     *schema.Schema
	graphs     *graph.Cache
	invoker    operation.Invoker
	exclusions *exclusionCache
	limits     limits
	cancelled  func() bool
	record     func(SearchStats)
	logger     *slog.Logger
	metrics    *metric.Metrics
}

func (d *discoverer) isCancelled() bool {
	return d.cancelled != nil && d.cancelled()
}

// discover finds one value for expr. depth counts nested discoveries made
// to fill operation parameters.
func (d *discoverer) discover(ctx context.Context, expr Expression, bag *facts.FactBag, depth int) (*facts.TypedInstance, error) {
	if d.isCancelled() {
		return nil, errCancelled
	}
	target := expr.Target()
	for _, v := range bag.Values() {
		if !v.IsCollection() && d.schema.IsAssignable(v.Type, target) && expr.Matches(v) {
			return v, nil
		}
	}

	ps, err := d.newPathSearch(expr, bag)
	if err != nil {
		return nil, err
	}
	defer ps.finish()

	for {
		goal, err := ps.next()
		if err != nil {
			return nil, err
		}
		if goal == nil {
			return nil, ps.failure()
		}
		value, failedAt, err := d.evaluate(ctx, goal, expr, bag, depth)
		if err == nil {
			d.logger.Debug("path resolved",
				"query_id", d.queryID,
				"target", target,
				"path", goal.Signature(),
				"cost", goal.Cost)
			return value, nil
		}
		if stderrors.Is(err, errCancelled) {
			return nil, err
		}
		ps.fail(failedAt, err)
	}
}

// pathSearch enumerates goal paths for one expression. Every search runs
// with the paths already evaluated excluded, so successive calls to next
// return distinct paths until the graph is exhausted.
type pathSearch struct {
	d       *discoverer
	target  schema.QualifiedName
	scope   string
	failed  *search.PathSet[string, graph.Edge]
	done    *search.PathSet[string, graph.Edge]
	problem search.Problem[string, graph.Edge]
	stats   SearchStats

	lastInvocation *invocationError
	lastNested     *Failure
}

func (d *discoverer) newPathSearch(expr Expression, bag *facts.FactBag) (*pathSearch, error) {
	g, err := d.graphs.ForFacts(d.schema, bag.TypeSignature(), bag.Types())
	if err != nil {
		return nil, err
	}
	target := expr.Target()
	ps := &pathSearch{
		d:      d,
		target: target,
		scope:  exclusionScope(d.schema.Version(), bag.Hash(), expr),
		failed: search.NewPathSet[string, graph.Edge](),
		done:   search.NewPathSet[string, graph.Edge](),
	}
	ps.done.Fallback = func(sig string) bool {
		return ps.failed.Contains(sig) || d.exclusions.has(ps.scope+sig)
	}
	ps.problem = search.Problem[string, graph.Edge]{
		Start: rootState,
		Successors: func(n *searchNode) []searchTransition {
			return d.successors(g, bag, n)
		},
		Goal: func(n *searchNode) bool {
			return n.Parent != nil && n.Edge.To.Type == graph.Type &&
				d.schema.IsAssignable(n.Edge.To.QualifiedName(), target)
		},
		Exclude:       ps.done,
		Cancelled:     d.isCancelled,
		MaxIterations: d.limits.maxIterations,
	}
	return ps, nil
}

// next returns the cheapest goal path not yet evaluated, or nil once the
// search is exhausted or the evaluation bound is reached.
func (ps *pathSearch) next() (*searchNode, error) {
	d := ps.d
	if d.limits.maxEvaluations > 0 && ps.stats.PathsEvaluated >= d.limits.maxEvaluations {
		return nil, nil
	}
	res := search.Find(ps.problem)
	ps.stats.Searches++
	ps.stats.Iterations += res.Iterations
	ps.stats.Elapsed += res.Elapsed
	if d.metrics != nil {
		d.metrics.SearchIterations.Observe(float64(res.Iterations))
	}
	if res.Cancelled {
		return nil, errCancelled
	}
	if !res.Found() {
		if res.Truncated {
			d.logger.Debug("path search truncated",
				"query_id", d.queryID,
				"target", ps.target,
				"iterations", res.Iterations)
		}
		return nil, nil
	}
	ps.stats.PathsEvaluated++
	if d.metrics != nil {
		d.metrics.PathsEvaluated.Inc()
	}
	return res.Node, nil
}

// succeed excludes a path that produced a value from later searches.
func (ps *pathSearch) succeed(goal *searchNode) {
	ps.done.Add(goal)
}

// fail excludes the path ending at failedAt. Only structural failures are
// remembered across queries; a failed invocation may succeed next time.
func (ps *pathSearch) fail(failedAt *searchNode, err error) {
	sig := ps.failed.Add(failedAt)

	var ie *invocationError
	var nested *Failure
	switch {
	case stderrors.As(err, &ie):
		ps.lastInvocation = ie
	case stderrors.As(err, &nested) && nested.Kind == FailureInvocation:
		ps.lastNested = nested
	default:
		ps.d.exclusions.add(ps.scope + sig)
	}
	ps.d.logger.Debug("path evaluation failed",
		"query_id", ps.d.queryID,
		"target", ps.target,
		"failed_at", failedAt.Edge.To.String(),
		"error", err)
}

// invocationFailure reports the last failed invocation, direct or made
// while filling a parameter. Nil when no invocation failed.
func (ps *pathSearch) invocationFailure() *Failure {
	switch {
	case ps.lastInvocation != nil:
		return &Failure{
			Kind:          FailureInvocation,
			QueryID:       ps.d.queryID,
			Target:        ps.target,
			LastOperation: ps.lastInvocation.op.Name,
			Parameters:    ps.lastInvocation.params,
			Err:           ps.lastInvocation.err,
		}
	case ps.lastNested != nil:
		return &Failure{
			Kind:          FailureInvocation,
			QueryID:       ps.d.queryID,
			Target:        ps.target,
			LastOperation: ps.lastNested.LastOperation,
			Parameters:    ps.lastNested.Parameters,
			Err:           ps.lastNested.Err,
		}
	}
	return nil
}

func (ps *pathSearch) failure() *Failure {
	if f := ps.invocationFailure(); f != nil {
		return f
	}
	return &Failure{Kind: FailureNoPath, QueryID: ps.d.queryID, Target: ps.target}
}

func (ps *pathSearch) finish() {
	ps.stats.ExcludedPaths = ps.failed.Len()
	if ps.d.record != nil {
		ps.d.record(ps.stats)
	}
}

// successors expands a search node. States are scoped by the fact or
// parameterless operation the path starts from, so paths from different
// facts do not merge at shared type vertices.
func (d *discoverer) successors(g *graph.Graph, bag *facts.FactBag, n *searchNode) []searchTransition {
	if n.Parent == nil {
		var out []searchTransition
		for _, v := range bag.Values() {
			if v.IsCollection() || !d.schema.HasType(v.Type) {
				continue
			}
			el := graph.InstanceElement(v)
			out = append(out, searchTransition{To: el.Key(), Edge: graph.Edge{To: el}})
		}
		for _, op := range d.schema.Operations() {
			if len(op.Parameters) > 0 {
				continue
			}
			el := graph.OperationElement(op.Name)
			out = append(out, searchTransition{To: el.Key(), Edge: graph.Edge{To: el}})
		}
		return out
	}

	origin := n.Path()[1].State
	from := n.Edge.To
	var out []searchTransition
	for _, e := range g.Outgoing(from.TypeLevel()) {
		if !e.Relationship.Traversable() {
			continue
		}
		out = append(out, searchTransition{
			To:   origin + "/" + e.To.Key(),
			Edge: graph.Edge{From: from, To: e.To, Relationship: e.Relationship},
			Cost: stepCost(e.Relationship),
		})
	}
	return out
}

// evaluate walks a found path and checks the value it produces against
// expr. On failure it returns the node whose edge failed.
func (d *discoverer) evaluate(ctx context.Context, goal *searchNode, expr Expression, bag *facts.FactBag, depth int) (*facts.TypedInstance, *searchNode, error) {
	value, failedAt, err := d.walk(ctx, goal, bag, depth)
	if err != nil {
		return nil, failedAt, err
	}
	value, err = single(value)
	if err != nil {
		return nil, goal, err
	}
	if !expr.Matches(value) {
		return nil, goal, errConstraintMismatch
	}
	return value, nil, nil
}

// walk follows a found path, reading attributes and invoking operations,
// and returns the value at its end. That value may be a collection.
func (d *discoverer) walk(ctx context.Context, goal *searchNode, bag *facts.FactBag, depth int) (*facts.TypedInstance, *searchNode, error) {
	var value *facts.TypedInstance
	for _, n := range goal.Path()[1:] {
		if d.isCancelled() {
			return nil, n, errCancelled
		}
		e := n.Edge
		switch {
		case e.To.Type == graph.Operation:
			op, ok := d.schema.Operation(e.To.QualifiedName())
			if !ok {
				return nil, n, fmt.Errorf("operation %s: %w", e.To.Value, schema.ErrUnknownType)
			}
			slot, _ := e.From.ParameterType()
			result, err := d.invoke(ctx, op, value, slot, bag, depth)
			if err != nil {
				return nil, n, err
			}
			value = result

		case n.Depth == 1:
			value = e.To.Instance

		case e.Relationship == graph.HasAttribute:
			_, attr, _ := e.To.MemberParts()
			if value == nil || value.IsCollection() {
				return nil, n, fmt.Errorf("cannot read %s from %s", attr, value)
			}
			field := value.Field(attr)
			if field == nil {
				return nil, n, fmt.Errorf("%s has no value for %s", value.Type, attr)
			}
			value = field
		}
	}
	if value == nil {
		return nil, goal, fmt.Errorf("no value")
	}
	return value, nil, nil
}

// lastOperation names the last operation on the path to n, or "".
func lastOperation(n *searchNode) string {
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		if cur.Edge.To.Type == graph.Operation {
			return string(cur.Edge.To.QualifiedName())
		}
	}
	return ""
}

// invoke calls op. The carried value fills the first parameter of type
// slot; the other parameters are discovered from bag.
func (d *discoverer) invoke(ctx context.Context, op *schema.Operation, carried *facts.TypedInstance, slot schema.QualifiedName, bag *facts.FactBag, depth int) (*facts.TypedInstance, error) {
	params := make([]operation.ParameterValue, 0, len(op.Parameters))
	bound := carried == nil
	for _, p := range op.Parameters {
		if !bound && p.Type == slot {
			v, err := bindParameter(p, carried)
			if err != nil {
				return nil, err
			}
			params = append(params, operation.ParameterValue{Name: p.Name, Value: v})
			bound = true
			continue
		}
		v, err := d.resolveParameter(ctx, p, bag, depth)
		if err != nil {
			return nil, fmt.Errorf("resolve %s(%s): %w", op.Name, p.Name, err)
		}
		params = append(params, operation.ParameterValue{Name: p.Name, Value: v})
	}

	result, err := d.invoker.Invoke(ctx, operation.Request{QueryID: d.queryID, Operation: op, Parameters: params})
	if err != nil {
		return nil, &invocationError{op: op, params: params, err: err}
	}
	if result == nil {
		return nil, &invocationError{op: op, params: params, err: operation.ErrNoResponse}
	}
	if result.Source == "" {
		result = result.WithSource(string(op.Name))
	}
	return result, nil
}

func (d *discoverer) resolveParameter(ctx context.Context, p schema.Parameter, bag *facts.FactBag, depth int) (*facts.TypedInstance, error) {
	if p.Collection {
		items := bag.All(p.Type)
		if len(items) == 0 {
			return nil, fmt.Errorf("no facts of type %s", p.Type)
		}
		return facts.Collection(p.Type, items...), nil
	}
	if depth+1 > d.limits.maxDepth {
		return nil, errDepthExceeded
	}
	return d.discover(ctx, TypeNameExpression{Type: p.Type}, bag, depth+1)
}

func bindParameter(p schema.Parameter, v *facts.TypedInstance) (*facts.TypedInstance, error) {
	switch {
	case p.Collection && v.IsCollection():
		return v, nil
	case p.Collection:
		return facts.Collection(p.Type, v), nil
	case v.IsCollection():
		return single(v)
	default:
		return v, nil
	}
}

// single unwraps a one-element collection. Empty and larger collections
// cannot stand in for a single value.
func single(v *facts.TypedInstance) (*facts.TypedInstance, error) {
	switch {
	case v == nil:
		return nil, fmt.Errorf("no value")
	case !v.IsCollection():
		return v, nil
	case len(v.Items) == 1:
		return v.Items[0], nil
	default:
		return nil, fmt.Errorf("%d values of %s where one is expected", len(v.Items), v.Type)
	}
}

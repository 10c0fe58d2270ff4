package query

import (
	"context"
	stderrors "errors"

	"github.com/c360/semquery/facts"
)

// gather collects every reachable value of the expression's type: matching
// facts first, then the values produced by every goal path in the graph.
// Collections are flattened and values are deduplicated by content.
func (d *discoverer) gather(ctx context.Context, expr Expression, bag *facts.FactBag) ([]*facts.TypedInstance, error) {
	if d.isCancelled() {
		return nil, errCancelled
	}
	target := expr.Target()
	seen := make(map[string]bool)
	var out []*facts.TypedInstance

	var add func(v *facts.TypedInstance, source string)
	add = func(v *facts.TypedInstance, source string) {
		if v == nil {
			return
		}
		if v.IsCollection() {
			for _, item := range v.Items {
				add(item, source)
			}
			return
		}
		if !d.schema.IsAssignable(v.Type, target) || !expr.Matches(v) {
			return
		}
		h := v.Hash()
		if seen[h] {
			return
		}
		seen[h] = true
		if v.Source == "" && source != "" {
			v = v.WithSource(source)
		}
		out = append(out, v)
	}

	for _, v := range bag.All(target) {
		add(v, "")
	}

	ps, err := d.newPathSearch(expr, bag)
	if err != nil {
		return nil, err
	}
	defer ps.finish()

	for {
		goal, err := ps.next()
		if err != nil {
			return out, err
		}
		if goal == nil {
			break
		}
		value, failedAt, err := d.walk(ctx, goal, bag, 0)
		if err != nil {
			if stderrors.Is(err, errCancelled) {
				return out, err
			}
			ps.fail(failedAt, err)
			continue
		}
		ps.succeed(goal)
		add(value, lastOperation(goal))
	}

	if len(out) == 0 {
		if f := ps.invocationFailure(); f != nil {
			return nil, f
		}
	}
	return out, nil
}

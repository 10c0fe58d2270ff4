package query

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/schema"
)

// projector builds the per-item projection into target.
func (d *discoverer) projector(bag *facts.FactBag, target schema.QualifiedName) projection.ItemProjector {
	return func(ctx context.Context, item *facts.TypedInstance) (*facts.TypedInstance, error) {
		return d.project(ctx, bag, item, target)
	}
}

// project builds a value of target from item. Each attribute is taken from
// the item's attribute of the same name when its type fits, otherwise it is
// discovered from the facts with the item taking precedence. Attributes that
// cannot be resolved are left empty.
func (d *discoverer) project(ctx context.Context, bag *facts.FactBag, item *facts.TypedInstance, target schema.QualifiedName) (*facts.TypedInstance, error) {
	if d.schema.IsAssignable(item.Type, target) {
		return item, nil
	}
	t, ok := d.schema.Type(target)
	if !ok {
		return nil, fmt.Errorf("projection type %s: %w", target, schema.ErrUnknownType)
	}
	scoped := bag.With(item)

	if t.Scalar {
		v, err := d.discover(ctx, TypeNameExpression{Type: target}, scoped, 1)
		if stderrors.Is(err, errCancelled) {
			return nil, err
		}
		if err != nil {
			return &facts.TypedInstance{Type: target, Source: item.Source}, nil
		}
		return v, nil
	}

	fields := make(map[string]*facts.TypedInstance, len(t.Attributes))
	for _, attr := range t.Attributes {
		if f := item.Field(attr.Name); f != nil && d.schema.IsAssignable(f.Type, attr.Type) {
			fields[attr.Name] = f
			continue
		}
		if attr.Collection {
			if items := scoped.All(attr.Type); len(items) > 0 {
				fields[attr.Name] = facts.Collection(attr.Type, items...)
			}
			continue
		}
		v, err := d.discover(ctx, TypeNameExpression{Type: attr.Type}, scoped, 1)
		switch {
		case err == nil:
			fields[attr.Name] = v
		case stderrors.Is(err, errCancelled):
			return nil, err
		default:
			d.logger.Debug("projection attribute unresolved",
				"query_id", d.queryID,
				"type", target,
				"attribute", attr.Name,
				"error", err)
		}
	}
	projected := facts.Object(target, fields)
	projected.Source = item.Source
	return projected, nil
}

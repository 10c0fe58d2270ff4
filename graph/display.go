package graph

import (
	"log/slog"
)

// Display derives the simplified graph used for visualization. Only TYPE,
// OPERATION and MEMBER vertices survive; parameter and provided-instance
// hops are collapsed onto the type they stand for.
func Display(g *Graph, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := newSession()
	for _, e := range g.edges {
		edge, ok := simplify(e)
		if !ok {
			continue
		}
		if !edge.From.Visible() || !edge.To.Visible() {
			continue
		}
		if !hasDisplayRule(e.Relationship) {
			logger.Debug("display graph simplification gap",
				"relationship", e.Relationship.String(),
				"from", e.From.String(),
				"to", e.To.String())
		}
		if err := b.connect(edge.From.TypeLevel(), edge.To.TypeLevel(), edge.Relationship); err != nil {
			return nil, err
		}
	}
	return b.seal(), nil
}

func simplify(e Edge) (Edge, bool) {
	switch e.Relationship {
	case IsAttributeOf:
		return Edge{}, false
	case RequiresParameter:
		t, ok := e.To.ParameterType()
		if !ok {
			return Edge{}, false
		}
		e.To = TypeElement(t)
	case Provides:
		e.To = TypeElement(e.To.QualifiedName())
	}
	return e, true
}

func hasDisplayRule(r Relationship) bool {
	switch r {
	case IsAttributeOf, RequiresParameter, Provides, HasAttribute:
		return true
	default:
		return false
	}
}

// Package graph compiles schemas into directed graphs of types, members,
// parameters and operations, and derives the views built from them: graphs
// extended with fact types for path search and simplified display graphs.
package graph

import (
	stderrors "errors"
	"fmt"

	dgraph "github.com/dominikbraun/graph"

	"github.com/c360/semquery/errors"
)

// Edge is a labelled, directed connection between two elements.
type Edge struct {
	From         Element      `json:"from"`
	To           Element      `json:"to"`
	Relationship Relationship `json:"relationship"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.From, e.Relationship, e.To)
}

const relationshipAttribute = "relationship"

// Graph is an immutable directed graph over elements. At most one edge exists
// per ordered vertex pair. Graphs are shared read-only between queries.
type Graph struct {
	g        dgraph.Graph[string, Element]
	vertices []Element
	edges    []Edge
	out      map[string][]Edge
}

func newGraph() *Graph {
	return &Graph{
		g:   dgraph.New[string, Element](Element.Key, dgraph.Directed()),
		out: make(map[string][]Edge),
	}
}

// Vertex looks up an element by key.
func (g *Graph) Vertex(key string) (Element, bool) {
	e, err := g.g.Vertex(key)
	if err != nil {
		return Element{}, false
	}
	return e, true
}

// Has reports whether e is a vertex.
func (g *Graph) Has(e Element) bool {
	_, ok := g.Vertex(e.Key())
	return ok
}

// Vertices returns elements in insertion order.
func (g *Graph) Vertices() []Element {
	return append([]Element(nil), g.vertices...)
}

// Edges returns edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Outgoing returns the edges leaving e, in insertion order.
func (g *Graph) Outgoing(e Element) []Edge {
	return g.out[e.Key()]
}

// Edge returns the edge between an ordered pair, if any.
func (g *Graph) Edge(from, to Element) (Edge, bool) {
	edge, err := g.g.Edge(from.Key(), to.Key())
	if err != nil {
		return Edge{}, false
	}
	rel, _ := edge.Properties.Data.(Relationship)
	return Edge{From: edge.Source, To: edge.Target, Relationship: rel}, true
}

// Order returns the number of vertices.
func (g *Graph) Order() int { return len(g.vertices) }

// Size returns the number of edges.
func (g *Graph) Size() int { return len(g.edges) }

// session adds vertices and edges while a graph is being constructed.
type session struct {
	graph *Graph
}

func newSession() *session {
	return &session{graph: newGraph()}
}

func (s *session) addVertex(e Element) {
	err := s.graph.g.AddVertex(e)
	if err == nil {
		s.graph.vertices = append(s.graph.vertices, e)
	}
}

// connect adds from -rel-> to. A second connection of the same ordered pair is
// ignored whatever its label, so the first label wins.
func (s *session) connect(from, to Element, rel Relationship) error {
	s.addVertex(from)
	s.addVertex(to)

	err := s.graph.g.AddEdge(from.Key(), to.Key(),
		dgraph.EdgeData(rel),
		dgraph.EdgeAttribute(relationshipAttribute, rel.String()))
	switch {
	case err == nil:
	case stderrors.Is(err, dgraph.ErrEdgeAlreadyExists):
		return nil
	default:
		return errors.WrapFatal(err, "Graph", "connect", fmt.Sprintf("edge %s -> %s", from, to))
	}

	edge := Edge{From: from, To: to, Relationship: rel}
	s.graph.edges = append(s.graph.edges, edge)
	s.graph.out[from.Key()] = append(s.graph.out[from.Key()], edge)
	return nil
}

func (s *session) seal() *Graph {
	return s.graph
}

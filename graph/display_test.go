package graph

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplay_OnlyVisibleVertices(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	d, err := Display(g, nil)
	require.NoError(t, err)
	require.NotZero(t, d.Order())
	for _, v := range d.Vertices() {
		assert.Contains(t, []ElementType{Type, Operation, Member}, v.Type, v.String())
	}
}

func TestDisplay_RewritesParameterAndReturn(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	d, err := Display(g, nil)
	require.NoError(t, err)

	op := OperationElement("CustomerService.findCustomerById")
	edge, ok := d.Edge(op, TypeElement("CustomerId"))
	require.True(t, ok)
	assert.Equal(t, RequiresParameter, edge.Relationship)

	edge, ok = d.Edge(op, TypeElement("Customer"))
	require.True(t, ok)
	assert.Equal(t, Provides, edge.Relationship)
}

func TestDisplay_DropsAttributeDual(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	d, err := Display(g, nil)
	require.NoError(t, err)

	_, ok := d.Edge(TypeElement("Customer"), MemberElement("Customer", "name"))
	assert.True(t, ok)
	_, ok = d.Edge(MemberElement("Customer", "name"), TypeElement("Customer"))
	assert.False(t, ok)
	for _, e := range d.Edges() {
		assert.NotEqual(t, IsAttributeOf, e.Relationship)
	}
}

func TestDisplay_SameParameterAndReturnTypeCollapses(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	d, err := Display(g, nil)
	require.NoError(t, err)

	edge, ok := d.Edge(OperationElement("CustomerService.touch"), TypeElement("Customer"))
	require.True(t, ok)
	assert.Equal(t, RequiresParameter, edge.Relationship)
}

func TestDisplay_LogsSimplificationGaps(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d, err := Display(g, logger)
	require.NoError(t, err)

	_, ok := d.Edge(TypeElement("VipCustomer"), TypeElement("Customer"))
	assert.True(t, ok, "unmatched visible edges pass through")
	assert.Contains(t, buf.String(), "simplification gap")
	assert.Contains(t, buf.String(), "EXTENDS_TYPE")
}

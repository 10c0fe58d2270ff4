package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/schema"
)

func TestCache_ReusesGraphs(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewCache(2, 4, registry)
	require.NoError(t, err)
	s := customerSchema(t)

	g1, err := c.Base(s)
	require.NoError(t, err)
	g2, err := c.Base(s)
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	types := []schema.QualifiedName{"CustomerId"}
	f1, err := c.ForFacts(s, "CustomerId", types)
	require.NoError(t, err)
	f2, err := c.ForFacts(s, "CustomerId", types)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.NotSame(t, g1, f1)

	base, withFacts := c.Len()
	assert.Equal(t, 1, base)
	assert.Equal(t, 1, withFacts)
}

func TestCache_Invalidate(t *testing.T) {
	c, err := NewCache(2, 4, nil)
	require.NoError(t, err)
	s := customerSchema(t)

	g1, err := c.Base(s)
	require.NoError(t, err)
	c.Invalidate()
	g2, err := c.Base(s)
	require.NoError(t, err)
	assert.NotSame(t, g1, g2)
}

func TestCache_BuildErrorNotCached(t *testing.T) {
	c, err := NewCache(2, 4, nil)
	require.NoError(t, err)
	s, err := schema.New("bad", []*schema.Type{schema.ObjectType("A", schema.Attr("b", "Missing"))}, nil)
	require.NoError(t, err)

	_, err = c.Base(s)
	require.Error(t, err)
	base, _ := c.Len()
	assert.Equal(t, 0, base)
}

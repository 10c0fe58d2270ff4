package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMap() (*FactSetMap, map[string]*TypedInstance) {
	v := map[string]*TypedInstance{
		"id":     Scalar("CustomerId", "123"),
		"email":  Scalar("Email", "a@example.com"),
		"region": Scalar("Region", "EU"),
		"caller": Scalar("CustomerId", "999"),
	}
	m := NewFactSetMap()
	m.Add("crm", v["id"])
	m.Add("crm", v["email"])
	m.Add("geo", v["region"])
	m.Add(Caller, v["caller"])
	return m, v
}

func TestRetain_All(t *testing.T) {
	m, _ := sampleMap()
	retained := m.RetainFactsFromFactSet(All)
	assert.True(t, m.Equal(retained))
	assert.Equal(t, m.IDs(), retained.IDs())
}

func TestRetain_None(t *testing.T) {
	m, _ := sampleMap()
	assert.Equal(t, 0, m.RetainFactsFromFactSet(None).Len())
	assert.Equal(t, 0, m.RetainFactsFromFactSet(All, None).Len())
}

func TestRetain_SingleID(t *testing.T) {
	m, v := sampleMap()
	retained := m.RetainFactsFromFactSet("crm")

	assert.Equal(t, []FactSetID{"crm"}, retained.IDs())
	assert.Equal(t, []*TypedInstance{v["id"], v["email"]}, retained.Get("crm"))
	assert.Empty(t, retained.Get("geo"))
}

func TestRetain_UnionOfDisjointSets(t *testing.T) {
	m, _ := sampleMap()

	tests := []struct {
		name   string
		s1, s2 []FactSetID
	}{
		{"two named sets", []FactSetID{"crm"}, []FactSetID{"geo"}},
		{"named and caller", []FactSetID{"crm", "geo"}, []FactSetID{Caller}},
		{"empty and named", nil, []FactSetID{"geo"}},
		{"missing id", []FactSetID{"nope"}, []FactSetID{"crm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			union := m.RetainFactsFromFactSet(tt.s1...).Union(m.RetainFactsFromFactSet(tt.s2...))
			combined := m.RetainFactsFromFactSet(append(append([]FactSetID{}, tt.s1...), tt.s2...)...)
			assert.True(t, union.Equal(combined))
		})
	}
}

func TestAdd_AppendsWithoutReordering(t *testing.T) {
	m, v := sampleMap()
	extra := Scalar("CustomerId", "456")
	m.Add("crm", extra)

	assert.Equal(t, []*TypedInstance{v["id"], v["email"], extra}, m.Get("crm"))
	assert.Equal(t, []FactSetID{"crm", "geo", Caller}, m.IDs())

	m.Add("", Scalar("Region", "US"))
	m.Add(All, Scalar("Region", "APAC"))
	assert.Len(t, m.Get(Default), 2)

	m.Add("crm", nil)
	assert.Len(t, m.Get("crm"), 3)
}

func TestAdd_DuplicateValueIsIgnoredPerSet(t *testing.T) {
	m, v := sampleMap()

	assert.False(t, m.Add("crm", Scalar("CustomerId", "123")))
	assert.False(t, m.Add("crm", Scalar("CustomerId", "123").WithSource("provided")))
	assert.Equal(t, []*TypedInstance{v["id"], v["email"]}, m.Get("crm"))

	// the same value may live in another set
	assert.True(t, m.Add("geo", Scalar("CustomerId", "123")))
	assert.Equal(t, 5, m.Len())

	retained := m.RetainFactsFromFactSet("crm")
	assert.False(t, retained.Add("crm", Scalar("CustomerId", "123")))
	assert.Equal(t, 2, m.RetainFactsFromFactSet("crm").Union(retained).Len())
}

func TestToFactBag(t *testing.T) {
	m, v := sampleMap()

	bag := m.ToFactBag(nil, "crm", Caller)
	require.Equal(t, 3, bag.Len())

	first, ok := bag.First("CustomerId")
	require.True(t, ok)
	assert.Same(t, v["id"], first)
	assert.Len(t, bag.All("CustomerId"), 2)
	assert.False(t, bag.Has("Region"))
	assert.Equal(t, "CustomerId,Email", bag.TypeSignature())
}

package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("v1",
		[]*schema.Type{
			schema.ScalarType("CustomerId", schema.String),
			schema.ObjectType("Customer", schema.Attr("id", "CustomerId"), schema.ListAttr("tags", schema.String)),
			schema.ObjectType("VipCustomer", schema.Attr("id", "CustomerId")).Extends("Customer"),
		}, nil)
	require.NoError(t, err)
	return s
}

func TestFactBag_Assignability(t *testing.T) {
	s := testSchema(t)
	vip := Object("VipCustomer", map[string]*TypedInstance{"id": Scalar("CustomerId", "1")})
	bag := NewFactBag(s, vip)

	got, ok := bag.First("Customer")
	require.True(t, ok)
	assert.Same(t, vip, got)
	assert.False(t, bag.Has("CustomerId"))
}

func TestFactBag_WithTakesPrecedence(t *testing.T) {
	s := testSchema(t)
	older := Scalar("CustomerId", "old")
	newer := Scalar("CustomerId", "new")

	bag := NewFactBag(s, older).With(newer)
	got, ok := bag.First("CustomerId")
	require.True(t, ok)
	assert.Same(t, newer, got)
	assert.Equal(t, 2, bag.Len())
}

func TestFactBag_DuplicatesKeepFirst(t *testing.T) {
	s := testSchema(t)
	stored := Scalar("CustomerId", "1")
	given := Scalar("CustomerId", "1").WithSource("@caller")

	m := NewFactSetMap()
	m.Add("crm", stored)
	m.Add("geo", Scalar("CustomerId", "1"))
	assert.Equal(t, 1, m.ToFactBag(s, All).Len())

	bag := m.ToFactBag(s, All).With(given)
	require.Equal(t, 1, bag.Len())
	got, _ := bag.First("CustomerId")
	assert.Same(t, given, got)
}

func TestFactBag_CollectionsFlattenInAll(t *testing.T) {
	s := testSchema(t)
	ids := Collection("CustomerId", Scalar("CustomerId", "1"), Scalar("CustomerId", "2"))
	bag := NewFactBag(s, ids)

	assert.False(t, bag.Has("CustomerId"))
	assert.Len(t, bag.All("CustomerId"), 2)
}

func TestFactBag_HashDependsOnContent(t *testing.T) {
	s := testSchema(t)
	a := NewFactBag(s, Scalar("CustomerId", "1"))
	b := NewFactBag(s, Scalar("CustomerId", "1").WithSource("provided"))
	c := NewFactBag(s, Scalar("CustomerId", "2"))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestFromValue(t *testing.T) {
	s := testSchema(t)

	customer, err := FromValue(s, "Customer", map[string]any{
		"id":   "123",
		"tags": []any{"gold", "eu"},
	})
	require.NoError(t, err)
	assert.Equal(t, "123", customer.Field("id").Text())
	assert.Equal(t, schema.QualifiedName("CustomerId"), customer.Field("id").Type)
	assert.True(t, customer.Field("tags").IsCollection())
	assert.Len(t, customer.Field("tags").Items, 2)

	n, err := FromValue(s, schema.Int, 42)
	require.NoError(t, err)
	assert.Equal(t, "42", n.Text())

	_, err = FromValue(s, "Customer", map[string]any{"unknown": 1})
	assert.True(t, errors.IsInvalid(err))

	_, err = FromValue(s, "Nope", "x")
	assert.ErrorIs(t, err, schema.ErrUnknownType)

	_, err = FromValue(s, "Customer", "not an object")
	assert.Error(t, err)
}

func TestTypedInstance_String(t *testing.T) {
	c := Object("Customer", map[string]*TypedInstance{"id": Scalar("CustomerId", "1")})
	assert.Equal(t, "Customer{id: CustomerId(1)}", c.String())
	assert.Equal(t, "CustomerId[]", Collection("CustomerId").String())
}

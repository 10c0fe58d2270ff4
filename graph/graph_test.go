package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

func customerSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New("v1",
		[]*schema.Type{
			schema.ScalarType("CustomerId", schema.String),
			schema.ObjectType("Customer",
				schema.Attr("id", "CustomerId"),
				schema.Attr("name", schema.String),
				schema.Attr("referrer", "Customer"),
			),
			schema.ObjectType("VipCustomer").Extends("Customer"),
		},
		[]*schema.Service{
			schema.NewService("CustomerService",
				schema.Op("findCustomerById", "Customer", schema.Param("id", "CustomerId")),
				schema.Op("touch", "Customer", schema.Param("c", "Customer")),
			),
		})
	require.NoError(t, err)
	return s
}

func TestSession_DedupIdempotence(t *testing.T) {
	b := newSession()
	a, c := TypeElement("A"), TypeElement("C")

	require.NoError(t, b.connect(a, c, ExtendsType))
	require.NoError(t, b.connect(a, c, ExtendsType))

	g := b.seal()
	assert.Equal(t, 1, g.Size())
	edge, ok := g.Edge(a, c)
	require.True(t, ok)
	assert.Equal(t, ExtendsType, edge.Relationship)
}

func TestSession_DedupKeepsFirstLabel(t *testing.T) {
	b := newSession()
	a, c := TypeElement("A"), TypeElement("C")

	require.NoError(t, b.connect(a, c, ExtendsType))
	require.NoError(t, b.connect(a, c, CanPopulate))

	g := b.seal()
	assert.Equal(t, 1, g.Size())
	edge, ok := g.Edge(a, c)
	require.True(t, ok)
	assert.Equal(t, ExtendsType, edge.Relationship)
	require.Len(t, g.Outgoing(a), 1)
	assert.Equal(t, ExtendsType, g.Outgoing(a)[0].Relationship)
}

func TestSession_ReverseDirectionIsDistinct(t *testing.T) {
	b := newSession()
	a, c := TypeElement("A"), TypeElement("C")

	require.NoError(t, b.connect(a, c, HasAttribute))
	require.NoError(t, b.connect(c, a, IsAttributeOf))
	assert.Equal(t, 2, b.seal().Size())
}

func TestElement_IdentityIncludesInstance(t *testing.T) {
	plain := ProvidedInstanceElement("CustomerId")
	a := InstanceElement(facts.Scalar("CustomerId", "1"))
	b := InstanceElement(facts.Scalar("CustomerId", "2"))
	a2 := InstanceElement(facts.Scalar("CustomerId", "1"))

	assert.NotEqual(t, plain.Key(), a.Key())
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), a2.Key())
	assert.Equal(t, plain.Key(), a.TypeLevel().Key())
}

func TestBuild_Customer(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	cases := []struct {
		from, to Element
		rel      Relationship
	}{
		{TypeElement("Customer"), MemberElement("Customer", "id"), HasAttribute},
		{MemberElement("Customer", "id"), TypeElement("CustomerId"), IsTypeOf},
		{MemberElement("Customer", "id"), TypeElement("Customer"), IsAttributeOf},
		{TypeElement("VipCustomer"), TypeElement("Customer"), ExtendsType},
		{TypeElement("CustomerId"), TypeElement(schema.String), ExtendsType},
		{ServiceElement("CustomerService"), OperationElement("CustomerService.findCustomerById"), HasOperation},
		{OperationElement("CustomerService.findCustomerById"), ParameterElement("CustomerId"), RequiresParameter},
		{TypeElement("CustomerId"), ParameterElement("CustomerId"), CanPopulate},
		{ParameterElement("CustomerId"), OperationElement("CustomerService.findCustomerById"), IsParameterOn},
		{OperationElement("CustomerService.findCustomerById"), ProvidedInstanceElement("Customer"), Provides},
		{ProvidedInstanceElement("Customer"), TypeElement("Customer"), IsInstanceOf},
	}
	for _, tc := range cases {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			edge, ok := g.Edge(tc.from, tc.to)
			require.True(t, ok)
			assert.Equal(t, tc.rel, edge.Relationship)
		})
	}
}

func TestBuild_SelfReferenceKeepsTraversableLabel(t *testing.T) {
	g, err := Build(customerSchema(t))
	require.NoError(t, err)

	edge, ok := g.Edge(MemberElement("Customer", "referrer"), TypeElement("Customer"))
	require.True(t, ok)
	assert.Equal(t, IsTypeOf, edge.Relationship)
}

func TestBuild_UnknownTypeFailsFast(t *testing.T) {
	s, err := schema.New("broken",
		[]*schema.Type{schema.ObjectType("Order", schema.Attr("customer", "Customer"))},
		nil)
	require.NoError(t, err)

	g, err := Build(s)
	assert.Nil(t, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "Order.customer references Customer")
}

func TestBuild_IsDeterministic(t *testing.T) {
	s := customerSchema(t)
	g1, err := Build(s)
	require.NoError(t, err)
	g2, err := Build(s)
	require.NoError(t, err)
	assert.Equal(t, g1.Edges(), g2.Edges())
}

func TestWithFactTypes(t *testing.T) {
	s := customerSchema(t)
	base, err := Build(s)
	require.NoError(t, err)
	assert.False(t, base.Has(ProvidedInstanceElement("CustomerId")))

	g, err := WithFactTypes(base, s, []schema.QualifiedName{"CustomerId", "Unknown"})
	require.NoError(t, err)

	edge, ok := g.Edge(ProvidedInstanceElement("CustomerId"), TypeElement("CustomerId"))
	require.True(t, ok)
	assert.Equal(t, IsInstanceOf, edge.Relationship)
	assert.False(t, g.Has(ProvidedInstanceElement("Unknown")))
	assert.Equal(t, base.Size()+1, g.Size())
	assert.False(t, base.Has(ProvidedInstanceElement("CustomerId")), "base graph must not change")
}

func TestRelationship_Traversable(t *testing.T) {
	assert.True(t, HasAttribute.Traversable())
	assert.True(t, Provides.Traversable())
	assert.False(t, IsAttributeOf.Traversable())
	assert.False(t, RequiresParameter.Traversable())
	assert.False(t, HasOperation.Traversable())
}

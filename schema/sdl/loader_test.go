package sdl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

const customerSDL = `
scalar CustomerId
scalar Email

interface Party {
  email: Email
}

type Customer implements Party {
  id: CustomerId!
  email: Email
  tags: [String]
}

type CustomerService @service {
  findCustomerById(id: CustomerId!): Customer
  listCustomers: [Customer]
}
`

func TestLoad_MapsTypesAndServices(t *testing.T) {
	s, err := Load("v1", &ast.Source{Name: "customer.graphql", Input: customerSDL})
	require.NoError(t, err)

	assert.Equal(t, "v1", s.Version())

	customer, ok := s.Type("Customer")
	require.True(t, ok)
	assert.Equal(t, []schema.QualifiedName{"Party"}, customer.Inherits)

	id, ok := customer.Attribute("id")
	require.True(t, ok)
	assert.Equal(t, schema.QualifiedName("CustomerId"), id.Type)

	tags, ok := customer.Attribute("tags")
	require.True(t, ok)
	assert.True(t, tags.Collection)
	assert.Equal(t, schema.String, tags.Type)

	scalar, ok := s.Type("CustomerId")
	require.True(t, ok)
	assert.True(t, scalar.Scalar)

	_, isType := s.Type("CustomerService")
	assert.False(t, isType, "services are not types")

	op, ok := s.Operation("CustomerService.findCustomerById")
	require.True(t, ok)
	assert.Equal(t, schema.QualifiedName("Customer"), op.ReturnType)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, schema.QualifiedName("CustomerId"), op.Parameters[0].Type)

	list, ok := s.Operation("CustomerService.listCustomers")
	require.True(t, ok)
	assert.True(t, list.ReturnsCollection)
	assert.Empty(t, list.Parameters)
}

func TestLoad_ContentVersion(t *testing.T) {
	a, err := Load("", &ast.Source{Name: "a.graphql", Input: customerSDL})
	require.NoError(t, err)
	b, err := Load("", &ast.Source{Name: "a.graphql", Input: customerSDL})
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version())
	assert.Len(t, a.Version(), 12)
}

func TestLoad_SyntaxError(t *testing.T) {
	_, err := Load("v1", &ast.Source{Name: "bad.graphql", Input: "type {"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte(customerSDL), 0o600))

	w, err := NewWatcher([]string{path}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	initial := w.Schema().Version()
	changed := make(chan string, 1)
	w.OnChange(func(s *schema.Schema) { changed <- s.Version() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	updated := customerSDL + "\ntype Order { customer: Customer }\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case v := <-changed:
		assert.NotEqual(t, initial, v)
		assert.True(t, w.Schema().HasType("Order"))
	case <-time.After(5 * time.Second):
		t.Fatal("schema was not reloaded")
	}
}

package facts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

func TestParseFile(t *testing.T) {
	m, err := ParseFile([]byte(`
facts:
  - set: crm
    type: CustomerId
    value: "123"
  - type: Customer
    value:
      id: "456"
      tags: [gold]
  - set: crm
    type: Int
    value: 7
`), testSchema(t))
	require.NoError(t, err)

	assert.Equal(t, []FactSetID{"crm", Default}, m.IDs())
	crm := m.Get("crm")
	require.Len(t, crm, 2)
	assert.Equal(t, "123", crm[0].Text())
	assert.Equal(t, "provided", crm[0].Source)
	assert.Equal(t, int64(7), crm[1].Value)

	def := m.Get(Default)
	require.Len(t, def, 1)
	assert.Equal(t, schema.QualifiedName("Customer"), def[0].Type)
	assert.Equal(t, "456", def[0].Field("id").Text())
	assert.Len(t, def[0].Field("tags").Items, 1)
}

func TestParseFile_LargeIntegersAreExact(t *testing.T) {
	m, err := ParseFile([]byte(`
facts:
  - type: CustomerId
    value: 9007199254740993
`), testSchema(t))
	require.NoError(t, err)

	def := m.Get(Default)
	require.Len(t, def, 1)
	assert.Equal(t, "9007199254740993", def[0].Text())
}

func TestParseFile_Errors(t *testing.T) {
	s := testSchema(t)
	for name, doc := range map[string]string{
		"malformed":    "facts: [",
		"missing type": "facts:\n  - value: x\n",
		"unknown type": "facts:\n  - type: Widget\n    value: x\n",
		"bad object":   "facts:\n  - type: Customer\n    value: plain\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFile([]byte(doc), s)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("facts:\n  - type: CustomerId\n    value: \"1\"\n"), 0o600))

	m, err := LoadFile(path, testSchema(t))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), testSchema(t))
	assert.True(t, errors.IsInvalid(err))
}

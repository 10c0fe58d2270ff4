package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, st *Statement)
	}{
		{
			name:  "find",
			input: `find { Customer }`,
			check: func(t *testing.T, st *Statement) {
				assert.Equal(t, FindOne, st.Mode)
				require.Len(t, st.Targets, 1)
				assert.Equal(t, schema.QualifiedName("Customer"), st.Targets[0].Type)
				assert.False(t, st.Targets[0].Collection)
				assert.Nil(t, st.Projection)
			},
		},
		{
			name:  "findAll with list target and projection",
			input: `findAll { Customer[] } as CustomerSummary[]`,
			check: func(t *testing.T, st *Statement) {
				assert.Equal(t, FindAll, st.Mode)
				assert.True(t, st.Targets[0].Collection)
				require.NotNil(t, st.Projection)
				assert.Equal(t, schema.QualifiedName("CustomerSummary"), st.Projection.Type)
				assert.True(t, st.Projection.Collection)
			},
		},
		{
			name:  "given facts",
			input: "given {\n  id : CustomerId = \"123\"\n  vip: Boolean = true, score: Float = 1.5\n}\nfind { Customer }",
			check: func(t *testing.T, st *Statement) {
				require.Len(t, st.Given, 3)
				assert.Equal(t, GivenFact{Name: "id", Type: "CustomerId", Value: "123"}, st.Given[0])
				assert.Equal(t, true, st.Given[1].Value)
				assert.Equal(t, 1.5, st.Given[2].Value)
			},
		},
		{
			name:  "large integer ids keep every digit",
			input: `given { id: CustomerId = 9007199254740993 } find { Customer(id = 9007199254740993) }`,
			check: func(t *testing.T, st *Statement) {
				require.Len(t, st.Given, 1)
				assert.Equal(t, int64(9007199254740993), st.Given[0].Value)
				assert.Equal(t, "9007199254740993", facts.Scalar("CustomerId", st.Given[0].Value).Text())
				assert.Equal(t, "9007199254740993", st.Targets[0].Constraints[0].Value)
			},
		},
		{
			name:  "constraints",
			input: `find { Customer(status = "active", tier != "gold" age = 42) }`,
			check: func(t *testing.T, st *Statement) {
				assert.Equal(t, []schema.Constraint{
					{Attribute: "status", Operator: schema.Equal, Value: "active"},
					{Attribute: "tier", Operator: schema.NotEqual, Value: "gold"},
					{Attribute: "age", Operator: schema.Equal, Value: "42"},
				}, st.Targets[0].Constraints)
			},
		},
		{
			name:  "several targets parse",
			input: `find { Customer, Order }`,
			check: func(t *testing.T, st *Statement) {
				assert.Len(t, st.Targets, 2)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.input, st.Source)
			tt.check(t, st)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"empty", ``, "expected find or findAll"},
		{"unknown verb", `select { Customer }`, "line 1, column 1"},
		{"no target", `find { }`, "expected a target type"},
		{"unclosed", `find { Customer`, "end of query"},
		{"trailing input", `find { Customer } limit 3`, "expected end of query"},
		{"bad operator", `find { Customer(status < "x") }`, ""},
		{"missing value", `find { Customer(status = ) }`, "expected a string, number or boolean"},
		{"given without type", `given { id = "1" } find { Customer }`, "expected :"},
		{"unterminated string", `find { Customer(status = "x) }`, ""},
		{"bad list suffix", `find { Customer[ }`, "expected ]"},
		{"integer out of range", `given { id: CustomerId = 99999999999999999999 } find { Customer }`, "integer out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.True(t, errors.IsInvalid(err))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := Parse("find {\n  Customer(status = )\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2, column 21")
}

func TestNewExpression(t *testing.T) {
	plain := NewExpression(Target{Type: "Customer"})
	assert.IsType(t, TypeNameExpression{}, plain)
	assert.Equal(t, "Customer", plain.String())

	constrained := NewExpression(Target{Type: "Customer", Constraints: []schema.Constraint{
		{Attribute: "status", Operator: schema.Equal, Value: "active"},
	}})
	assert.IsType(t, ConstrainedTypeExpression{}, constrained)
	assert.Equal(t, `Customer(status = "active")`, constrained.String())
	assert.Equal(t, schema.QualifiedName("Customer"), constrained.Target())
}

func TestParse_WholeStatement(t *testing.T) {
	src := `given { id: CustomerId = "123" } findAll { Customer[](status = "active") } as CustomerSummary[]`
	st, err := Parse(src)
	require.NoError(t, err)

	want := &Statement{
		Source: src,
		Mode:   FindAll,
		Given:  []GivenFact{{Name: "id", Type: "CustomerId", Value: "123"}},
		Targets: []Target{{
			Type:        "Customer",
			Collection:  true,
			Constraints: []schema.Constraint{{Attribute: "status", Operator: schema.Equal, Value: "active"}},
		}},
		Projection: &Target{Type: "CustomerSummary", Collection: true},
	}
	if diff := cmp.Diff(want, st, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("statement mismatch (-want +got):\n%s", diff)
	}
}

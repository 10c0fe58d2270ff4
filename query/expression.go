package query

import (
	"strings"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

// Mode is the declared result cardinality of a query.
type Mode int

// Query modes.
const (
	FindOne Mode = iota + 1
	FindAll
)

func (m Mode) String() string {
	switch m {
	case FindOne:
		return "FIND_ONE"
	case FindAll:
		return "FIND_ALL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Expression is a compiled discovery request. The set of implementations is
// closed: TypeNameExpression and ConstrainedTypeExpression.
type Expression interface {
	// Target is the requested type.
	Target() schema.QualifiedName

	// Matches reports whether a candidate value satisfies the expression.
	// The type has already been checked by the caller.
	Matches(value *facts.TypedInstance) bool

	String() string

	sealed()
}

// TypeNameExpression requests any value of a type.
type TypeNameExpression struct {
	Type schema.QualifiedName
}

// Target implements Expression.
func (e TypeNameExpression) Target() schema.QualifiedName { return e.Type }

// Matches implements Expression.
func (e TypeNameExpression) Matches(value *facts.TypedInstance) bool { return value != nil }

func (e TypeNameExpression) String() string { return string(e.Type) }

func (TypeNameExpression) sealed() {}

// ConstrainedTypeExpression requests a value of a type whose attributes
// satisfy every constraint.
type ConstrainedTypeExpression struct {
	Type        schema.QualifiedName
	Constraints []schema.Constraint
}

// Target implements Expression.
func (e ConstrainedTypeExpression) Target() schema.QualifiedName { return e.Type }

// Matches implements Expression.
func (e ConstrainedTypeExpression) Matches(value *facts.TypedInstance) bool {
	if value == nil {
		return false
	}
	for _, c := range e.Constraints {
		field := value.Field(c.Attribute)
		present := field != nil && !field.IsCollection() && field.Value != nil
		if !c.Matches(field.Text(), present) {
			return false
		}
	}
	return true
}

func (e ConstrainedTypeExpression) String() string {
	parts := make([]string, len(e.Constraints))
	for i, c := range e.Constraints {
		parts[i] = c.String()
	}
	return string(e.Type) + "(" + strings.Join(parts, ", ") + ")"
}

func (ConstrainedTypeExpression) sealed() {}

// NewExpression compiles a target. Targets with constraints become
// ConstrainedTypeExpression, others TypeNameExpression.
func NewExpression(t Target) Expression {
	if len(t.Constraints) == 0 {
		return TypeNameExpression{Type: t.Type}
	}
	return ConstrainedTypeExpression{
		Type:        t.Type,
		Constraints: append([]schema.Constraint(nil), t.Constraints...),
	}
}

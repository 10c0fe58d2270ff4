package schema

import "fmt"

// ConstraintOperator compares an attribute value.
type ConstraintOperator string

// Supported operators.
const (
	Equal    ConstraintOperator = "="
	NotEqual ConstraintOperator = "!="
)

// Constraint restricts the values of a requested type by one attribute.
type Constraint struct {
	Attribute string
	Operator  ConstraintOperator
	Value     string
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %q", c.Attribute, c.Operator, c.Value)
}

// Matches applies the operator to an attribute's string form.
// A missing attribute only satisfies NotEqual.
func (c Constraint) Matches(value string, present bool) bool {
	switch c.Operator {
	case Equal:
		return present && value == c.Value
	case NotEqual:
		return !present || value != c.Value
	default:
		return false
	}
}

package graph

// Relationship is the closed set of edge labels.
type Relationship int

const (
	// HasAttribute links a type to one of its members. Canonical direction.
	HasAttribute Relationship = iota + 1
	// IsAttributeOf is the dual of HasAttribute. Never traversed.
	IsAttributeOf
	// IsTypeOf links a member to the type of its value.
	IsTypeOf
	// CanPopulate links a type to the parameter slot it fills.
	CanPopulate
	// IsParameterOn links a parameter slot to an operation taking it.
	IsParameterOn
	// RequiresParameter links an operation to its parameter slots. Never traversed.
	RequiresParameter
	// Provides links an operation to the value it returns.
	Provides
	// IsInstanceOf links a provided value to its type.
	IsInstanceOf
	// ExtendsType links a type to its supertype.
	ExtendsType
	// HasOperation links a service to its operations. Never traversed.
	HasOperation
)

var relationshipNames = map[Relationship]string{
	HasAttribute:      "HAS_ATTRIBUTE",
	IsAttributeOf:     "IS_ATTRIBUTE_OF",
	IsTypeOf:          "IS_TYPE_OF",
	CanPopulate:       "CAN_POPULATE",
	IsParameterOn:     "IS_PARAMETER_ON",
	RequiresParameter: "REQUIRES_PARAMETER",
	Provides:          "PROVIDES",
	IsInstanceOf:      "IS_INSTANCE_OF",
	ExtendsType:       "EXTENDS_TYPE",
	HasOperation:      "HAS_OPERATION",
}

func (r Relationship) String() string {
	if name, ok := relationshipNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText renders the label name.
func (r Relationship) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Traversable reports whether path search may follow the relationship.
// Of each dual pair only the canonical direction is traversable.
func (r Relationship) Traversable() bool {
	switch r {
	case IsAttributeOf, RequiresParameter, HasOperation:
		return false
	default:
		return true
	}
}

package graph

import (
	"strings"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

// ElementType is the closed set of vertex tags.
type ElementType int

const (
	// Type is a schema type.
	Type ElementType = iota + 1
	// Member is an attribute of a type, named "Owner@@attribute".
	Member
	// Attribute is an attribute value read from a concrete instance.
	Attribute
	// Operation is an invocable operation.
	Operation
	// Service groups operations.
	Service
	// Parameter is an operation input slot, named "param/<Type>".
	Parameter
	// ProvidedInstance is a value of a type that is available at runtime,
	// either as a fact or as an operation result.
	ProvidedInstance
)

var elementTypeNames = map[ElementType]string{
	Type:             "TYPE",
	Member:           "MEMBER",
	Attribute:        "ATTRIBUTE",
	Operation:        "OPERATION",
	Service:          "SERVICE",
	Parameter:        "PARAMETER",
	ProvidedInstance: "PROVIDED_INSTANCE",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText renders the tag name.
func (t ElementType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Element is a graph vertex. Identity is (Type, Value) unless Instance is
// set, in which case the instance content is part of the identity.
type Element struct {
	Type     ElementType          `json:"type"`
	Value    string               `json:"value"`
	Instance *facts.TypedInstance `json:"instance,omitempty"`
}

const (
	memberSeparator = "@@"
	parameterPrefix = "param/"
)

// TypeElement returns the vertex of a schema type.
func TypeElement(name schema.QualifiedName) Element {
	return Element{Type: Type, Value: string(name)}
}

// MemberElement returns the vertex of an attribute of owner.
func MemberElement(owner schema.QualifiedName, attribute string) Element {
	return Element{Type: Member, Value: string(owner) + memberSeparator + attribute}
}

// OperationElement returns the vertex of an operation.
func OperationElement(name schema.QualifiedName) Element {
	return Element{Type: Operation, Value: string(name)}
}

// ServiceElement returns the vertex of a service.
func ServiceElement(name schema.QualifiedName) Element {
	return Element{Type: Service, Value: string(name)}
}

// ParameterElement returns the parameter slot vertex for values of type t.
func ParameterElement(t schema.QualifiedName) Element {
	return Element{Type: Parameter, Value: parameterPrefix + string(t)}
}

// ProvidedInstanceElement returns the type-level vertex of an available value of type t.
func ProvidedInstanceElement(t schema.QualifiedName) Element {
	return Element{Type: ProvidedInstance, Value: string(t)}
}

// InstanceElement returns a vertex bound to a concrete value.
func InstanceElement(value *facts.TypedInstance) Element {
	return Element{Type: ProvidedInstance, Value: string(value.Type), Instance: value}
}

// AttributeValueElement returns a vertex for an attribute value read from an instance.
func AttributeValueElement(owner schema.QualifiedName, attribute string, value *facts.TypedInstance) Element {
	return Element{Type: Attribute, Value: string(owner) + memberSeparator + attribute, Instance: value}
}

// Key is the identity used as the vertex hash.
func (e Element) Key() string {
	key := e.Type.String() + ":" + e.Value
	if e.Instance != nil {
		key += "#" + e.Instance.Hash()
	}
	return key
}

func (e Element) String() string {
	if e.Instance != nil {
		return e.Type.String() + "(" + e.Value + "=" + e.Instance.String() + ")"
	}
	return e.Type.String() + "(" + e.Value + ")"
}

// Visible reports whether the element may appear in a display graph.
func (e Element) Visible() bool {
	return e.Type == Type || e.Type == Operation || e.Type == Member
}

// TypeLevel drops any bound instance.
func (e Element) TypeLevel() Element {
	return Element{Type: e.Type, Value: e.Value}
}

// MemberParts splits a member or attribute value into owner and attribute name.
func (e Element) MemberParts() (schema.QualifiedName, string, bool) {
	owner, attr, ok := strings.Cut(e.Value, memberSeparator)
	return schema.QualifiedName(owner), attr, ok
}

// ParameterType decodes the type of a parameter vertex.
func (e Element) ParameterType() (schema.QualifiedName, bool) {
	if e.Type != Parameter || !strings.HasPrefix(e.Value, parameterPrefix) {
		return "", false
	}
	return schema.QualifiedName(strings.TrimPrefix(e.Value, parameterPrefix)), true
}

// QualifiedName returns Value as a qualified name.
func (e Element) QualifiedName() schema.QualifiedName {
	return schema.QualifiedName(e.Value)
}

// Package schema holds the immutable, versioned schema model the query engine
// compiles into graphs: types with attributes, services with operations, and
// the inheritance relation between types.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/semquery/errors"
)

// QualifiedName is the fully qualified name of a type, service or operation.
type QualifiedName string

// String implements fmt.Stringer.
func (n QualifiedName) String() string { return string(n) }

// ShortName returns the last dot-separated segment.
func (n QualifiedName) ShortName() string {
	s := string(n)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Built-in scalar types, registered in every schema.
const (
	String  QualifiedName = "String"
	Int     QualifiedName = "Int"
	Float   QualifiedName = "Float"
	Boolean QualifiedName = "Boolean"
	ID      QualifiedName = "ID"
)

var builtinScalars = []QualifiedName{String, Int, Float, Boolean, ID}

// ErrUnknownType is returned when a schema element references a type that is
// not declared.
var ErrUnknownType = fmt.Errorf("unknown type: %w", errors.ErrSchemaInvalid)

// Attribute is a named, typed field of a Type.
type Attribute struct {
	Name       string
	Type       QualifiedName
	Collection bool
}

// Type is a scalar or an object type with ordered attributes.
type Type struct {
	Name       QualifiedName
	Scalar     bool
	Attributes []Attribute
	Inherits   []QualifiedName
	Doc        string
}

// Attribute looks up an attribute by name.
func (t *Type) Attribute(name string) (Attribute, bool) {
	for _, a := range t.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Parameter is an operation input.
type Parameter struct {
	Name       string
	Type       QualifiedName
	Collection bool
}

// Operation is a remotely invocable function declared by a service.
type Operation struct {
	Name              QualifiedName
	Service           QualifiedName
	Parameters        []Parameter
	ReturnType        QualifiedName
	ReturnsCollection bool
}

// Service groups operations.
type Service struct {
	Name       QualifiedName
	Operations []*Operation
}

// Schema is an immutable snapshot of types and services at one version.
type Schema struct {
	version    string
	types      map[QualifiedName]*Type
	typeOrder  []QualifiedName
	services   map[QualifiedName]*Service
	svcOrder   []QualifiedName
	operations map[QualifiedName]*Operation
}

// New indexes the given types and services. Built-in scalars are added
// automatically. Operation names are qualified with their service name and
// their Service field is set. References are not checked; see Validate.
func New(version string, types []*Type, services []*Service) (*Schema, error) {
	s := &Schema{
		version:    version,
		types:      make(map[QualifiedName]*Type),
		services:   make(map[QualifiedName]*Service),
		operations: make(map[QualifiedName]*Operation),
	}

	for _, name := range builtinScalars {
		s.addType(&Type{Name: name, Scalar: true})
	}
	for _, t := range types {
		if t == nil || t.Name == "" {
			return nil, errors.WrapInvalid(errors.ErrSchemaInvalid, "Schema", "New", "type without name")
		}
		if existing, ok := s.types[t.Name]; ok && !isBuiltin(existing.Name) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("type %s declared twice: %w", t.Name, errors.ErrSchemaInvalid),
				"Schema", "New", "type registration")
		}
		s.addType(t)
	}

	for _, svc := range services {
		if svc == nil || svc.Name == "" {
			return nil, errors.WrapInvalid(errors.ErrSchemaInvalid, "Schema", "New", "service without name")
		}
		if _, ok := s.services[svc.Name]; ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("service %s declared twice: %w", svc.Name, errors.ErrSchemaInvalid),
				"Schema", "New", "service registration")
		}
		s.services[svc.Name] = svc
		s.svcOrder = append(s.svcOrder, svc.Name)
		for _, op := range svc.Operations {
			op.Service = svc.Name
			if !strings.HasPrefix(string(op.Name), string(svc.Name)+".") {
				op.Name = QualifiedName(string(svc.Name) + "." + string(op.Name))
			}
			s.operations[op.Name] = op
		}
	}

	return s, nil
}

func isBuiltin(name QualifiedName) bool {
	for _, b := range builtinScalars {
		if b == name {
			return true
		}
	}
	return false
}

func (s *Schema) addType(t *Type) {
	if _, ok := s.types[t.Name]; !ok {
		s.typeOrder = append(s.typeOrder, t.Name)
	}
	s.types[t.Name] = t
}

// Version identifies this snapshot. Graph caches are keyed by it.
func (s *Schema) Version() string { return s.version }

// Type looks up a type by name.
func (s *Schema) Type(name QualifiedName) (*Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// HasType reports whether name is declared.
func (s *Schema) HasType(name QualifiedName) bool {
	_, ok := s.types[name]
	return ok
}

// Types returns all types in declaration order, built-in scalars first.
func (s *Schema) Types() []*Type {
	out := make([]*Type, 0, len(s.typeOrder))
	for _, name := range s.typeOrder {
		out = append(out, s.types[name])
	}
	return out
}

// Services returns all services in declaration order.
func (s *Schema) Services() []*Service {
	out := make([]*Service, 0, len(s.svcOrder))
	for _, name := range s.svcOrder {
		out = append(out, s.services[name])
	}
	return out
}

// Operation looks up an operation by its qualified name.
func (s *Schema) Operation(name QualifiedName) (*Operation, bool) {
	op, ok := s.operations[name]
	return op, ok
}

// Operations returns all operations sorted by name.
func (s *Schema) Operations() []*Operation {
	out := make([]*Operation, 0, len(s.operations))
	for _, op := range s.operations {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsAssignable reports whether a value of type from can be used where type to
// is expected: the same type or any transitive supertype.
func (s *Schema) IsAssignable(from, to QualifiedName) bool {
	if from == to {
		return true
	}
	seen := map[QualifiedName]bool{from: true}
	queue := []QualifiedName{from}
	for len(queue) > 0 {
		t, ok := s.types[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		for _, super := range t.Inherits {
			if super == to {
				return true
			}
			if !seen[super] {
				seen[super] = true
				queue = append(queue, super)
			}
		}
	}
	return false
}

// Validate checks that every referenced type is declared. The first unknown
// reference is reported with its owner.
func (s *Schema) Validate() error {
	check := func(owner, member string, ref QualifiedName) error {
		if s.HasType(ref) {
			return nil
		}
		return fmt.Errorf("%s.%s references %s: %w", owner, member, ref, ErrUnknownType)
	}

	for _, t := range s.Types() {
		for _, a := range t.Attributes {
			if err := check(string(t.Name), a.Name, a.Type); err != nil {
				return err
			}
		}
		for _, super := range t.Inherits {
			if err := check(string(t.Name), "inherits", super); err != nil {
				return err
			}
		}
	}
	for _, op := range s.Operations() {
		for _, p := range op.Parameters {
			if err := check(string(op.Name), p.Name, p.Type); err != nil {
				return err
			}
		}
		if err := check(string(op.Name), "returns", op.ReturnType); err != nil {
			return err
		}
	}
	return nil
}

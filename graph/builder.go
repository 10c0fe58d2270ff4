package graph

import (
	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// Build compiles a schema snapshot into a graph. Dangling type references
// fail the build; no partial graph is returned.
//
// Vertices and edges emitted:
//
//	TYPE(T)         -HAS_ATTRIBUTE->      MEMBER(T@@a)
//	MEMBER(T@@a)    -IS_TYPE_OF->         TYPE(type of a)
//	MEMBER(T@@a)    -IS_ATTRIBUTE_OF->    TYPE(T)
//	TYPE(Sub)       -EXTENDS_TYPE->       TYPE(Super)
//	SERVICE(S)      -HAS_OPERATION->      OPERATION(S.op)
//	OPERATION(op)   -REQUIRES_PARAMETER-> PARAMETER(param/P)
//	TYPE(P)         -CAN_POPULATE->       PARAMETER(param/P)
//	PARAMETER(P)    -IS_PARAMETER_ON->    OPERATION(op)
//	OPERATION(op)   -PROVIDES->           PROVIDED_INSTANCE(R)
//	PROVIDED_INSTANCE(R) -IS_INSTANCE_OF-> TYPE(R)
func Build(s *schema.Schema) (*Graph, error) {
	if s == nil {
		return nil, errors.WrapFatal(ErrNilSchema, "Graph", "Build", "schema validation")
	}
	if err := s.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "Graph", "Build", "schema version "+s.Version())
	}

	b := newSession()
	for _, t := range s.Types() {
		if err := buildType(b, t); err != nil {
			return nil, err
		}
	}
	for _, svc := range s.Services() {
		for _, op := range svc.Operations {
			if err := buildOperation(b, svc, op); err != nil {
				return nil, err
			}
		}
	}
	return b.seal(), nil
}

func buildType(b *session, t *schema.Type) error {
	owner := TypeElement(t.Name)
	b.addVertex(owner)

	for _, attr := range t.Attributes {
		member := MemberElement(t.Name, attr.Name)
		// IS_TYPE_OF goes first: for a self-referencing attribute the
		// member->owner pair is claimed by the traversable label.
		if err := b.connect(owner, member, HasAttribute); err != nil {
			return err
		}
		if err := b.connect(member, TypeElement(attr.Type), IsTypeOf); err != nil {
			return err
		}
		if err := b.connect(member, owner, IsAttributeOf); err != nil {
			return err
		}
	}
	for _, super := range t.Inherits {
		if err := b.connect(owner, TypeElement(super), ExtendsType); err != nil {
			return err
		}
	}
	return nil
}

func buildOperation(b *session, svc *schema.Service, op *schema.Operation) error {
	opElement := OperationElement(op.Name)
	if err := b.connect(ServiceElement(svc.Name), opElement, HasOperation); err != nil {
		return err
	}

	for _, p := range op.Parameters {
		param := ParameterElement(p.Type)
		if err := b.connect(opElement, param, RequiresParameter); err != nil {
			return err
		}
		if err := b.connect(TypeElement(p.Type), param, CanPopulate); err != nil {
			return err
		}
		if err := b.connect(param, opElement, IsParameterOn); err != nil {
			return err
		}
	}

	provided := ProvidedInstanceElement(op.ReturnType)
	if err := b.connect(opElement, provided, Provides); err != nil {
		return err
	}
	return b.connect(provided, TypeElement(op.ReturnType), IsInstanceOf)
}

// WithFactTypes derives a new graph from base in which every fact type known
// to s is available as a provided instance. Unknown fact types are skipped.
// base is not modified.
func WithFactTypes(base *Graph, s *schema.Schema, types []schema.QualifiedName) (*Graph, error) {
	b := newSession()
	for _, v := range base.vertices {
		b.addVertex(v)
	}
	for _, e := range base.edges {
		if err := b.connect(e.From, e.To, e.Relationship); err != nil {
			return nil, err
		}
	}
	for _, t := range types {
		if !s.HasType(t) {
			continue
		}
		if err := b.connect(ProvidedInstanceElement(t), TypeElement(t), IsInstanceOf); err != nil {
			return nil, err
		}
	}
	return b.seal(), nil
}

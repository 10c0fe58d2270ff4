package schema

// ScalarType declares a scalar, optionally inheriting from other scalars.
func ScalarType(name QualifiedName, inherits ...QualifiedName) *Type {
	return &Type{Name: name, Scalar: true, Inherits: inherits}
}

// ObjectType declares an object type with the given attributes.
func ObjectType(name QualifiedName, attrs ...Attribute) *Type {
	return &Type{Name: name, Attributes: attrs}
}

// Extends adds supertypes and returns t.
func (t *Type) Extends(supers ...QualifiedName) *Type {
	t.Inherits = append(t.Inherits, supers...)
	return t
}

// Attr declares a single-valued attribute.
func Attr(name string, typ QualifiedName) Attribute {
	return Attribute{Name: name, Type: typ}
}

// ListAttr declares a collection-valued attribute.
func ListAttr(name string, typ QualifiedName) Attribute {
	return Attribute{Name: name, Type: typ, Collection: true}
}

// NewService declares a service.
func NewService(name QualifiedName, ops ...*Operation) *Service {
	return &Service{Name: name, Operations: ops}
}

// Op declares an operation returning a single value.
func Op(name QualifiedName, returns QualifiedName, params ...Parameter) *Operation {
	return &Operation{Name: name, ReturnType: returns, Parameters: params}
}

// ListOp declares an operation returning a collection.
func ListOp(name QualifiedName, returns QualifiedName, params ...Parameter) *Operation {
	return &Operation{Name: name, ReturnType: returns, ReturnsCollection: true, Parameters: params}
}

// Param declares an operation parameter.
func Param(name string, typ QualifiedName) Parameter {
	return Parameter{Name: name, Type: typ}
}

// Package sdl adapts GraphQL SDL documents into semquery schemas.
//
// Object, interface and input types become object types, scalars and enums
// become scalar types, and "implements" becomes inheritance. Object types
// annotated with @service become services whose fields are operations: field
// arguments are the operation parameters and the field type is the return type.
//
//	scalar CustomerId
//	type Customer { id: CustomerId! name: String }
//	type CustomerService @service {
//	  findCustomerById(id: CustomerId!): Customer
//	}
package sdl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// ServiceDirective marks an object type as a service.
const ServiceDirective = "service"

const prelude = `
directive @service on OBJECT
`

// LoadFiles reads and parses SDL files. The schema version is derived from the
// file contents so identical inputs always produce the same version.
func LoadFiles(paths ...string) (*schema.Schema, error) {
	sources := make([]*ast.Source, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "sdl", "LoadFiles", fmt.Sprintf("read schema file %s", path))
		}
		sources = append(sources, &ast.Source{Name: filepath.Base(path), Input: string(content)})
	}
	return Load("", sources...)
}

// Load parses SDL sources into a schema. An empty version is replaced by a
// content hash.
func Load(version string, sources ...*ast.Source) (*schema.Schema, error) {
	if version == "" {
		version = contentVersion(sources)
	}

	all := append([]*ast.Source{{Name: "semquery-prelude.graphql", Input: prelude, BuiltIn: true}}, sources...)
	doc, err := gqlparser.LoadSchema(all...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "sdl", "Load", "parse GraphQL schema")
	}

	names := make([]string, 0, len(doc.Types))
	for name, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var types []*schema.Type
	var services []*schema.Service
	for _, name := range names {
		def := doc.Types[name]
		if def.Directives.ForName(ServiceDirective) != nil {
			services = append(services, toService(def))
			continue
		}
		types = append(types, toType(def))
	}

	s, err := schema.New(version, types, services)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "sdl", "Load", "schema validation")
	}
	return s, nil
}

func toType(def *ast.Definition) *schema.Type {
	t := &schema.Type{
		Name: schema.QualifiedName(def.Name),
		Doc:  def.Description,
	}
	for _, iface := range def.Interfaces {
		t.Inherits = append(t.Inherits, schema.QualifiedName(iface))
	}

	switch def.Kind {
	case ast.Scalar, ast.Enum:
		t.Scalar = true
	default:
		for _, field := range def.Fields {
			t.Attributes = append(t.Attributes, schema.Attribute{
				Name:       field.Name,
				Type:       schema.QualifiedName(field.Type.Name()),
				Collection: field.Type.Elem != nil,
			})
		}
	}
	return t
}

func toService(def *ast.Definition) *schema.Service {
	svc := &schema.Service{Name: schema.QualifiedName(def.Name)}
	for _, field := range def.Fields {
		op := &schema.Operation{
			Name:              schema.QualifiedName(field.Name),
			ReturnType:        schema.QualifiedName(field.Type.Name()),
			ReturnsCollection: field.Type.Elem != nil,
		}
		for _, arg := range field.Arguments {
			op.Parameters = append(op.Parameters, schema.Parameter{
				Name:       arg.Name,
				Type:       schema.QualifiedName(arg.Type.Name()),
				Collection: arg.Type.Elem != nil,
			})
		}
		svc.Operations = append(svc.Operations, op)
	}
	return svc
}

func contentVersion(sources []*ast.Source) string {
	h := sha256.New()
	for _, src := range sources {
		h.Write([]byte(src.Name))
		h.Write([]byte{0})
		h.Write([]byte(src.Input))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

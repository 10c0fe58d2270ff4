package graph

import (
	"errors"

	"github.com/c360/semquery/schema"
)

// Sentinel errors for graph construction. Builders wrap them as fatal: a
// schema version that cannot be compiled is never partially served.
var (
	// ErrUnknownType indicates a schema element references an undeclared type
	ErrUnknownType = schema.ErrUnknownType

	// ErrNilSchema indicates a build was requested without a schema
	ErrNilSchema = errors.New("nil schema")
)

// Package operation defines how the query engine calls schema-declared
// operations. Transports plug in behind the Invoker interface; the package
// ships a canned-response invoker for tests and local runs, and a decorator
// that retries transient failures.
package operation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

var (
	// ErrNoResponse is returned when an invoker has no answer for a request.
	ErrNoResponse = stderrors.New("no response for operation")

	// ErrMissingParameter is returned when a request lacks a declared parameter.
	ErrMissingParameter = stderrors.New("missing parameter")
)

// ParameterValue binds a value to a named operation parameter.
type ParameterValue struct {
	Name  string               `json:"name"`
	Value *facts.TypedInstance `json:"value"`
}

// Request is one invocation.
type Request struct {
	QueryID    string            `json:"query_id"`
	Operation  *schema.Operation `json:"-"`
	Parameters []ParameterValue  `json:"parameters"`
}

// Parameter returns the value bound to name, or nil.
func (r Request) Parameter(name string) *facts.TypedInstance {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}

// Validate checks that every declared parameter is bound.
func (r Request) Validate() error {
	if r.Operation == nil {
		return fmt.Errorf("request without operation: %w", ErrMissingParameter)
	}
	for _, p := range r.Operation.Parameters {
		if r.Parameter(p.Name) == nil {
			return fmt.Errorf("%s(%s): %w", r.Operation.Name, p.Name, ErrMissingParameter)
		}
	}
	return nil
}

func (r Request) String() string {
	parts := make([]string, len(r.Parameters))
	for i, p := range r.Parameters {
		parts[i] = p.Name + "=" + p.Value.String()
	}
	name := "<nil>"
	if r.Operation != nil {
		name = string(r.Operation.Name)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

// Invoker executes an operation and returns its result. Implementations
// must be safe for concurrent use. Transient failures should be classified
// with errors.WrapTransient so they can be retried.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*facts.TypedInstance, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (*facts.TypedInstance, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (*facts.TypedInstance, error) {
	return f(ctx, req)
}

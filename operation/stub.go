package operation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

// Handler computes a response for a request.
type Handler func(ctx context.Context, req Request) (*facts.TypedInstance, error)

// StubInvoker answers from canned responses keyed by operation and parameter
// values, falling back to per-operation handlers.
type StubInvoker struct {
	mu        sync.RWMutex
	responses map[string]stubResponse
	handlers  map[schema.QualifiedName]Handler
	calls     []Request
}

type stubResponse struct {
	value *facts.TypedInstance
	err   error
}

// NewStubInvoker creates an invoker without responses.
func NewStubInvoker() *StubInvoker {
	return &StubInvoker{
		responses: make(map[string]stubResponse),
		handlers:  make(map[schema.QualifiedName]Handler),
	}
}

// Respond registers the result of op for the given parameter values, in
// declaration order.
func (s *StubInvoker) Respond(op schema.QualifiedName, result *facts.TypedInstance, params ...*facts.TypedInstance) *StubInvoker {
	s.mu.Lock()
	s.responses[stubKey(op, params)] = stubResponse{value: result}
	s.mu.Unlock()
	return s
}

// Fail registers an error for op with the given parameter values.
func (s *StubInvoker) Fail(op schema.QualifiedName, err error, params ...*facts.TypedInstance) *StubInvoker {
	s.mu.Lock()
	s.responses[stubKey(op, params)] = stubResponse{err: err}
	s.mu.Unlock()
	return s
}

// Handle registers a handler for every call of op without a canned response.
func (s *StubInvoker) Handle(op schema.QualifiedName, h Handler) *StubInvoker {
	s.mu.Lock()
	s.handlers[op] = h
	s.mu.Unlock()
	return s
}

// Invoke implements Invoker.
func (s *StubInvoker) Invoke(ctx context.Context, req Request) (*facts.TypedInstance, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "StubInvoker", "Invoke", "request validation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := make([]*facts.TypedInstance, len(req.Operation.Parameters))
	for i, p := range req.Operation.Parameters {
		params[i] = req.Parameter(p.Name)
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	resp, ok := s.responses[stubKey(req.Operation.Name, params)]
	handler := s.handlers[req.Operation.Name]
	s.mu.Unlock()

	switch {
	case ok && resp.err != nil:
		return nil, resp.err
	case ok:
		return resp.value.WithSource(string(req.Operation.Name)), nil
	case handler != nil:
		return handler(ctx, req)
	default:
		return nil, errors.WrapInvalid(ErrNoResponse, "StubInvoker", "Invoke", req.String())
	}
}

// Calls returns the requests received so far.
func (s *StubInvoker) Calls() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.calls...)
}

// CallCount returns how often op was invoked.
func (s *StubInvoker) CallCount(op schema.QualifiedName) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.calls {
		if c.Operation.Name == op {
			n++
		}
	}
	return n
}

func stubKey(op schema.QualifiedName, params []*facts.TypedInstance) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = p.Hash()
	}
	return string(op) + "(" + strings.Join(parts, ",") + ")"
}

// ResponseFile is the YAML layout of canned responses.
//
//	responses:
//	  - operation: CustomerService.findCustomerById
//	    parameters:
//	      id: "123"
//	    result:
//	      id: "123"
//	      name: Jimmy
//	  - operation: CustomerService.findCustomerById
//	    parameters:
//	      id: "999"
//	    error: customer service unavailable
//	    transient: true
type ResponseFile struct {
	Responses []ResponseSpec `yaml:"responses"`
}

// ResponseSpec is one canned response.
type ResponseSpec struct {
	Operation  string         `yaml:"operation"`
	Parameters map[string]any `yaml:"parameters"`
	Result     any            `yaml:"result"`
	Error      string         `yaml:"error"`
	Transient  bool           `yaml:"transient"`
}

// LoadStubInvoker reads canned responses from a YAML file.
func LoadStubInvoker(path string, s *schema.Schema) (*StubInvoker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "StubInvoker", "LoadStubInvoker", "read "+path)
	}
	return ParseStubInvoker(data, s)
}

// ParseStubInvoker builds a stub invoker from YAML. Values are typed against s.
func ParseStubInvoker(data []byte, s *schema.Schema) (*StubInvoker, error) {
	var file ResponseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(err, "StubInvoker", "ParseStubInvoker", "yaml decode")
	}

	stub := NewStubInvoker()
	for i, spec := range file.Responses {
		if err := stub.addSpec(s, spec); err != nil {
			return nil, errors.WrapInvalid(err, "StubInvoker", "ParseStubInvoker", fmt.Sprintf("response %d", i))
		}
	}
	return stub, nil
}

func (s *StubInvoker) addSpec(sc *schema.Schema, spec ResponseSpec) error {
	op, ok := sc.Operation(schema.QualifiedName(spec.Operation))
	if !ok {
		return fmt.Errorf("operation %s: %w", spec.Operation, schema.ErrUnknownType)
	}

	params := make([]*facts.TypedInstance, len(op.Parameters))
	for i, p := range op.Parameters {
		raw, ok := spec.Parameters[p.Name]
		if !ok {
			return fmt.Errorf("%s(%s): %w", op.Name, p.Name, ErrMissingParameter)
		}
		value, err := facts.FromValue(sc, p.Type, raw)
		if err != nil {
			return err
		}
		params[i] = value
	}

	if spec.Error != "" {
		err := fmt.Errorf("%s: %s", op.Name, spec.Error)
		if spec.Transient {
			err = errors.WrapTransient(err, "StubInvoker", "Invoke", string(op.Name))
		}
		s.Fail(op.Name, err, params...)
		return nil
	}

	result, err := facts.FromValue(sc, op.ReturnType, spec.Result)
	if err != nil {
		return err
	}
	if op.ReturnsCollection && !result.IsCollection() {
		result = facts.Collection(op.ReturnType, result)
	}
	s.Respond(op.Name, result, params...)
	return nil
}

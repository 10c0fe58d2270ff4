package query

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semquery/operation"
	"github.com/c360/semquery/schema"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrNoPath means every candidate path from the facts to the target
	// was exhausted.
	ErrNoPath = stderrors.New("no path to target type")

	// ErrInvocationFailed means an operation invocation failed and no
	// alternative path produced a value.
	ErrInvocationFailed = stderrors.New("operation invocation failed")

	// ErrUnsupportedQuery is returned for query shapes the engine rejects,
	// such as several targets in one query.
	ErrUnsupportedQuery = stderrors.New("unsupported query")

	// ErrParse is returned for malformed query strings.
	ErrParse = stderrors.New("query syntax error")
)

// FailureKind classifies a query failure.
type FailureKind int

// Failure kinds.
const (
	FailureNoPath FailureKind = iota + 1
	FailureInvocation
)

func (k FailureKind) String() string {
	switch k {
	case FailureNoPath:
		return "NO_PATH"
	case FailureInvocation:
		return "INVOCATION"
	default:
		return "UNKNOWN"
	}
}

// SearchStats summarizes the path searches run for a query.
type SearchStats struct {
	Searches       int           `json:"searches"`
	Iterations     int           `json:"iterations"`
	Elapsed        time.Duration `json:"elapsed"`
	PathsEvaluated int           `json:"paths_evaluated"`
	ExcludedPaths  int           `json:"excluded_paths"`
}

func (s *SearchStats) add(o SearchStats) {
	s.Searches += o.Searches
	s.Iterations += o.Iterations
	s.Elapsed += o.Elapsed
	s.PathsEvaluated += o.PathsEvaluated
	s.ExcludedPaths += o.ExcludedPaths
}

// Failure is the terminal error of a query. It names the target and, for
// invocation failures, the operation and its inputs. Graph internals are not
// exposed.
type Failure struct {
	Kind          FailureKind
	QueryID       string
	Target        schema.QualifiedName
	LastOperation schema.QualifiedName
	Parameters    []operation.ParameterValue
	Stats         SearchStats
	Err           error
}

func (f *Failure) Error() string {
	var b strings.Builder
	switch f.Kind {
	case FailureInvocation:
		fmt.Fprintf(&b, "query %s: finding %s: operation %s", f.QueryID, f.Target, f.LastOperation)
		if len(f.Parameters) > 0 {
			parts := make([]string, len(f.Parameters))
			for i, p := range f.Parameters {
				parts[i] = p.Name + "=" + p.Value.String()
			}
			fmt.Fprintf(&b, "(%s)", strings.Join(parts, ", "))
		}
		b.WriteString(" failed")
	default:
		fmt.Fprintf(&b, "query %s: no path to %s", f.QueryID, f.Target)
	}
	fmt.Fprintf(&b, " after %d search iterations", f.Stats.Iterations)
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the kind sentinel and the cause.
func (f *Failure) Unwrap() []error {
	var sentinel error
	switch f.Kind {
	case FailureInvocation:
		sentinel = ErrInvocationFailed
	default:
		sentinel = ErrNoPath
	}
	if f.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, f.Err}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := stderrors.As(err, &f)
	return f, ok
}

// invocationError marks a failed invocation inside path evaluation so the
// search can keep looking and report it if nothing else works.
type invocationError struct {
	op     *schema.Operation
	params []operation.ParameterValue
	err    error
}

func (e *invocationError) Error() string {
	req := operation.Request{Operation: e.op, Parameters: e.params}
	return req.String() + ": " + e.err.Error()
}

func (e *invocationError) Unwrap() error { return e.err }

// errCancelled stops discovery after Stop. It never reaches callers.
var errCancelled = stderrors.New("query cancelled")

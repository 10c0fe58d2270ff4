// Package facts holds the values known to a query: typed instances, the fact
// set map they are registered in, and the query-scoped fact bag view.
package facts

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/semquery/schema"
)

// TypedInstance is a value tagged with its schema type. Scalars carry Value,
// objects carry Fields, collections carry Items.
type TypedInstance struct {
	Type   schema.QualifiedName      `json:"type" yaml:"type"`
	Value  any                       `json:"value,omitempty" yaml:"value,omitempty"`
	Fields map[string]*TypedInstance `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items  []*TypedInstance          `json:"items,omitempty" yaml:"items,omitempty"`

	// Source records where the value came from: "provided" or the
	// qualified name of the operation that returned it.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// List marks a collection, including an empty one.
	List bool `json:"list,omitempty" yaml:"list,omitempty"`
}

// Scalar creates a scalar instance.
func Scalar(t schema.QualifiedName, v any) *TypedInstance {
	return &TypedInstance{Type: t, Value: v}
}

// Object creates an object instance.
func Object(t schema.QualifiedName, fields map[string]*TypedInstance) *TypedInstance {
	if fields == nil {
		fields = make(map[string]*TypedInstance)
	}
	return &TypedInstance{Type: t, Fields: fields}
}

// Collection creates a collection of element type t.
func Collection(t schema.QualifiedName, items ...*TypedInstance) *TypedInstance {
	if items == nil {
		items = []*TypedInstance{}
	}
	return &TypedInstance{Type: t, Items: items, List: true}
}

// IsCollection reports whether the instance is a collection.
func (ti *TypedInstance) IsCollection() bool {
	return ti != nil && (ti.List || ti.Items != nil)
}

// Field returns an attribute value, or nil.
func (ti *TypedInstance) Field(name string) *TypedInstance {
	if ti == nil || ti.Fields == nil {
		return nil
	}
	return ti.Fields[name]
}

// WithSource returns a shallow copy tagged with source.
func (ti *TypedInstance) WithSource(source string) *TypedInstance {
	cp := *ti
	cp.Source = source
	return &cp
}

// Text renders a scalar as a string for constraint comparison and display.
func (ti *TypedInstance) Text() string {
	if ti == nil || ti.Value == nil {
		return ""
	}
	switch v := ti.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case uint64:
		return strconv.FormatUint(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Plain converts the instance into untyped JSON-compatible values.
func (ti *TypedInstance) Plain() any {
	switch {
	case ti == nil:
		return nil
	case ti.IsCollection():
		out := make([]any, len(ti.Items))
		for i, item := range ti.Items {
			out[i] = item.Plain()
		}
		return out
	case ti.Fields != nil:
		out := make(map[string]any, len(ti.Fields))
		for k, v := range ti.Fields {
			out[k] = v.Plain()
		}
		return out
	default:
		return ti.Value
	}
}

// Hash identifies the instance by type and content. Source is ignored.
func (ti *TypedInstance) Hash() string {
	h := fnv.New64a()
	h.Write([]byte(ti.Type))
	h.Write([]byte{0})
	data, _ := json.Marshal(ti.Plain())
	h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

func (ti *TypedInstance) String() string {
	if ti == nil {
		return "<nil>"
	}
	if ti.IsCollection() {
		parts := make([]string, len(ti.Items))
		for i, item := range ti.Items {
			parts[i] = item.String()
		}
		return fmt.Sprintf("%s[%s]", ti.Type, strings.Join(parts, ", "))
	}
	if ti.Fields != nil {
		keys := make([]string, 0, len(ti.Fields))
		for k := range ti.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + ti.Fields[k].String()
		}
		return fmt.Sprintf("%s{%s}", ti.Type, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s(%s)", ti.Type, ti.Text())
}

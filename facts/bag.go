package facts

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/semquery/schema"
)

// FactBag is the read-only, query-scoped view of a fact set map, resolved
// against one schema.
type FactBag struct {
	schema *schema.Schema
	values []*TypedInstance
}

// ToFactBag filters the map by ids and builds a bag against s.
func (m *FactSetMap) ToFactBag(s *schema.Schema, ids ...FactSetID) *FactBag {
	retained := m.RetainFactsFromFactSet(ids...)
	var values []*TypedInstance
	for _, f := range retained.Facts() {
		values = append(values, f.Value)
	}
	return NewFactBag(s, values...)
}

// NewFactBag creates a bag over values in precedence order. A value equal by
// content to an earlier one is dropped.
func NewFactBag(s *schema.Schema, values ...*TypedInstance) *FactBag {
	return &FactBag{schema: s, values: distinct(values)}
}

func distinct(values []*TypedInstance) []*TypedInstance {
	seen := make(map[string]struct{}, len(values))
	out := make([]*TypedInstance, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		h := v.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Schema returns the schema the bag is resolved against.
func (b *FactBag) Schema() *schema.Schema { return b.schema }

// Values returns the facts in precedence order.
func (b *FactBag) Values() []*TypedInstance {
	return append([]*TypedInstance(nil), b.values...)
}

// Len returns the number of facts.
func (b *FactBag) Len() int { return len(b.values) }

// With returns a new bag where values take precedence over the existing facts.
func (b *FactBag) With(values ...*TypedInstance) *FactBag {
	merged := make([]*TypedInstance, 0, len(values)+len(b.values))
	merged = append(merged, values...)
	merged = append(merged, b.values...)
	return &FactBag{schema: b.schema, values: distinct(merged)}
}

// First returns the first fact assignable to t. Collections match on their
// element type and are skipped; use All to see their items.
func (b *FactBag) First(t schema.QualifiedName) (*TypedInstance, bool) {
	for _, v := range b.values {
		if !v.IsCollection() && b.assignable(v.Type, t) {
			return v, true
		}
	}
	return nil, false
}

// All returns every fact assignable to t, flattening collections.
func (b *FactBag) All(t schema.QualifiedName) []*TypedInstance {
	var out []*TypedInstance
	for _, v := range b.values {
		if !b.assignable(v.Type, t) {
			continue
		}
		if v.IsCollection() {
			out = append(out, v.Items...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Has reports whether a single fact of type t is present.
func (b *FactBag) Has(t schema.QualifiedName) bool {
	_, ok := b.First(t)
	return ok
}

// Types returns the distinct declared types of the facts, sorted.
func (b *FactBag) Types() []schema.QualifiedName {
	seen := make(map[schema.QualifiedName]bool)
	var out []schema.QualifiedName
	for _, v := range b.values {
		if !seen[v.Type] {
			seen[v.Type] = true
			out = append(out, v.Type)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypeSignature identifies the set of fact types. Graphs with fact types are
// cached by schema version and this signature.
func (b *FactBag) TypeSignature() string {
	types := b.Types()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Hash identifies the bag contents.
func (b *FactBag) Hash() string {
	h := fnv.New64a()
	for _, v := range b.values {
		h.Write([]byte(v.Hash()))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (b *FactBag) assignable(from, to schema.QualifiedName) bool {
	if b.schema == nil {
		return from == to
	}
	return b.schema.IsAssignable(from, to)
}

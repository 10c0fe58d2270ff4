package facts

import (
	"sort"
	"sync"
)

// FactSetID names a partition of facts.
type FactSetID string

// Reserved fact set ids.
const (
	// All selects every fact set.
	All FactSetID = "@all"
	// None selects nothing.
	None FactSetID = "@none"
	// Default is the fact set used when the caller does not name one.
	Default FactSetID = "@default"
	// Caller holds facts supplied with the query itself.
	Caller FactSetID = "@caller"
)

// Fact is a value registered under a fact set.
type Fact struct {
	SetID FactSetID
	Value *TypedInstance
}

// FactSetMap is an append-only multimap from fact set id to a set of values.
// A value equal by content to one already under the same id is not added
// again. Values are kept in insertion order per id and ids in
// first-insertion order.
type FactSetMap struct {
	mu     sync.RWMutex
	order  []FactSetID
	values map[FactSetID][]*TypedInstance
	hashes map[FactSetID]map[string]struct{}
}

// NewFactSetMap creates an empty map.
func NewFactSetMap() *FactSetMap {
	return &FactSetMap{
		values: make(map[FactSetID][]*TypedInstance),
		hashes: make(map[FactSetID]map[string]struct{}),
	}
}

// FactSetMapOf creates a map from facts in order.
func FactSetMapOf(facts ...Fact) *FactSetMap {
	m := NewFactSetMap()
	for _, f := range facts {
		m.Add(f.SetID, f.Value)
	}
	return m
}

// Add appends value under id and reports whether it was added. Reserved
// selector ids All and None are stored under Default instead.
func (m *FactSetMap) Add(id FactSetID, value *TypedInstance) bool {
	if value == nil {
		return false
	}
	if id == "" || id == All || id == None {
		id = Default
	}
	h := value.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()
	seen, ok := m.hashes[id]
	if !ok {
		m.order = append(m.order, id)
		seen = make(map[string]struct{})
		m.hashes[id] = seen
	}
	if _, dup := seen[h]; dup {
		return false
	}
	seen[h] = struct{}{}
	m.values[id] = append(m.values[id], value)
	return true
}

// Get returns the values registered under id.
func (m *FactSetMap) Get(id FactSetID) []*TypedInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*TypedInstance(nil), m.values[id]...)
}

// IDs returns the fact set ids present, in first-insertion order.
func (m *FactSetMap) IDs() []FactSetID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FactSetID(nil), m.order...)
}

// Facts returns every fact, grouped by id in first-insertion order.
func (m *FactSetMap) Facts() []Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Fact
	for _, id := range m.order {
		for _, v := range m.values[id] {
			out = append(out, Fact{SetID: id, Value: v})
		}
	}
	return out
}

// Len returns the total number of facts.
func (m *FactSetMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, vs := range m.values {
		n += len(vs)
	}
	return n
}

// RetainFactsFromFactSet returns a new map holding only the requested fact
// sets. All yields a copy of the whole map and None an empty map; None wins
// when both are given.
func (m *FactSetMap) RetainFactsFromFactSet(ids ...FactSetID) *FactSetMap {
	keep := make(map[FactSetID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	out := NewFactSetMap()
	if keep[None] {
		return out
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if keep[All] || keep[id] {
			out.order = append(out.order, id)
			out.values[id] = append([]*TypedInstance(nil), m.values[id]...)
			hashes := make(map[string]struct{}, len(m.hashes[id]))
			for h := range m.hashes[id] {
				hashes[h] = struct{}{}
			}
			out.hashes[id] = hashes
		}
	}
	return out
}

// Union returns a new map with the facts of m followed by those of other.
func (m *FactSetMap) Union(other *FactSetMap) *FactSetMap {
	out := NewFactSetMap()
	for _, f := range m.Facts() {
		out.Add(f.SetID, f.Value)
	}
	for _, f := range other.Facts() {
		out.Add(f.SetID, f.Value)
	}
	return out
}

// Equal reports whether both maps hold the same values under the same ids,
// ignoring the order of ids.
func (m *FactSetMap) Equal(other *FactSetMap) bool {
	a, b := m.snapshot(), other.snapshot()
	if len(a) != len(b) {
		return false
	}
	for id, vs := range a {
		ws, ok := b[id]
		if !ok || len(vs) != len(ws) {
			return false
		}
		for i := range vs {
			if vs[i] != ws[i] {
				return false
			}
		}
	}
	return true
}

func (m *FactSetMap) snapshot() map[FactSetID][]*TypedInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[FactSetID][]*TypedInstance, len(m.values))
	for id, vs := range m.values {
		out[id] = vs
	}
	return out
}

// SortedIDs returns ids sorted lexically, for stable output.
func SortedIDs(ids []FactSetID) []FactSetID {
	out := append([]FactSetID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

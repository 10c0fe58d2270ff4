package schema

import "sync"

// Provider supplies the current schema and notifies listeners when it changes.
type Provider interface {
	Schema() *Schema
	OnChange(fn func(*Schema))
}

// StaticProvider holds a schema that only changes through Set.
type StaticProvider struct {
	mu        sync.RWMutex
	current   *Schema
	listeners []func(*Schema)
}

// NewStaticProvider creates a provider for s.
func NewStaticProvider(s *Schema) *StaticProvider {
	return &StaticProvider{current: s}
}

// Schema returns the current schema.
func (p *StaticProvider) Schema() *Schema {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers fn to run after every Set.
func (p *StaticProvider) OnChange(fn func(*Schema)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Set replaces the schema and notifies listeners.
func (p *StaticProvider) Set(s *Schema) {
	p.mu.Lock()
	p.current = s
	listeners := append([]func(*Schema){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

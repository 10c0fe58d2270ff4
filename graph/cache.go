package graph

import (
	"sync"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/pkg/cache"
	"github.com/c360/semquery/schema"
)

// Cache memoizes built graphs. Base graphs are keyed by schema version;
// graphs with fact types by schema version and fact type signature.
// Cached graphs are shared read-only.
type Cache struct {
	base    cache.Cache[*Graph]
	factual cache.Cache[*Graph]
	metrics *metric.Metrics

	// serializes builds so concurrent misses on one key build once
	mu sync.Mutex
}

// NewCache creates a graph cache holding at most baseSize schema graphs and
// factsSize graphs with fact types.
func NewCache(baseSize, factsSize int, registry *metric.MetricsRegistry) (*Cache, error) {
	base, err := cache.NewLRU(baseSize, cache.WithMetrics[*Graph](registry, "graph_base"))
	if err != nil {
		return nil, errors.WrapInvalid(err, "GraphCache", "NewCache", "base cache creation")
	}
	factual, err := cache.NewLRU(factsSize, cache.WithMetrics[*Graph](registry, "graph_facts"))
	if err != nil {
		return nil, errors.WrapInvalid(err, "GraphCache", "NewCache", "fact type cache creation")
	}
	c := &Cache{base: base, factual: factual}
	if registry != nil {
		c.metrics = registry.CoreMetrics()
	}
	return c, nil
}

// Base returns the graph of s, building it on a miss.
func (c *Cache) Base(s *schema.Schema) (*Graph, error) {
	if g, ok := c.base.Get(s.Version()); ok {
		return g, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseLocked(s)
}

func (c *Cache) baseLocked(s *schema.Schema) (*Graph, error) {
	if g, ok := c.base.Get(s.Version()); ok {
		return g, nil
	}
	g, err := Build(s)
	if err != nil {
		return nil, err
	}
	c.recordBuild()
	if _, err := c.base.Set(s.Version(), g); err != nil {
		return nil, errors.Wrap(err, "GraphCache", "Base", "cache store")
	}
	return g, nil
}

// ForFacts returns the graph of s extended with the given fact types.
// signature must identify types; see facts.FactBag.TypeSignature.
func (c *Cache) ForFacts(s *schema.Schema, signature string, types []schema.QualifiedName) (*Graph, error) {
	key := s.Version() + "|" + signature
	if g, ok := c.factual.Get(key); ok {
		return g, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.factual.Get(key); ok {
		return g, nil
	}

	base, err := c.baseLocked(s)
	if err != nil {
		return nil, err
	}
	g, err := WithFactTypes(base, s, types)
	if err != nil {
		return nil, err
	}
	c.recordBuild()
	if _, err := c.factual.Set(key, g); err != nil {
		return nil, errors.Wrap(err, "GraphCache", "ForFacts", "cache store")
	}
	return g, nil
}

// Invalidate drops every cached graph. Called when the schema changes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.base.Clear()
	_ = c.factual.Clear()
}

// Len returns the number of cached base and fact type graphs.
func (c *Cache) Len() (base, withFacts int) {
	return c.base.Size(), c.factual.Size()
}

func (c *Cache) recordBuild() {
	if c.metrics != nil {
		c.metrics.GraphBuilds.Inc()
	}
}

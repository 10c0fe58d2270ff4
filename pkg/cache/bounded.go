package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/c360/semquery/errors"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time // zero when the cache has no ttl
}

// boundedCache is an LRU cache with an optional time-to-live per entry.
// Expired entries are removed lazily on access and when room is needed.
type boundedCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
	now     func() time.Time
}

func newBounded[V any](maxSize int, ttl time.Duration, opts *cacheOptions[V]) (*boundedCache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("max size %d: %w", maxSize, errors.ErrInvalidConfig),
			"cache", "newBounded", "size validation")
	}

	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newBounded", "metrics registration")
		}
	}

	return &boundedCache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
		now:     opts.clock,
	}, nil
}

func (c *boundedCache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && !c.now().Before(e.expiresAt)
}

// Get retrieves a live value and marks it as recently used.
func (c *boundedCache[V]) Get(key string) (V, bool) {
	var zero V
	var evicted []*entry[V]

	c.mu.Lock()
	element, exists := c.items[key]
	if exists {
		e := element.Value.(*entry[V])
		if c.expired(e) {
			c.removeElement(element)
			c.stats.Eviction()
			evicted = append(evicted, e)
		} else {
			c.order.MoveToFront(element)
			c.stats.Hit()
			c.recordSize()
			if c.metrics != nil {
				c.metrics.recordHit()
			}
			c.mu.Unlock()
			return e.value, true
		}
	}
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
	c.recordSize()
	c.mu.Unlock()

	c.notify(evicted)
	return zero, false
}

// Set stores a value, evicting the least recently used entry when full.
func (c *boundedCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var evicted []*entry[V]

	c.mu.Lock()
	c.stats.Set()
	if c.metrics != nil {
		c.metrics.recordSet()
	}

	if element, exists := c.items[key]; exists {
		e := element.Value.(*entry[V])
		e.value = value
		e.expiresAt = c.deadline()
		c.order.MoveToFront(element)
		c.mu.Unlock()
		return false, nil
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: c.deadline()})
	for len(c.items) > c.maxSize {
		evicted = append(evicted, c.evictOldest())
	}
	c.recordSize()
	c.mu.Unlock()

	c.notify(evicted)
	return true, nil
}

// Delete removes an entry by key.
func (c *boundedCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}
	e := element.Value.(*entry[V])
	c.removeElement(element)
	c.stats.Delete()
	if c.metrics != nil {
		c.metrics.recordDelete()
	}
	c.recordSize()
	c.mu.Unlock()

	c.notify([]*entry[V]{e})
	return true, nil
}

// Clear removes all entries.
func (c *boundedCache[V]) Clear() error {
	c.mu.Lock()
	var evicted []*entry[V]
	if c.evictFn != nil {
		for element := c.order.Back(); element != nil; element = element.Prev() {
			evicted = append(evicted, element.Value.(*entry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.recordSize()
	c.mu.Unlock()

	c.notify(evicted)
	return nil
}

// Size returns the number of live entries.
func (c *boundedCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl == 0 {
		return len(c.items)
	}
	live := 0
	for _, element := range c.items {
		if !c.expired(element.Value.(*entry[V])) {
			live++
		}
	}
	return live
}

// Keys returns live keys, most recently used first.
func (c *boundedCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		e := element.Value.(*entry[V])
		if !c.expired(e) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *boundedCache[V]) Stats() *Statistics {
	return c.stats
}

func (c *boundedCache[V]) deadline() time.Time {
	if c.ttl == 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

// evictOldest prefers an expired entry, falling back to the least recently used.
// Must be called with mutex held.
func (c *boundedCache[V]) evictOldest() *entry[V] {
	victim := c.order.Back()
	if c.ttl > 0 {
		for element := c.order.Back(); element != nil; element = element.Prev() {
			if c.expired(element.Value.(*entry[V])) {
				victim = element
				break
			}
		}
	}
	e := victim.Value.(*entry[V])
	c.removeElement(victim)
	c.stats.Eviction()
	if c.metrics != nil {
		c.metrics.recordEviction()
	}
	return e
}

func (c *boundedCache[V]) removeElement(element *list.Element) {
	delete(c.items, element.Value.(*entry[V]).key)
	c.order.Remove(element)
}

func (c *boundedCache[V]) recordSize() {
	c.stats.UpdateSize(int64(len(c.items)))
	if c.metrics != nil {
		c.metrics.updateSize(len(c.items))
	}
}

// notify runs eviction callbacks outside the lock.
func (c *boundedCache[V]) notify(evicted []*entry[V]) {
	if c.evictFn == nil {
		return
	}
	for _, e := range evicted {
		c.evictFn(e.key, e.value)
	}
}

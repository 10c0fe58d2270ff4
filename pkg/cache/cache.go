// Package cache provides generic, thread-safe bounded caches.
//
// Two flavours are offered:
//   - NewLRU: least recently used eviction once the entry bound is reached
//   - NewExpiring: LRU eviction plus a per-entry time-to-live
//
// Statistics are always collected. Prometheus metrics are optional and enabled
// with WithMetrics.
package cache

import (
	"time"

	"github.com/c360/semquery/errors"
)

// Cache represents a generic cache keyed by string.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of live entries.
	Size() int

	// Keys returns live keys, most recently used first.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry is evicted, expired, deleted or cleared.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	return newBounded(maxSize, 0, applyOptions(options...))
}

// NewExpiring creates a cache holding at most maxSize entries, each of which
// expires ttl after it was last set.
func NewExpiring[V any](maxSize int, ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewExpiring", "ttl must be positive")
	}
	return newBounded(maxSize, ttl, applyOptions(options...))
}

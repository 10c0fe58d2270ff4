package query

import (
	"time"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/pkg/cache"
)

// exclusionCache remembers failed path signatures across queries for a
// bounded time. Keys are scoped by schema version, fact bag and target, so
// only an identical discovery skips the path.
type exclusionCache struct {
	entries cache.Cache[bool]
}

// newExclusionCache returns a disabled cache when size is zero.
func newExclusionCache(size int, ttl time.Duration, registry *metric.MetricsRegistry) (*exclusionCache, error) {
	if size <= 0 {
		return &exclusionCache{}, nil
	}
	entries, err := cache.NewExpiring(size, ttl, cache.WithMetrics[bool](registry, "search_exclusions"))
	if err != nil {
		return nil, errors.WrapInvalid(err, "query", "newExclusionCache", "exclusion cache creation")
	}
	return &exclusionCache{entries: entries}, nil
}

func exclusionScope(version, bagHash string, expr Expression) string {
	return version + "|" + bagHash + "|" + expr.String() + "|"
}

func (x *exclusionCache) has(key string) bool {
	if x.entries == nil {
		return false
	}
	_, ok := x.entries.Get(key)
	return ok
}

func (x *exclusionCache) add(key string) {
	if x.entries != nil {
		_, _ = x.entries.Set(key, true)
	}
}

func (x *exclusionCache) clear() {
	if x.entries != nil {
		_ = x.entries.Clear()
	}
}

func (x *exclusionCache) size() int {
	if x.entries == nil {
		return 0
	}
	return x.entries.Size()
}

package sitemap

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache holds a single computed value for a fixed TTL. Expiry is the only
// invalidation: the gazetteer does not change while the process runs.
type Cache[T any] struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.Mutex
	value   T
	expires time.Time
	valid   bool
}

// NewCache creates an empty cache. A non-positive ttl disables caching.
func NewCache[T any](clock clockwork.Clock, ttl time.Duration) *Cache[T] {
	return &Cache[T]{clock: clock, ttl: ttl}
}

// Get returns the cached value, or calls load and caches its result. Errors
// are never cached so the next call retries. Concurrent misses wait for a
// single load. hit reports whether load was skipped.
func (c *Cache[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (value T, hit bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.valid && now.Before(c.expires) {
		return c.value, true, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if c.ttl > 0 {
		c.value = v
		c.expires = now.Add(c.ttl)
		c.valid = true
	}
	return v, false, nil
}

// Invalidate drops the cached value.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.value = zero
	c.valid = false
}

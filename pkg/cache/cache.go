package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a TTL memoization cache. A read older than the TTL is a miss and
// evicts the entry. Distinct caches with distinct TTLs front distinct
// aggregates so bursty callers do not amplify load onto the pool.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value if it is still fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if time.Since(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; Set may have refreshed it.
		if cur, still := c.entries[key]; still && time.Since(cur.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: time.Now()}
	c.mu.Unlock()
}

// RemoveExpired sweeps stale entries and returns how many were dropped.
func (c *Cache[V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if time.Since(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ages reports the age of every live entry, for diagnostics.
func (c *Cache[V]) Ages() map[string]time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]time.Duration, len(c.entries))
	for key, e := range c.entries {
		out[key] = time.Since(e.insertedAt)
	}
	return out
}

func (c *Cache[V]) TTL() time.Duration { return c.ttl }

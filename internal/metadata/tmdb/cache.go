package tmdb

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// cache is a TTL map for per-movie resources. A nil *cache is a valid,
// always-missing cache, which is how caching is disabled.
type cache[V any] struct {
	mu      sync.RWMutex
	entries map[int]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
	writes  int
}

func newCache[V any](ttl time.Duration) *cache[V] {
	if ttl <= 0 {
		return nil
	}
	return &cache[V]{
		entries: make(map[int]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *cache[V]) get(id int) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}

	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent set may have refreshed it.
		if e, exists := c.entries[id]; exists && c.now().After(e.expiresAt) {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *cache[V]) set(id int, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes++
	// Sweep expired entries every 100 writes.
	if c.writes%100 == 0 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}

	c.entries[id] = cacheEntry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *cache[V]) len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

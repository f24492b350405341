// Package cache provides the in-memory TTL cache bounding upstream request
// volume. Entries expire by age check at read time: there is no eviction
// goroutine, because the key space is bounded by tracked players × query
// kinds. Safe for concurrent use from the refresh loop and the on-demand
// request path.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the single global entry lifetime.
const DefaultTTL = 300 * time.Second

type entry struct {
	payload    any
	insertedAt time.Time
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL. Non-positive ttl falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached value. An entry whose age has reached the TTL is
// treated as absent; callers are expected to fetch fresh data and Put.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[key]
	if !exists || c.now().Sub(e.insertedAt) >= c.ttl {
		return nil, false
	}
	return e.payload, true
}

// Put stores a value under key, overwriting any prior entry and resetting
// its age.
func (c *Cache) Put(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: payload, insertedAt: c.now()}
}

// Stats returns cache statistics for the status API.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Sub(e.insertedAt) < c.ttl {
			active++
		}
	}
	return map[string]any{
		"ttl_seconds":  int(c.ttl.Seconds()),
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
	}
}

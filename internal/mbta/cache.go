package mbta

import (
	"sync"
	"time"
)

// Cache is a small in-memory TTL cache for API documents. Its TTL is kept
// below the poll interval so sensors sharing a route share one fetch per tick
// without carrying data into the next cycle.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]cacheEntry
	ttl         time.Duration
	lastCleanup time.Time
}

type cacheEntry struct {
	value     *Document
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL. A zero TTL disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a cached document if it exists and hasn't expired.
func (c *Cache) Get(key string) (*Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a document in the cache. Expired entries are swept at most
// every five minutes, on write.
func (c *Cache) Set(key string, value *Document) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: now.Add(c.ttl),
	}
	if now.Sub(c.lastCleanup) > 5*time.Minute {
		c.cleanupLocked(now)
		c.lastCleanup = now
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(time.Now())
}

func (c *Cache) cleanupLocked(now time.Time) {
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

package memory

import (
	"context"
	"sync"
	"time"
)

// CacheMetrics counts cache lookups; *observability.Collector implements it.
// A nil CacheMetrics disables counting.
type CacheMetrics interface {
	ObserveCacheAccess(hit bool)
}

// Cache is an in-process TTL cache. Expired entries are dropped lazily on
// read and swept once a minute.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]cacheItem
	metrics CacheMetrics
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewCache creates a new in-memory cache
func NewCache(metrics CacheMetrics) *Cache {
	cache := &Cache{
		items:   make(map[string]cacheItem),
		metrics: metrics,
	}

	go cache.sweep()

	return cache
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		c.record(false)
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		c.evict(key, item.expiresAt)
		c.record(false)
		return nil, false
	}

	c.record(true)
	return item.value, true
}

// Set stores a value in cache with TTL in seconds
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: time.Now().Add(time.Duration(ttl) * time.Second),
	}

	return nil
}

// Delete removes a value from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all values from cache
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

func (c *Cache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveCacheAccess(hit)
	}
}

// evict removes an expired entry. The expiry is re-checked under the write
// lock so a concurrent Set of the same key is not lost.
func (c *Cache) evict(key string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.items[key]; ok && current.expiresAt.Equal(expiresAt) {
		delete(c.items, key)
	}
}

// sweep periodically removes expired items that were never read again
func (c *Cache) sweep() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

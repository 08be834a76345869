package cache

import (
	"context"
	"sync"
	"time"
)

// Item represents a cached value with expiration
type Item struct {
	Value      []byte
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Cache is a thread-safe in-memory byte cache with expiration. It backs the
// session-list cache when no redis instance is configured.
type Cache struct {
	items             map[string]Item
	mu                sync.RWMutex
	defaultExpiration time.Duration
	cleanupInterval   time.Duration
	maxItems          int
}

// Options configure the cache
type Options struct {
	TTL         time.Duration
	PurgeWindow time.Duration
	MaxItems    int
}

// New creates a new cache. A positive PurgeWindow starts a background
// cleanup goroutine.
func New(opts Options) *Cache {
	c := &Cache{
		items:             make(map[string]Item),
		defaultExpiration: opts.TTL,
		cleanupInterval:   opts.PurgeWindow,
		maxItems:          opts.MaxItems,
	}
	if c.cleanupInterval > 0 {
		go c.startCleanupTimer()
	}
	return c
}

// Get returns the value for key and whether it was present and fresh.
// The context parameter keeps the signature uniform with the redis backend.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, found := c.items[key]
	if !found || item.Expired() {
		return nil, false
	}
	return item.Value, true
}

// Set stores value under key with the default expiration
func (c *Cache) Set(_ context.Context, key string, value []byte) {
	var expiration int64
	if c.defaultExpiration > 0 {
		expiration = time.Now().Add(c.defaultExpiration).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxItems > 0 && len(c.items) >= c.maxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldest()
		}
	}
	c.items[key] = Item{Value: value, Expiration: expiration}
}

// Del removes the key
func (c *Cache) Del(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// evictOldest drops the entry closest to expiry. Caller holds the lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestExp int64 = -1
	for k, item := range c.items {
		if oldestExp == -1 || (item.Expiration != 0 && item.Expiration < oldestExp) {
			oldestKey = k
			oldestExp = item.Expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.deleteExpired()
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, item := range c.items {
		if item.Expiration > 0 && now > item.Expiration {
			delete(c.items, k)
		}
	}
}

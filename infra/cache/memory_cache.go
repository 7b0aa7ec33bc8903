package cache

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/ebanking/pkg/cache"
	"github.com/shopspring/decimal"
)

// MemoryCache implements RateCache using in-memory storage
type MemoryCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

var _ cache.RateCache = (*MemoryCache)(nil)

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get retrieves a rate from cache. Expired entries are dropped on read.
func (c *MemoryCache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return decimal.Zero, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return decimal.Zero, false, nil
	}
	return entry.rate, true, nil
}

// Set stores a rate in cache with TTL
func (c *MemoryCache) Set(
	_ context.Context,
	key string,
	rate decimal.Decimal,
	ttl time.Duration,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		rate:      rate,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

type cacheEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

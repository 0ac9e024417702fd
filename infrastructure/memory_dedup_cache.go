package infrastructure

import (
	"context"
	"sync"
	"time"
)

// MemoryDedupCache is a process-local dedup window, used when Redis is not configured
type MemoryDedupCache struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryDedupCache creates an empty cache
func NewMemoryDedupCache() *MemoryDedupCache {
	return &MemoryDedupCache{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Claim records the key for ttl. It returns false if an unexpired claim exists.
func (c *MemoryDedupCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evict(now)

	if _, ok := c.expires[key]; ok {
		return false, nil
	}
	c.expires[key] = now.Add(ttl)
	return true, nil
}

// Release forgets the key
func (c *MemoryDedupCache) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.expires, key)
	return nil
}

// Len returns the number of live keys
func (c *MemoryDedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict(c.now())
	return len(c.expires)
}

func (c *MemoryDedupCache) evict(now time.Time) {
	for key, expiry := range c.expires {
		if !now.Before(expiry) {
			delete(c.expires, key)
		}
	}
}

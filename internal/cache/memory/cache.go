// Package memory implements an in-process TTL cache.
package memory

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a mutex-guarded map with lazy expiry.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

// New returns an empty Cache using the wall clock.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty Cache reading time from now.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{items: make(map[string]item), now: now}
}

// Get returns the value for key if present and unexpired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.expiresAt.IsZero() && !c.now().Before(it.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

// Set stores value under key.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored keys, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

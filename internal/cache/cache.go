// Package cache defines the get/set-with-TTL capability used for robots
// policies and fetched pages. Implementations live in the memory and sqlite
// subpackages.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values with an optional time-to-live. A ttl <= 0 keeps
// the value until the process (memory) or file (sqlite) goes away.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Nop is a Cache that never stores anything.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

package cache

import (
	"context"
	"time"
)

// Store is the shared cache surface behind aggregate snapshots and rate
// counters. Redis serves it when configured; the database fallback keeps
// single-node deployments working without one.
type Store interface {
	// Get reports the value at key and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value at key. A non-positive ttl stores it without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// IncrementWithTTL bumps the counter at key and returns the new count
	// together with the time left in the window. The first bump arms the
	// window timer.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Both backends satisfy Store.
var (
	_ Store = (*RedisClient)(nil)
	_ Store = (*DatabaseStore)(nil)
)

package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the grading pipeline needs.
// The abstraction allows swapping Redis for a local in-memory fake in
// tests without changing business logic.
type Cache interface {
	// Get retrieves the value for the given key.
	// Returns "" (not an error) when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Expire sets a timeout on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Incr increments the integer value of a key by 1
	Incr(ctx context.Context, key string) (int64, error)

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

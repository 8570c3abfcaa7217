// Package cache provides the injectable response cache used by the writer
// and the gateway: a bounded in-memory TTL store by default, Redis when
// shared across processes.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value cache. Values are serialized strings; callers own
// the encoding.
type Store interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value for the given TTL. A non-positive TTL means no
	// expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// Clear removes every key the store owns.
	Clear(ctx context.Context) error
}

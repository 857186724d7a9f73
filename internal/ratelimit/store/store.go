// Package store provides shared counter backends for rate limiting.
package store

import (
	"context"
	"time"
)

// Store holds window counters shared between limiter instances.
type Store interface {
	// IncrementWithExpiry atomically adds delta to the counter and returns
	// the new value. The expiration is applied when the key is created.
	IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

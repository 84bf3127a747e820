package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client supplied request keys so that a retried
// mutation is not applied to the ledger twice.
type IdempotencyStore interface {
	// Reserve claims the key for ttl. It returns false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees a key, used when the guarded request failed and may be retried.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

package interfaces

import (
	"context"
)

// KVStore is the local key-value store. Implementations must be safe for
// concurrent use. Every write replaces the full value.
type KVStore interface {
	// Get returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	Put(ctx context.Context, key string, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Name returns identifier for logging.
	Name() string
}

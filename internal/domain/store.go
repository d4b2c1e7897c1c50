package domain

import (
	"context"
	"time"
)

// KVStore is a string key/value store with per-key expiry. Implementations
// return ErrNotFound for missing or expired keys.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	// Update replaces the value with fn's result atomically with respect to
	// other writers of key. found is false when the key is missing or
	// expired. An error from fn aborts the update and is returned as is.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current string, found bool) (string, error)) error
}

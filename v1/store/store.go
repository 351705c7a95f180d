package store

import (
	"context"
	"time"
)

// Store abstracts the shared key-value store lock state lives in.
//
// Implementations must guarantee that SetIfAbsent is atomic with respect
// to all other callers of the same key, across processes: at most one
// concurrent SetIfAbsent on an absent key may return true.
type Store interface {
	// SetIfAbsent sets key to value only if key does not currently
	// exist. The boolean return reports whether the set happened.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	// SetExpiry arms a time-to-live on an existing key. It returns
	// false when the key does not exist (nothing was armed).
	SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Delete removes key unconditionally. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

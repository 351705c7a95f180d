package inspect

import (
	"context"
	"time"

	"github.com/mirkobrombin/go-latch/v1/store"
)

// MemoryLister adapts a MemoryStore to the Lister interface.
type MemoryLister struct {
	store *store.MemoryStore
}

// NewMemoryLister returns a Lister over s.
func NewMemoryLister(s *store.MemoryStore) *MemoryLister {
	return &MemoryLister{store: s}
}

// Keys implements Lister.Keys.
func (l *MemoryLister) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.store.Keys(), nil
}

// TTL implements Lister.TTL.
func (l *MemoryLister) TTL(ctx context.Context, key string) (time.Duration, bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, false, err
	}
	if _, present := l.store.Value(key); !present {
		return 0, false, false, nil
	}
	ttl := l.store.TTL(key)
	return ttl, ttl > 0, true, nil
}

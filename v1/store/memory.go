package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation with TTL support.
// It is primarily useful for tests and single-process deployments; keys
// armed with an expiry are removed lazily on access and, optionally, by
// a background sweeper.
type MemoryStore struct {
	mu            sync.Mutex
	items         map[string]entry
	sweepInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSweepInterval sets the interval at which expired keys are removed.
// A zero or negative duration disables the background sweeper; expired
// keys are then only reclaimed when an operation touches them.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.sweepInterval = d
	}
}

// NewMemory returns a new MemoryStore instance.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		items:  make(map[string]entry),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweeper()
	}
	return s
}

// SetIfAbsent implements Store.SetIfAbsent.
func (s *MemoryStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt) {
			return false, nil
		}
		// expired, reclaim
		delete(s.items, key)
	}
	s.items[key] = entry{value: value}
	return true, nil
}

// SetExpiry implements Store.SetExpiry.
func (s *MemoryStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.items, key)
		return false, nil
	}
	e.expiresAt = time.Now().Add(ttl)
	s.items[key] = e
	return true, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Value reports the current value stored under key and whether the key
// is present and unexpired. It is mainly useful in tests.
func (s *MemoryStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(s.items, key)
		return "", false
	}
	return e.value, true
}

// TTL reports the remaining time-to-live for key. It returns zero when
// the key is absent or has no expiry armed.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	d := time.Until(e.expiresAt)
	if d < 0 {
		return 0
	}
	return d
}

// Keys returns the unexpired keys currently present in the store.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(s.items))
	for k, e := range s.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Len reports the number of keys currently held, expired keys included
// until they are reclaimed.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// sweeper periodically removes expired keys. Lock keys are few, so a
// full scan per tick is affordable.
func (s *MemoryStore) sweeper() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, e := range s.items {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// Close terminates the background sweeper, if any, and clears the store.
func (s *MemoryStore) Close() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

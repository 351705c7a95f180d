package lock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mirkobrombin/go-latch/v1/metrics"
	"github.com/mirkobrombin/go-latch/v1/watch"
)

// Guard is the scoped handle returned by every acquisition. Only the
// guard whose acquisition performed the winning claim may delete the
// key: a Guard with Held() false releases nothing, ever, because the
// key it contended for belongs to another holder.
type Guard struct {
	locker   *Locker
	key      string
	marker   string
	held     bool
	released atomic.Bool
}

// Held reports whether this acquisition owns the lock.
func (g *Guard) Held() bool {
	return g != nil && g.held
}

// Key returns the lock key this guard was acquired for.
func (g *Guard) Key() string {
	return g.key
}

// Release deletes the held key. It is a no-op on a guard that never
// held the lock and on every call after the first successful one, so
// callers can defer it unconditionally. A failed delete leaves the
// guard releasable for a retry.
func (g *Guard) Release(ctx context.Context) error {
	if g == nil || !g.held {
		return nil
	}
	if !g.released.CompareAndSwap(false, true) {
		return nil
	}
	l := g.locker
	if err := l.store.Delete(ctx, g.key); err != nil {
		g.released.Store(false)
		return fmt.Errorf("release %q: %w", g.key, err)
	}
	if l.metricsEnabled {
		metrics.ReleaseCounter.Inc()
		metrics.HeldGauge.Dec()
	}
	zerolog.Ctx(ctx).Debug().Str("key", g.key).Msg("lock released")
	l.announce(ctx, "unlock:"+g.key)
	l.emit(ctx, g.key, watch.ActionRelease, g.marker)
	return nil
}

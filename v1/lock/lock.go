package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	guuid "github.com/hashicorp/go-uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-latch/v1/bus"
	latcherrors "github.com/mirkobrombin/go-latch/v1/errors"
	"github.com/mirkobrombin/go-latch/v1/metrics"
	"github.com/mirkobrombin/go-latch/v1/store"
	"github.com/mirkobrombin/go-latch/v1/watch"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-latch/v1/lock")

// defaultMarker is the sentinel written to the store when a key is
// claimed. The protocol only cares about the key's presence, never the
// marker's content.
const defaultMarker = "1"

const (
	defaultArmRetries = 3
	defaultInterval   = time.Second
)

// Locker acquires and releases named locks against a Store. The store
// is an explicit dependency: there is no package-level client, so tests
// can hand a Locker any fake store.
type Locker struct {
	store  store.Store
	bus    bus.Bus
	feed   watch.Feed
	origin string
	marker string

	metricsEnabled bool
	traceEnabled   bool
}

// Option configures a Locker.
type Option func(*Locker)

// WithBus attaches a bus the Locker publishes "lock:<key>" and
// "unlock:<key>" events on. Delivery is best effort; acquisition never
// waits on bus signals.
func WithBus(b bus.Bus) Option {
	return func(l *Locker) {
		l.bus = b
	}
}

// WithFeed attaches an activity feed that receives one event per
// acquisition and release.
func WithFeed(f watch.Feed) Option {
	return func(l *Locker) {
		l.feed = f
	}
}

// WithMetrics registers the lock metric set on reg and enables
// collection on this Locker.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(l *Locker) {
		metrics.RegisterLockMetrics(reg)
		l.metricsEnabled = true
	}
}

// WithTracing enables OpenTelemetry tracing for acquisitions.
func WithTracing() Option {
	return func(l *Locker) {
		l.traceEnabled = true
	}
}

// WithDefaultMarker sets the claim value written for acquisitions that
// do not override it. The default is "1".
func WithDefaultMarker(marker string) Option {
	return func(l *Locker) {
		l.marker = marker
	}
}

// New returns a Locker acquiring against s.
func New(s store.Store, opts ...Option) *Locker {
	l := &Locker{store: s, marker: defaultMarker}
	if origin, err := guuid.GenerateUUID(); err == nil {
		l.origin = origin
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AcquireOption configures a single acquisition.
type AcquireOption func(*acquireConfig)

type acquireConfig struct {
	ttl        time.Duration
	leaseSet   bool
	armRetries int
	interval   time.Duration
	marker     string
}

// WithTTL requests a lease: the claimed key is armed with the given
// expiry before the acquisition counts as successful. The duration must
// be positive. Without this option the key persists until released,
// so a holder crashing before release pins the lock forever.
func WithTTL(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		c.ttl = d
		c.leaseSet = true
	}
}

// WithArmRetries bounds how many times a failed lease arming is retried
// after the first attempt. Retries are immediate. The default is 3.
func WithArmRetries(n int) AcquireOption {
	return func(c *acquireConfig) {
		c.armRetries = n
	}
}

// WithInterval sets the fixed sleep between claim attempts of a
// blocking acquisition. The default is one second.
func WithInterval(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		c.interval = d
	}
}

// WithMarker overrides the claim value for this acquisition.
func WithMarker(marker string) AcquireOption {
	return func(c *acquireConfig) {
		c.marker = marker
	}
}

func (l *Locker) newAcquireConfig(opts []AcquireOption) (acquireConfig, error) {
	cfg := acquireConfig{
		armRetries: defaultArmRetries,
		interval:   defaultInterval,
		marker:     l.marker,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.leaseSet && cfg.ttl <= 0 {
		return cfg, latcherrors.ErrInvalidTTL
	}
	if cfg.armRetries < 0 {
		return cfg, latcherrors.ErrInvalidRetries
	}
	if cfg.interval <= 0 {
		return cfg, latcherrors.ErrInvalidInterval
	}
	return cfg, nil
}

type claimOutcome int

const (
	outcomeContended claimOutcome = iota
	outcomeArmExhausted
	outcomeHeld
)

// Acquire attempts to take the lock for key without waiting. Contention
// and lease-arming exhaustion both produce a Guard with Held() false
// and a nil error; the caller distinguishes neither. A non-nil error
// means the store itself failed.
func (l *Locker) Acquire(ctx context.Context, key string, opts ...AcquireOption) (*Guard, error) {
	cfg, err := l.newAcquireConfig(opts)
	if err != nil {
		return nil, err
	}

	var span trace.Span
	if l.traceEnabled {
		ctx, span = tracer.Start(ctx, "Locker.Acquire")
		span.SetAttributes(attribute.String("latch.key", key))
		defer span.End()
	}

	out, err := l.tryOnce(ctx, key, cfg)
	if err != nil {
		return nil, err
	}
	switch out {
	case outcomeContended:
		if l.traceEnabled {
			span.SetAttributes(attribute.String("latch.result", "contended"))
		}
		return &Guard{key: key}, nil
	case outcomeArmExhausted:
		if l.traceEnabled {
			span.SetAttributes(attribute.String("latch.result", "arm_exhausted"))
		}
		return &Guard{key: key}, nil
	}
	if l.traceEnabled {
		span.SetAttributes(attribute.String("latch.result", "held"))
	}
	return l.heldGuard(ctx, key, cfg), nil
}

// AcquireBlocking takes the lock for key, retrying the whole claim and
// lease sequence until it succeeds. Contention sleeps one interval
// between attempts; an exhausted lease arming retries immediately after
// cleaning up its claim. The only way out without the lock is a store
// error or context cancellation.
func (l *Locker) AcquireBlocking(ctx context.Context, key string, opts ...AcquireOption) (*Guard, error) {
	cfg, err := l.newAcquireConfig(opts)
	if err != nil {
		return nil, err
	}

	var span trace.Span
	if l.traceEnabled {
		ctx, span = tracer.Start(ctx, "Locker.AcquireBlocking")
		span.SetAttributes(attribute.String("latch.key", key))
		defer span.End()
	}

	for {
		out, err := l.tryOnce(ctx, key, cfg)
		if err != nil {
			return nil, err
		}
		switch out {
		case outcomeHeld:
			if l.traceEnabled {
				span.SetAttributes(attribute.String("latch.result", "held"))
			}
			return l.heldGuard(ctx, key, cfg), nil
		case outcomeArmExhausted:
			// the claim was won and given back; no holder to wait out
			continue
		}

		timer := time.NewTimer(cfg.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryOnce runs one claim plus lease-arming sequence. It never leaks a
// claim: every failure path after a won claim deletes the key before
// returning.
func (l *Locker) tryOnce(ctx context.Context, key string, cfg acquireConfig) (claimOutcome, error) {
	if l.metricsEnabled {
		metrics.AcquireCounter.Inc()
	}
	claimed, err := l.store.SetIfAbsent(ctx, key, cfg.marker)
	if err != nil {
		return outcomeContended, fmt.Errorf("claim %q: %w", key, err)
	}
	if !claimed {
		if l.metricsEnabled {
			metrics.ContendedCounter.Inc()
		}
		zerolog.Ctx(ctx).Debug().Str("key", key).Msg("claim lost to another holder")
		return outcomeContended, nil
	}

	if cfg.leaseSet {
		armed := false
		for attempt := 0; attempt <= cfg.armRetries; attempt++ {
			ok, err := l.store.SetExpiry(ctx, key, cfg.ttl)
			if err != nil {
				// the claim is ours; give it back before failing
				if derr := l.store.Delete(context.Background(), key); derr != nil {
					zerolog.Ctx(ctx).Warn().Err(derr).Str("key", key).
						Msg("cleanup of claimed key failed, lock may be orphaned")
				}
				return outcomeContended, fmt.Errorf("arm lease on %q: %w", key, err)
			}
			if ok {
				armed = true
				break
			}
		}
		if !armed {
			if l.metricsEnabled {
				metrics.ArmExhaustedCounter.Inc()
			}
			zerolog.Ctx(ctx).Debug().Str("key", key).Int("retries", cfg.armRetries).
				Msg("lease arming budget exhausted, abandoning claim")
			if err := l.store.Delete(ctx, key); err != nil {
				return outcomeArmExhausted, fmt.Errorf("clean up claim on %q: %w", key, err)
			}
			return outcomeArmExhausted, nil
		}
	}
	return outcomeHeld, nil
}

func (l *Locker) heldGuard(ctx context.Context, key string, cfg acquireConfig) *Guard {
	if l.metricsEnabled {
		metrics.AcquiredCounter.Inc()
		metrics.HeldGauge.Inc()
	}
	zerolog.Ctx(ctx).Debug().Str("key", key).Msg("lock acquired")
	l.announce(ctx, "lock:"+key)
	l.emit(ctx, key, watch.ActionAcquire, cfg.marker)
	return &Guard{locker: l, key: key, marker: cfg.marker, held: true}
}

func (l *Locker) announce(ctx context.Context, topic string) {
	if l.bus == nil {
		return
	}
	if err := l.bus.Publish(ctx, topic); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("lock bus publish failed")
	}
}

func (l *Locker) emit(ctx context.Context, key, action, marker string) {
	if l.feed == nil {
		return
	}
	data, err := watch.Encode(watch.Event{
		ID:     uuid.NewString(),
		Key:    key,
		Action: action,
		Marker: marker,
		Origin: l.origin,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := l.feed.Publish(ctx, key, data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("lock feed publish failed")
	}
}
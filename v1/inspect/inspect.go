// Package inspect reports lock keys that look orphaned: present in the
// store without a lease armed, so a crashed holder can pin them
// forever. The inspector is advisory only. It never deletes a key,
// because from the outside an orphan is indistinguishable from a
// healthy no-lease lock whose holder is simply still working.
package inspect

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Lister enumerates lock keys and their lease state. Implementations
// exist for the memory and Redis stores.
type Lister interface {
	// Keys lists the lock keys currently present.
	Keys(ctx context.Context) ([]string, error)
	// TTL reports the remaining lease for key. armed is false when
	// the key has no expiry; present is false when the key is gone.
	TTL(ctx context.Context, key string) (ttl time.Duration, armed, present bool, err error)
}

// Report is the outcome of one scan.
type Report struct {
	Scanned int
	Orphans []string
	At      time.Time
}

// Inspector periodically scans a Lister for keys with no lease armed.
type Inspector struct {
	lister   Lister
	interval time.Duration
	orphans  uint64
}

// New creates an Inspector scanning l every interval.
func New(l Lister, interval time.Duration) *Inspector {
	return &Inspector{lister: l, interval: interval}
}

// Scan walks the keyspace once and reports every key without a lease.
func (i *Inspector) Scan(ctx context.Context) (Report, error) {
	r := Report{At: time.Now().UTC()}
	keys, err := i.lister.Keys(ctx)
	if err != nil {
		return r, err
	}
	for _, k := range keys {
		_, armed, present, err := i.lister.TTL(ctx, k)
		if err != nil {
			return r, err
		}
		if !present {
			// released between listing and probing
			continue
		}
		r.Scanned++
		if !armed {
			r.Orphans = append(r.Orphans, k)
			atomic.AddUint64(&i.orphans, 1)
		}
	}
	return r, nil
}

// Run scans on the configured interval until ctx is canceled, logging
// each orphan found.
func (i *Inspector) Run(ctx context.Context) {
	if i.lister == nil {
		return
	}
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := i.Scan(ctx)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("lock inspection failed")
				continue
			}
			for _, k := range r.Orphans {
				zerolog.Ctx(ctx).Warn().Str("key", k).Msg("lock key has no lease armed")
			}
		}
	}
}

// Metrics returns the cumulative number of orphan sightings.
func (i *Inspector) Metrics() uint64 {
	return atomic.LoadUint64(&i.orphans)
}

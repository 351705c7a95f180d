// Package presets wires common lock topologies in one call, so callers
// that do not need custom stores or buses can skip the assembly.
package presets

import (
	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-latch/v1/bus"
	"github.com/mirkobrombin/go-latch/v1/lock"
	"github.com/mirkobrombin/go-latch/v1/store"
	"github.com/mirkobrombin/go-latch/v1/watch"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces lock keys when the instance is shared.
	KeyPrefix string
}

// NewRedis creates a Locker backed by a single Redis node, with lock
// events propagated over Redis Pub/Sub and the activity feed on Redis
// Streams. This is the standard multi-process topology.
func NewRedis(opts RedisOptions) *lock.Locker {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	var storeOpts []store.RedisOption
	if opts.KeyPrefix != "" {
		storeOpts = append(storeOpts, store.WithKeyPrefix(opts.KeyPrefix))
	}

	return lock.New(
		store.NewRedis(client, storeOpts...),
		lock.WithBus(bus.NewRedisBus(client)),
		lock.WithFeed(watch.NewRedis(client)),
	)
}

// NewStandalone creates a Locker that runs entirely in-process with no
// external dependencies. Useful for local development and tests; it
// only excludes callers in the same process.
func NewStandalone() *lock.Locker {
	return lock.New(
		store.NewMemory(),
		lock.WithBus(bus.NewInMemoryBus()),
		lock.WithFeed(watch.NewInMemory()),
	)
}

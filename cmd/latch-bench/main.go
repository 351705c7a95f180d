package main

import (
	"context"
	"flag"
	"log"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-latch/v1/lock"
	"github.com/mirkobrombin/go-latch/v1/store"
)

var (
	concurrency = flag.Int("c", 50, "Number of concurrent workers")
	duration    = flag.Duration("t", 10*time.Second, "Benchmark duration")
	keys        = flag.Int("k", 1, "Number of distinct lock keys")
	backend     = flag.String("backend", "memory", "Store backend: memory or redis")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis address")
	interval    = flag.Duration("interval", 10*time.Millisecond, "Blocking retry interval")
	ttl         = flag.Duration("ttl", 0, "Optional lease TTL (0 disables the lease)")
)

func main() {
	flag.Parse()

	var s store.Store
	switch *backend {
	case "memory":
		ms := store.NewMemory()
		defer ms.Close()
		s = ms
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer client.Close()
		s = store.NewRedis(client)
	default:
		log.Fatalf("unknown backend %q", *backend)
	}
	l := lock.New(s)

	log.Printf("Starting benchmark: %d workers, %d keys, %s backend, %v", *concurrency, *keys, *backend, *duration)

	opts := []lock.AcquireOption{lock.WithInterval(*interval)}
	if *ttl > 0 {
		opts = append(opts, lock.WithTTL(*ttl))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var held, contended, errs int64
	keyNames := make([]string, *keys)
	for i := range keyNames {
		keyNames[i] = "bench:" + string(rune('a'+i%26))
	}

	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *concurrency; i++ {
		worker := i
		eg.Go(func() error {
			key := keyNames[worker%len(keyNames)]
			for ctx.Err() == nil {
				g, err := l.Acquire(ctx, key, opts...)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					atomic.AddInt64(&errs, 1)
					continue
				}
				if !g.Held() {
					atomic.AddInt64(&contended, 1)
					continue
				}
				atomic.AddInt64(&held, 1)
				if err := g.Release(context.Background()); err != nil {
					atomic.AddInt64(&errs, 1)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
	elapsed := time.Since(start)

	total := held + contended
	log.Printf("Done in %v", elapsed.Round(time.Millisecond))
	log.Printf("Attempts: %d (%.0f/sec)", total, float64(total)/elapsed.Seconds())
	log.Printf("Held: %d, Contended: %d, Errors: %d", held, contended, errs)
}

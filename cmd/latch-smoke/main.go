package main

import (
	"context"
	"flag"
	"log"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-latch/v1/inspect"
	"github.com/mirkobrombin/go-latch/v1/lock"
	"github.com/mirkobrombin/go-latch/v1/presets"
)

// latch-smoke drives N workers through a shared counter protected by a
// Redis lock. If mutual exclusion holds, the final counter equals the
// number of completed critical sections and no lock key survives the
// run.
func main() {
	workers := flag.Int("w", 10, "Number of workers")
	rounds := flag.Int("n", 100, "Critical sections per worker")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address")
	prefix := flag.String("prefix", "latch-smoke:", "Lock key prefix")
	flag.Parse()

	l := presets.NewRedis(presets.RedisOptions{Addr: *redisAddr, KeyPrefix: *prefix})
	ctx := context.Background()

	var counter int64
	var inSection int32
	var violations int64

	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		eg.Go(func() error {
			for j := 0; j < *rounds; j++ {
				ok, err := l.DoBlocking(ctx, "counter", func(ctx context.Context) error {
					if atomic.AddInt32(&inSection, 1) != 1 {
						atomic.AddInt64(&violations, 1)
					}
					counter++
					atomic.AddInt32(&inSection, -1)
					return nil
				}, lock.WithInterval(5*time.Millisecond))
				if err != nil {
					return err
				}
				if !ok {
					log.Fatal("blocking acquisition reported not-run")
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}

	want := int64(*workers) * int64(*rounds)
	log.Printf("Completed %d critical sections in %v", counter, time.Since(start).Round(time.Millisecond))
	if counter != want || violations > 0 {
		log.Fatalf("FAIL: counter %d (want %d), violations %d", counter, want, violations)
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()
	report, err := inspect.New(inspect.NewRedisLister(client, *prefix), time.Minute).Scan(context.Background())
	if err != nil {
		log.Fatalf("orphan scan failed: %v", err)
	}
	if report.Scanned != 0 {
		log.Fatalf("FAIL: %d lock keys survived the run (orphans: %v)", report.Scanned, report.Orphans)
	}
	log.Println("OK: mutual exclusion held, no keys leaked")
}

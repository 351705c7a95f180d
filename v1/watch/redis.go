package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// indexSet tracks which keys have stream watchers so prefix publishes
// can find them.
const indexSet = "latch:watch:index"

// RedisFeed implements Feed on Redis. Every publish is appended to a
// stream named after the key, giving late watchers a durable trail, and
// mirrored on Pub/Sub for prefix watchers.
type RedisFeed struct {
	client        *redis.Client
	mu            sync.Mutex
	cancels       map[string]map[chan []byte]context.CancelFunc
	prefixCancels map[string]map[chan []byte]context.CancelFunc
}

// NewRedis creates a new RedisFeed using the provided client.
func NewRedis(client *redis.Client) *RedisFeed {
	return &RedisFeed{
		client:        client,
		cancels:       make(map[string]map[chan []byte]context.CancelFunc),
		prefixCancels: make(map[string]map[chan []byte]context.CancelFunc),
	}
}

// Publish appends data to the stream for key and mirrors it on Pub/Sub.
func (f *RedisFeed) Publish(ctx context.Context, key string, data []byte) error {
	if err := f.client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]any{"data": data}}).Err(); err != nil {
		return err
	}
	return f.client.Publish(ctx, key, data).Err()
}

// Watch tails the stream for key.
func (f *RedisFeed) Watch(ctx context.Context, key string) (chan []byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan []byte, 1)

	f.mu.Lock()
	m := f.cancels[key]
	if m == nil {
		m = make(map[chan []byte]context.CancelFunc)
		f.cancels[key] = m
	}
	m[ch] = cancel
	if len(m) == 1 {
		_ = f.client.SAdd(context.Background(), indexSet, key).Err()
	}
	f.mu.Unlock()

	go func() {
		defer close(ch)
		// anchor on the current stream tail so nothing published after
		// this point is missed
		lastID := "0"
		if msgs, err := f.client.XRevRangeN(ctx, key, "+", "-", 1).Result(); err == nil && len(msgs) > 0 {
			lastID = msgs[0].ID
		}
		for {
			res, err := f.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Block:   time.Second,
				Count:   10,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					time.Sleep(time.Second)
				}
				continue
			}
			for _, s := range res {
				for _, msg := range s.Messages {
					lastID = msg.ID
					if v, ok := msg.Values["data"].(string); ok {
						select {
						case ch <- []byte(v):
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return ch, nil
}

// WatchPrefix subscribes to all keys matching the given prefix via
// pattern Pub/Sub.
func (f *RedisFeed) WatchPrefix(ctx context.Context, prefix string) (chan []byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan []byte, 1)

	ps := f.client.PSubscribe(ctx, prefix+"*")
	f.mu.Lock()
	m := f.prefixCancels[prefix]
	if m == nil {
		m = make(map[chan []byte]context.CancelFunc)
		f.prefixCancels[prefix] = m
	}
	m[ch] = func() {
		cancel()
		_ = ps.Close()
	}
	f.mu.Unlock()

	go func() {
		defer close(ch)
		for {
			msg, err := ps.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			select {
			case ch <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Unwatch stops watching the given key (or prefix) on channel ch.
func (f *RedisFeed) Unwatch(ctx context.Context, key string, ch chan []byte) error {
	f.mu.Lock()
	if m, ok := f.cancels[key]; ok {
		if cancel, ok := m[ch]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(f.cancels, key)
				_ = f.client.SRem(context.Background(), indexSet, key).Err()
			}
			f.mu.Unlock()
			cancel()
			return nil
		}
	}
	if m, ok := f.prefixCancels[key]; ok {
		if cancel, ok := m[ch]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(f.prefixCancels, key)
			}
			f.mu.Unlock()
			cancel()
			return nil
		}
	}
	f.mu.Unlock()
	return nil
}

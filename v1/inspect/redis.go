package inspect

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisLister enumerates lock keys held in Redis by SCAN over a key
// prefix. The prefix must match the one the RedisStore writes with.
type RedisLister struct {
	client *redis.Client
	prefix string
}

// NewRedisLister returns a Lister scanning keys under prefix. An empty
// prefix scans the whole keyspace, which is only sane on a dedicated
// lock database.
func NewRedisLister(client *redis.Client, prefix string) *RedisLister {
	return &RedisLister{client: client, prefix: prefix}
}

// Keys implements Lister.Keys. Returned keys have the prefix stripped,
// matching what callers passed to the locker.
func (l *RedisLister) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := l.client.Scan(ctx, 0, l.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), l.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// TTL implements Lister.TTL. Redis reports -1 for a key with no expiry
// and -2 for an absent key.
func (l *RedisLister) TTL(ctx context.Context, key string) (time.Duration, bool, bool, error) {
	d, err := l.client.TTL(ctx, l.prefix+key).Result()
	if err != nil {
		return 0, false, false, err
	}
	switch {
	case d == -2*time.Second:
		return 0, false, false, nil
	case d < 0:
		return 0, false, true, nil
	}
	return d, true, true, nil
}

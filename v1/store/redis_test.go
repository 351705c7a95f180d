package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	latcherrors "github.com/mirkobrombin/go-latch/v1/errors"
)

func newRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedis(client, opts...), mr, context.Background()
}

func TestRedisClaimAndContend(t *testing.T) {
	s, _, ctx := newRedisStore(t)

	ok, err := s.SetIfAbsent(ctx, "k", "1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok %v err %v", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, "k", "2")
	if err != nil || ok {
		t.Fatalf("second claim should lose: ok %v err %v", ok, err)
	}
}

func TestRedisExpiry(t *testing.T) {
	s, mr, ctx := newRedisStore(t)

	if ok, err := s.SetExpiry(ctx, "k", time.Second); err != nil || ok {
		t.Fatalf("arming absent key should report false: ok %v err %v", ok, err)
	}

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if ok, err := s.SetExpiry(ctx, "k", time.Second); err != nil || !ok {
		t.Fatalf("arming held key: ok %v err %v", ok, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(2 * time.Second)
	ok, err := s.SetIfAbsent(ctx, "k", "2")
	if err != nil || !ok {
		t.Fatalf("claim after expiry should win: ok %v err %v", ok, err)
	}
}

func TestRedisDeleteIdempotent(t *testing.T) {
	s, mr, ctx := newRedisStore(t)

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("key survived delete")
	}
}

func TestRedisErrorMapping(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client)
	ctx := context.Background()

	_ = client.Close()
	if _, err := s.SetIfAbsent(ctx, "k", "1"); !errors.Is(err, latcherrors.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}

	tCtx, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	if _, err := s.SetIfAbsent(tCtx, "k", "1"); !errors.Is(err, latcherrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	s, mr, ctx := newRedisStore(t, WithKeyPrefix("latch:"))

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if !mr.Exists("latch:k") {
		t.Fatal("expected prefixed key in redis")
	}
	if mr.Exists("k") {
		t.Fatal("unprefixed key should not exist")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("latch:k") {
		t.Fatal("prefixed key survived delete")
	}
}

package presets

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestStandaloneLockCycle(t *testing.T) {
	ctx := context.Background()
	l := NewStandalone()

	g, err := l.Acquire(ctx, "k")
	if err != nil || !g.Held() {
		t.Fatalf("acquire: held %v err %v", g.Held(), err)
	}
	if b, err := l.Acquire(ctx, "k"); err != nil || b.Held() {
		t.Fatalf("contended acquire: held %v err %v", b.Held(), err)
	}
	if err := g.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestRedisPresetLockCycle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	l := NewRedis(RedisOptions{Addr: mr.Addr(), KeyPrefix: "latch:"})

	g, err := l.Acquire(ctx, "k")
	if err != nil || !g.Held() {
		t.Fatalf("acquire: held %v err %v", g.Held(), err)
	}
	if !mr.Exists("latch:k") {
		t.Fatal("prefixed claim missing from redis")
	}
	if err := g.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("latch:k") {
		t.Fatal("key survived release")
	}
}

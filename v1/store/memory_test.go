package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClaimAndContend(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	ok, err := s.SetIfAbsent(ctx, "k", "1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok %v err %v", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, "k", "2")
	if err != nil || ok {
		t.Fatalf("second claim should lose: ok %v err %v", ok, err)
	}
	if v, present := s.Value("k"); !present || v != "1" {
		t.Fatalf("value after contended claim: %q present %v", v, present)
	}
}

func TestMemoryExpiryArmsAndElapses(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if ok, err := s.SetExpiry(ctx, "k", time.Second); err != nil || ok {
		t.Fatalf("arming absent key should report false: ok %v err %v", ok, err)
	}

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if ok, err := s.SetExpiry(ctx, "k", 5*time.Millisecond); err != nil || !ok {
		t.Fatalf("arming held key: ok %v err %v", ok, err)
	}
	if s.TTL("k") <= 0 {
		t.Fatal("expected a positive remaining ttl")
	}

	time.Sleep(10 * time.Millisecond)
	if _, present := s.Value("k"); present {
		t.Fatal("expected key to expire")
	}
	ok, err := s.SetIfAbsent(ctx, "k", "2")
	if err != nil || !ok {
		t.Fatalf("claim after expiry should win: ok %v err %v", ok, err)
	}
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	defer s.Close()

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
	if _, present := s.Value("k"); present {
		t.Fatal("key survived delete")
	}
}

func TestMemorySweeper(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(WithSweepInterval(5 * time.Millisecond))
	defer s.Close()

	if ok, _ := s.SetIfAbsent(ctx, "k", "1"); !ok {
		t.Fatal("claim failed")
	}
	if ok, _ := s.SetExpiry(ctx, "k", 5*time.Millisecond); !ok {
		t.Fatal("arm failed")
	}
	time.Sleep(25 * time.Millisecond)
	s.mu.Lock()
	_, ok := s.items["k"]
	s.mu.Unlock()
	if ok {
		t.Fatal("expected key to be swept")
	}
}

func TestMemoryContextCancelled(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SetIfAbsent(ctx, "k", "1"); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := s.SetExpiry(ctx, "k", time.Second); err == nil {
		t.Fatal("expected context error")
	}
	if err := s.Delete(ctx, "k"); err == nil {
		t.Fatal("expected context error")
	}
}

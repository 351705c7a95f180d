package inspect

import (
	"context"
	"testing"
	"time"

	"github.com/mirkobrombin/go-latch/v1/store"
)

func TestScanReportsKeysWithoutLease(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	if ok, _ := s.SetIfAbsent(ctx, "orphan", "1"); !ok {
		t.Fatal("claim failed")
	}
	if ok, _ := s.SetIfAbsent(ctx, "leased", "1"); !ok {
		t.Fatal("claim failed")
	}
	if ok, _ := s.SetExpiry(ctx, "leased", time.Minute); !ok {
		t.Fatal("arm failed")
	}

	i := New(NewMemoryLister(s), time.Minute)
	r, err := i.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Scanned != 2 {
		t.Fatalf("scanned %d keys, want 2", r.Scanned)
	}
	if len(r.Orphans) != 1 || r.Orphans[0] != "orphan" {
		t.Fatalf("orphans: %v", r.Orphans)
	}
	if i.Metrics() != 1 {
		t.Fatalf("orphan sightings: %d", i.Metrics())
	}
}

func TestScanNeverDeletes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	_, _ = s.SetIfAbsent(ctx, "orphan", "1")
	i := New(NewMemoryLister(s), time.Minute)
	if _, err := i.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, present := s.Value("orphan"); !present {
		t.Fatal("inspection deleted a key")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := store.NewMemory()
	defer s.Close()

	i := New(NewMemoryLister(s), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		i.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

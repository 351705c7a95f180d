package lock

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"
)

func TestDoRunsAndReleases(t *testing.T) {
	ctx := context.Background()
	l, s := newMemoryLocker(t)

	ran := false
	ok, err := l.Do(ctx, "k", func(ctx context.Context) error {
		ran = true
		if _, present := s.Value("k"); !present {
			t.Error("key absent inside protected region")
		}
		return nil
	})
	if err != nil || !ok || !ran {
		t.Fatalf("do: ok %v ran %v err %v", ok, ran, err)
	}
	if _, present := s.Value("k"); present {
		t.Fatal("key survived scope exit")
	}
}

func TestDoReportsContentionWithoutRunning(t *testing.T) {
	ctx := context.Background()
	l, s := newMemoryLocker(t)

	holder, _ := l.Acquire(ctx, "k")
	defer func() { _ = holder.Release(ctx) }()

	ok, err := l.Do(ctx, "k", func(ctx context.Context) error {
		t.Error("protected region ran without the lock")
		return nil
	})
	if err != nil || ok {
		t.Fatalf("contended do: ok %v err %v", ok, err)
	}
	if _, present := s.Value("k"); !present {
		t.Fatal("contended do deleted the holder's key")
	}
}

func TestDoReleasesOnError(t *testing.T) {
	ctx := context.Background()
	l, s := newMemoryLocker(t)

	boom := stdErrors.New("work failed")
	ok, err := l.Do(ctx, "k", func(ctx context.Context) error {
		return boom
	})
	if !ok || !stdErrors.Is(err, boom) {
		t.Fatalf("do: ok %v err %v", ok, err)
	}
	if _, present := s.Value("k"); present {
		t.Fatal("key survived error exit")
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	ctx := context.Background()
	l, s := newMemoryLocker(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = l.Do(ctx, "k", func(ctx context.Context) error {
			panic("worker crashed")
		})
	}()
	if _, present := s.Value("k"); present {
		t.Fatal("key survived panic exit")
	}
}

func TestDoReleasesAfterContextCancel(t *testing.T) {
	l, s := newMemoryLocker(t)

	ctx, cancel := context.WithCancel(context.Background())
	ok, err := l.Do(ctx, "k", func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !ok || !stdErrors.Is(err, context.Canceled) {
		t.Fatalf("do: ok %v err %v", ok, err)
	}
	if _, present := s.Value("k"); present {
		t.Fatal("canceled context leaked the key")
	}
}

func TestDoBlockingWaitsThenRuns(t *testing.T) {
	ctx := context.Background()
	l, s := newMemoryLocker(t)

	holder, _ := l.Acquire(ctx, "k")
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = holder.Release(context.Background())
	}()

	ok, err := l.DoBlocking(ctx, "k", func(ctx context.Context) error {
		return nil
	}, WithInterval(2*time.Millisecond))
	if err != nil || !ok {
		t.Fatalf("do blocking: ok %v err %v", ok, err)
	}
	if _, present := s.Value("k"); present {
		t.Fatal("key survived scope exit")
	}
}

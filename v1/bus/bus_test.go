package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribeFlowAndMetrics(t *testing.T) {
	b := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "lock:job:42")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), "lock:job:42"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for publish")
	}

	metrics := b.Metrics()
	if metrics.Published != 1 {
		t.Fatalf("expected published 1 got %d", metrics.Published)
	}
	if metrics.Delivered != 1 {
		t.Fatalf("expected delivered 1 got %d", metrics.Delivered)
	}
}

func TestContextBasedUnsubscribe(t *testing.T) {
	b := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "lock:k")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for unsubscribe")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs["lock:k"]; ok {
		t.Fatal("subscription still present after context cancel")
	}
}

func TestDeduplicatePendingTopics(t *testing.T) {
	b := NewInMemoryBus()
	ctx := context.Background()
	ch, err := b.Subscribe(ctx, "lock:k")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.mu.Lock()
	b.pending["lock:k"] = struct{}{}
	b.mu.Unlock()

	if err := b.Publish(context.Background(), "lock:k"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-ch:
		t.Fatal("unexpected publish when topic pending")
	default:
	}

	metrics := b.Metrics()
	if metrics.Published != 0 {
		t.Fatalf("expected published 0 got %d", metrics.Published)
	}
}

func TestPublishContextCanceled(t *testing.T) {
	b := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Publish(ctx, "lock:k"); err == nil {
		t.Fatal("expected publish error due to canceled context")
	}
	if _, err := b.Subscribe(ctx, "lock:k"); err == nil {
		t.Fatal("expected subscribe error due to canceled context")
	}
}

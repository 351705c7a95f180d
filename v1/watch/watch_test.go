package watch

import (
	"context"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := Event{
		ID:     "e1",
		Key:    "job:42",
		Action: ActionAcquire,
		Marker: "worker-7",
		Origin: "node-a",
		Time:   time.Now().UTC().Truncate(time.Second),
	}
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != e {
		t.Fatalf("round trip: got %+v want %+v", got, e)
	}
}

func TestInMemoryFeedPublishWatch(t *testing.T) {
	ctx := context.Background()
	f := NewInMemory()

	ch, err := f.Watch(ctx, "foo")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := f.Publish(ctx, "foo", []byte("a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-ch:
		if string(msg) != "a" {
			t.Fatalf("unexpected %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	if err := f.Unwatch(ctx, "foo", ch); err != nil {
		t.Fatalf("unwatch: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unwatch")
	}
}

func TestInMemoryFeedPrefixWatch(t *testing.T) {
	ctx := context.Background()
	f := NewInMemory()

	ch, err := f.WatchPrefix(ctx, "job:")
	if err != nil {
		t.Fatalf("watch prefix: %v", err)
	}
	if err := f.Publish(ctx, "job:42", []byte("a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-ch:
		if string(msg) != "a" {
			t.Fatalf("unexpected %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for prefix message")
	}

	// keys outside the prefix are not delivered
	if err := f.Publish(ctx, "other:1", []byte("b")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery %s", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInMemoryFeedWatchCanceledByContext(t *testing.T) {
	f := NewInMemory()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.Watch(ctx, "foo")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancel")
		}
	}
}

// Package watch streams lock activity to observers. Lockers append one
// event per acquisition and release; operators tail a key (or a key
// prefix) over channels, SSE or WebSocket to see who is holding what.
// The feed is observational: lock correctness never depends on it.
package watch

import (
	"context"
	"encoding/json"
	"time"
)

// Actions recorded on the feed.
const (
	ActionAcquire = "acquire"
	ActionRelease = "release"
)

// Event is one lock transition. Origin identifies the emitting process,
// Marker carries the claim value written to the store.
type Event struct {
	ID     string    `json:"id"`
	Key    string    `json:"key"`
	Action string    `json:"action"`
	Marker string    `json:"marker,omitempty"`
	Origin string    `json:"origin,omitempty"`
	Time   time.Time `json:"time"`
}

// Encode serializes an Event into a feed payload.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a feed payload back into an Event.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Feed carries serialized events per lock key. Payloads are opaque to
// the feed itself.
type Feed interface {
	// Publish sends the given payload to all watchers of key.
	Publish(ctx context.Context, key string, data []byte) error
	// Watch subscribes to payloads for key. The returned channel
	// receives until the context is canceled or Unwatch is called.
	Watch(ctx context.Context, key string) (chan []byte, error)
	// Unwatch stops delivering payloads for key to ch.
	Unwatch(ctx context.Context, key string, ch chan []byte) error
}

// PrefixWatcher is implemented by feeds that can subscribe to every key
// sharing a prefix. Unwatch with the prefix releases the channel.
type PrefixWatcher interface {
	WatchPrefix(ctx context.Context, prefix string) (chan []byte, error)
}

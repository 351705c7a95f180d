package watch

import (
	"context"
	"strings"
	"sync"
)

// InMemoryFeed is an in-process implementation of Feed.
type InMemoryFeed struct {
	mu         sync.Mutex
	subs       map[string][]chan []byte
	prefixSubs map[string][]chan []byte
}

// NewInMemory creates a new InMemoryFeed.
func NewInMemory() *InMemoryFeed {
	return &InMemoryFeed{
		subs:       make(map[string][]chan []byte),
		prefixSubs: make(map[string][]chan []byte),
	}
}

// Publish sends data to all watchers of key, including prefix watchers
// whose prefix matches.
func (f *InMemoryFeed) Publish(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f.mu.Lock()
	chans := append([]chan []byte(nil), f.subs[key]...)
	for prefix, subs := range f.prefixSubs {
		if strings.HasPrefix(key, prefix) {
			chans = append(chans, subs...)
		}
	}
	f.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Watch subscribes to key and returns a channel receiving payloads.
func (f *InMemoryFeed) Watch(ctx context.Context, key string) (chan []byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ch := make(chan []byte, 1)
	f.mu.Lock()
	f.subs[key] = append(f.subs[key], ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = f.Unwatch(context.Background(), key, ch)
	}()
	return ch, nil
}

// WatchPrefix subscribes to every key sharing prefix.
func (f *InMemoryFeed) WatchPrefix(ctx context.Context, prefix string) (chan []byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ch := make(chan []byte, 1)
	f.mu.Lock()
	f.prefixSubs[prefix] = append(f.prefixSubs[prefix], ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = f.Unwatch(context.Background(), prefix, ch)
	}()
	return ch, nil
}

// Unwatch removes the channel from key (or prefix) watchers.
func (f *InMemoryFeed) Unwatch(ctx context.Context, key string, ch chan []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if removed := removeChan(f.subs, key, ch); removed {
		return nil
	}
	removeChan(f.prefixSubs, key, ch)
	return nil
}

func removeChan(m map[string][]chan []byte, key string, ch chan []byte) bool {
	subs := m[key]
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			close(c)
			if len(subs) == 0 {
				delete(m, key)
			} else {
				m[key] = subs
			}
			return true
		}
	}
	return false
}

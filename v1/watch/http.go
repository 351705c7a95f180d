package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var errMissingSelector = errors.New("missing key or prefix")

// checkSelector validates the key/prefix query parameters against the
// feed's capabilities without subscribing yet.
func checkSelector(feed Feed, r *http.Request) error {
	key := r.URL.Query().Get("key")
	prefix := r.URL.Query().Get("prefix")
	if key == "" && prefix == "" {
		return errMissingSelector
	}
	if key == "" {
		if _, ok := feed.(PrefixWatcher); !ok {
			return errors.New("feed does not support prefix watch")
		}
	}
	return nil
}

// subscribe resolves the key or prefix query parameters into a feed
// channel plus the selector to hand back to Unwatch.
func subscribe(ctx context.Context, feed Feed, r *http.Request) (chan []byte, string, error) {
	if key := r.URL.Query().Get("key"); key != "" {
		ch, err := feed.Watch(ctx, key)
		return ch, key, err
	}
	prefix := r.URL.Query().Get("prefix")
	pw, ok := feed.(PrefixWatcher)
	if !ok {
		return nil, "", errors.New("feed does not support prefix watch")
	}
	ch, err := pw.WatchPrefix(ctx, prefix)
	return ch, prefix, err
}

// SSEHandler streams lock events over Server-Sent Events. The watched
// key is taken from the "key" query parameter, or "prefix" to follow
// every key sharing a prefix.
func SSEHandler(feed Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkSelector(feed, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		ch, watched, err := subscribe(ctx, feed, r)
		if err != nil {
			cancel()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer func() {
			cancel()
			_ = feed.Unwatch(context.Background(), watched, ch)
		}()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
					return
				}
				flusher.Flush()
			case <-ctx.Done():
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{}

// WebSocketHandler streams lock events over WebSocket. Key selection
// works as in SSEHandler.
func WebSocketHandler(feed Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkSelector(feed, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ctx, cancel := context.WithCancel(r.Context())
		ch, watched, err := subscribe(ctx, feed, r)
		if err != nil {
			cancel()
			return
		}
		defer func() {
			cancel()
			_ = feed.Unwatch(context.Background(), watched, ch)
		}()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Package stream delivers the rendered mix to remote listeners over a
// chunked MP3 HTTP stream or a WebRTC Opus track.
package stream

import (
	"context"
	"sync"

	"github.com/satindergrewal/soundscape/internal/telemetry"
)

// listenerBuffer holds about three seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster copies every mix frame to all connected listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener is one connected client's frame queue.
type Listener struct {
	C    chan []int16
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[*Listener]struct{})}
}

// Subscribe adds a listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	n := len(b.listeners)
	b.mu.Unlock()
	telemetry.StreamListeners.Set(float64(n))
	return l
}

// Unsubscribe removes l. Calling it more than once is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	n := len(b.listeners)
	b.mu.Unlock()
	telemetry.StreamListeners.Set(float64(n))
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of connected listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run forwards frames from source until ctx is done or source closes.
// A listener whose queue is full misses the frame.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.broadcast(frame)
		}
	}
}

func (b *Broadcaster) broadcast(frame []int16) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- frame:
		default:
			telemetry.DroppedFrames.Inc()
		}
	}
}

// Package events is an in-process pubsub used to push mix and library
// changes to websocket clients.
package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventMixChanged     EventType = "mix.changed"
	EventLibraryChanged EventType = "library.changed"
	EventPresetsChanged EventType = "presets.changed"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

type subscription struct {
	ch     Subscriber
	latest bool
}

// Bus implements a simple in-process pubsub. Publish never blocks: a
// regular subscriber whose buffer is full misses the event, a latest-only
// subscriber has its stale payload replaced.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]subscription
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]subscription)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	return b.subscribe(eventType, 8, false)
}

// SubscribeLatest registers a subscriber that only ever holds the newest
// payload. Use it for events that carry full state, like mix snapshots.
func (b *Bus) SubscribeLatest(eventType EventType) Subscriber {
	return b.subscribe(eventType, 1, true)
}

func (b *Bus) subscribe(eventType EventType, size int, latest bool) Subscriber {
	ch := make(Subscriber, size)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], subscription{ch: ch, latest: latest})
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		if sub.latest {
			replace(sub.ch, payload)
			continue
		}
		select {
		case sub.ch <- payload:
		default:
		}
	}
}

// replace drops whatever is buffered in ch and sends payload.
func replace(ch Subscriber, payload Payload) {
	for {
		select {
		case ch <- payload:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate.ch == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

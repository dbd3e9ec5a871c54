// Package bus implements the in-process publish/subscribe channel that
// decouples the sync engine, the connection monitor, and the UI. Event
// kinds are dot-namespaced; subscribers receive every event whose kind
// starts with their namespace prefix.
package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus fans events out to namespace-filtered subscribers. Publish never
// blocks: a subscriber that cannot keep up loses events rather than
// stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose namespace prefixes
// evt.Kind.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber buffer full; drop.
			}
		}
	}
}

// Emit is shorthand for Publish with the current timestamp.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe registers a listener for the given namespace prefix and
// returns the receive channel plus an unsubscribe function. bufSize caps
// how far the subscriber may lag before events are dropped.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

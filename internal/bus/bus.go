package bus

import (
	"strings"
	"sync"
	"time"
)

// Event is a domain event published on the bus. Payload holds the typed
// event value (e.g. *protocol.ChatEvent for "chat." kinds).
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Bus is an in-process multicast event bus. Every subscriber whose prefix
// matches an event's Kind receives it. Delivery happens synchronously on the
// publishing goroutine, so events from a single publisher arrive in publish
// order. A full subscriber buffer drops the event rather than blocking the
// publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				// Buffer full: drop rather than block the producer.
			}
		}
	}
}

// Subscribe registers a subscriber for event kinds starting with prefix.
// bufSize sets the channel buffer; size it for the expected burst rate.
// The returned func removes the subscription.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

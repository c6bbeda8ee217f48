package authkit

import "sync"

// Event is a session lifecycle notification. Events carry no payload.
type Event string

const (
	// EventAuthenticated is published after a successful authenticate or
	// basic-mode switch.
	EventAuthenticated Event = "authenticated"
	// EventUnauthenticated is published after deauthentication, including
	// the automatic deauthentication on a failed refresh.
	EventUnauthenticated Event = "unauthenticated"
)

// subscriberBuffer is each subscriber's channel capacity. Publish never
// blocks; events beyond capacity are dropped (delivery is best effort).
const subscriberBuffer = 8

// Broker is an explicit publish/subscribe hub for session events.
// Subscribers register and unregister with defined lifetimes instead of
// hanging observers off process-global state.
type Broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber is done; it closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish fans event out to every subscriber without blocking. Subscribers
// whose buffers are full miss the event.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

package device

import "sync"

// Broker fans gateway events out to subscribers. Slow subscribers drop
// events rather than block the emitter.
type Broker struct {
	mu          sync.Mutex
	subscribers []chan Event
}

// NewBroker creates an event broker.
func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe returns a buffered channel receiving future events.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Emit delivers an event to all subscribers without blocking.
func (b *Broker) Emit(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

package notice

import (
	"log"
	"sync"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 64

// Broker is a Sink that fans notices out to dynamic subscribers, such as
// SSE streams. A subscriber that falls behind loses notices rather than
// stalling the producer.
type Broker struct {
	mu      sync.Mutex
	subs    map[int]chan Notice
	nextID  int
	buffer  int
	dropped int
}

// NewBroker creates a Broker whose subscribers buffer up to buffer notices.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broker{
		subs:   make(map[int]chan Notice),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Notice, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Notify delivers n to every subscriber without blocking.
func (b *Broker) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.dropped++
			log.Printf("notice: subscriber %d is behind, dropped %s", id, n.Kind)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Broker) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

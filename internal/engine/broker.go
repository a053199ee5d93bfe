package engine

import (
	"sync"
	"sync/atomic"
)

// subscriberBufferSize is the channel buffer for each subscriber. Values are
// dropped if a subscriber falls this far behind.
const subscriberBufferSize = 256

// Broker fans values out to push subscribers. It is safe for concurrent use.
//
// Publish never blocks: a subscriber whose buffer is full misses the value.
// Consumers that must see every snapshot use the slice returned by
// Engine.Advance instead.
type Broker[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

// NewBroker creates a new broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[int]chan T),
	}
}

// Subscribe returns a channel that receives published values and an
// unsubscribe function. After Close the returned channel is already closed.
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish sends v to every subscriber.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Broker[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later Subscribe calls return a
// closed channel and Publish becomes a no-op.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

package events

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Broker fans events of one type out to its subscribers.
type Broker[T any] struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber[T]
	sink *Sink
}

// NewBroker returns a Broker delivering through sink; nil means synchronous.
func NewBroker[T any](sink *Sink) *Broker[T] {
	return &Broker[T]{sink: sink}
}

// Subscribe registers fn and returns a func that removes it. Cancelling twice
// is harmless.
func (b *Broker[T]) Subscribe(fn func(T)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broker[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every current subscriber in subscription order.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		fn := s.fn
		if b.sink == nil {
			fn(v)
			continue
		}
		b.sink.Post(func() { fn(v) })
	}
}

// Len reports the number of subscribers.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

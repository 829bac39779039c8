// Package eventbus provides a typed, synchronous publish/subscribe hub.
package eventbus

import (
	"log/slog"
	"sync"
)

// Bus delivers payloads of type T to its subscribers.
// The zero value is ready to use.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]

	// Name labels log records for recovered handler panics.
	Name string
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// On subscribes fn and returns a function that removes the subscription.
// Calling the returned function more than once is harmless.
func (b *Bus[T]) On(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// Copy instead of deleting in place: an Emit in progress may
			// still be iterating the old slice.
			next := make([]subscriber[T], 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// Emit calls every current subscriber in subscription order on the
// calling goroutine. Subscribers added or removed during Emit do not
// affect this pass. A panicking subscriber is logged and skipped.
func (b *Bus[T]) Emit(payload T) {
	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()

	for _, s := range snapshot {
		b.call(s, payload)
	}
}

func (b *Bus[T]) call(s subscriber[T], payload T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", b.Name, "panic", r)
		}
	}()
	s.fn(payload)
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

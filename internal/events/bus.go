// Package events provides a typed publish/subscribe bus. Every Subscribe
// returns an unsubscribe func; callers must invoke it on teardown so that
// listeners do not accumulate across repeated invocations.
package events

import (
	"sort"
	"sync"
)

// Handler receives one event.
type Handler[T any] func(T)

// Bus fans out events of a single type to registered handlers.
// The zero value is ready to use.
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler[T]
}

// Subscribe registers fn and returns a func that removes it. The returned
// func is idempotent.
func (b *Bus[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]Handler[T])
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every handler registered at the time of the call,
// in subscription order. Handlers run on the caller's goroutine.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	snapshot := make([]Handler[T], 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		snapshot = append(snapshot, b.handlers[id])
	}
	b.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

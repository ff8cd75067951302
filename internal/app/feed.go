// Package app holds the session engine: the state store, the command
// gateway, the resumption policy and the wiring between them.
package app

import "sync"

// Feed is a last-value-wins broadcast cell. A new subscriber immediately
// receives the current value; later publishes conflate, so a slow subscriber
// only ever observes the newest value and never one older than it has seen.
type Feed[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
}

func NewFeed[T any](initial T) *Feed[T] {
	return &Feed[T]{value: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (f *Feed[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Publish replaces the value and fans it out.
func (f *Feed[T]) Publish(v T) {
	f.Update(func(T) T { return v })
}

// Update atomically replaces the value with fn(current) and fans it out.
func (f *Feed[T]) Update(fn func(T) T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = fn(f.value)
	for _, ch := range f.subs {
		// Drop the stale value, if any, then push; the channel has capacity
		// one and is only ever filled here, so this cannot block.
		select {
		case <-ch:
		default:
		}
		ch <- f.value
	}
}

// Subscribe registers a new observer. The returned cancel func must be called
// when the observer is done; the channel is closed by cancel.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan T, 1)
	ch <- f.value
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; !ok {
			return
		}
		delete(f.subs, id)
		close(ch)
	}
	return ch, cancel
}

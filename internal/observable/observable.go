// Package observable provides values that notify subscribers on change.
package observable

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value holds a T and notifies subscribers, in subscription order, on every Set.
//
// Notifications are serialized: a subscriber never sees two values
// concurrently and observes them in Set order. Callbacks may Get and cancel
// subscriptions but must not Set or Subscribe on the same Value.
type Value[T any] struct {
	mu       sync.Mutex // guards value, subs, nextID
	notifyMu sync.Mutex // serializes deliveries
	value    T
	subs     *orderedmap.OrderedMap[uint64, func(T)]
	nextID   uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  orderedmap.New[uint64, func(T)](),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set stores val and delivers it to every subscriber.
func (v *Value[T]) Set(val T) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	v.value = val
	callbacks := v.callbacks()
	v.mu.Unlock()

	for _, fn := range callbacks {
		fn(val)
	}
}

// Subscribe registers fn and immediately delivers the current value to it.
// The returned function removes the subscription; calling it twice is harmless.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs.Set(id, fn)
	current := v.value
	v.mu.Unlock()

	fn(current)

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.subs.Delete(id)
	}
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.subs.Len()
}

// callbacks copies the subscriber list; v.mu must be held.
func (v *Value[T]) callbacks() []func(T) {
	out := make([]func(T), 0, v.subs.Len())
	for pair := v.subs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

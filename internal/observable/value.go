// Package observable provides a single-writer, multi-reader value cell that
// broadcasts the latest value to its subscribers.
package observable

import (
	"sync"
	"sync/atomic"
)

// Value holds the latest value of T. Load never blocks; writes are
// serialized and fanned out to subscribers.
type Value[T any] struct {
	current atomic.Pointer[T]

	mu     sync.Mutex // serializes writers and guards subs
	subs   map[uint64]chan T
	nextID uint64
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	v := &Value[T]{subs: make(map[uint64]chan T)}
	v.current.Store(&initial)
	return v
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	return *v.current.Load()
}

// Store replaces the current value and notifies subscribers.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current.Store(&x)
	v.broadcast(x)
}

// Update atomically applies fn to the current value and stores the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := fn(*v.current.Load())
	v.current.Store(&next)
	v.broadcast(next)
	return next
}

// CompareAndUpdate applies fn only when cond holds for the current value.
// It reports whether the update happened.
func (v *Value[T]) CompareAndUpdate(cond func(T) bool, fn func(T) T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	cur := *v.current.Load()
	if !cond(cur) {
		return false
	}
	next := fn(cur)
	v.current.Store(&next)
	v.broadcast(next)
	return true
}

// Subscribe returns a channel that always carries the most recent value not
// yet received. The current value is delivered immediately. Calling cancel
// closes the channel; it is safe to call more than once.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	ch <- *v.current.Load()

	id := v.nextID
	v.nextID++
	v.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// broadcast must be called with mu held. A pending value the subscriber has
// not read yet is replaced by x.
func (v *Value[T]) broadcast(x T) {
	for _, ch := range v.subs {
		select {
		case ch <- x:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- x:
		default:
		}
	}
}

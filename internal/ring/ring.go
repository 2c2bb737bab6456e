// Package ring implements a bounded, mutex-guarded FIFO used to bridge a
// real-time producer (the audio callback) and non-real-time consumers (the
// meter tap). Overflow overwrites the oldest item rather than blocking or
// erroring, since a dropped frame is always preferable to a missed deadline.
package ring

import "sync"

// Ring is a bounded FIFO of at most Capacity items. The zero value is not
// usable; use New.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	head     int // index of oldest item
	count    int
}

// New returns a Ring with the given capacity. Panics if capacity <= 0.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item, overwriting the oldest item when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	r.pushLocked(item)
	r.mu.Unlock()
}

// TryPush attempts to acquire the lock without blocking and pushes item on
// success. It reports whether the push happened. Intended for real-time
// callers that must never block on contention (spec §4.4/§5): on failure the
// caller drops the frame silently.
func (r *Ring[T]) TryPush(item T) bool {
	if !r.mu.TryLock() {
		return false
	}
	r.pushLocked(item)
	r.mu.Unlock()
	return true
}

func (r *Ring[T]) pushLocked(item T) {
	writeAt := (r.head + r.count) % r.capacity
	if r.count == r.capacity {
		// Full: overwrite oldest, advance head.
		r.items[writeAt] = item
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.items[writeAt] = item
	r.count++
}

// Pop removes and returns the oldest item. ok is false if the ring is empty.
func (r *Ring[T]) Pop() (item T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return item, false
	}
	item = r.items[r.head]
	var zero T
	r.items[r.head] = zero
	r.head = (r.head + 1) % r.capacity
	r.count--
	return item, true
}

// DrainInto pops every buffered item in FIFO order, appending to dst, and
// returns the extended slice. Intended for the meter tap, which drains the
// ring in bulk rather than one item at a time.
func (r *Ring[T]) DrainInto(dst []T) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count > 0 {
		dst = append(dst, r.items[r.head])
		var zero T
		r.items[r.head] = zero
		r.head = (r.head + 1) % r.capacity
		r.count--
	}
	return dst
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the configured capacity.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

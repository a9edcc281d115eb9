// Package history provides the bounded sample buffers used by the analysis
// engines.
package history

import "sync"

// Ring is a fixed-capacity FIFO. Pushing past capacity evicts the oldest
// entry. Safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	n     int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Push appends v and reports whether an old entry was evicted.
func (r *Ring[T]) Push(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// Items returns a copy of the entries, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if r.n == 0 {
		return zero, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.start = 0
	r.n = 0
}

// Mean averages a float ring. ok is false when the ring is empty.
func Mean(r *Ring[float64]) (mean float64, ok bool) {
	items := r.Items()
	if len(items) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range items {
		sum += v
	}
	return sum / float64(len(items)), true
}

package circularbuffer

import "sync"

// CircularBuffer keeps the most recent Size elements pushed into it.
type CircularBuffer[T any] struct {
	values   []T
	position int
	full     bool
	mu       sync.Mutex
}

func New[T any](size int) *CircularBuffer[T] {
	if size < 1 {
		size = 1
	}

	return &CircularBuffer[T]{
		values: make([]T, size),
	}
}

func (cb *CircularBuffer[T]) Push(element T) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.values[cb.position] = element
	cb.position++

	if cb.position >= len(cb.values) {
		cb.position = 0
		cb.full = true
	}
}

func (cb *CircularBuffer[T]) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.length()
}

func (cb *CircularBuffer[T]) length() int {
	if cb.full {
		return len(cb.values)
	}
	return cb.position
}

// Each iterates over all elements in the buffer in the order they were inserted
func (cb *CircularBuffer[T]) Each(fn func(T)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	start := 0
	if cb.full {
		start = cb.position
	}

	for n := 0; n < cb.length(); n++ {
		fn(cb.values[(start+n)%len(cb.values)])
	}
}

// Snapshot copies the buffer out, oldest first
func (cb *CircularBuffer[T]) Snapshot() []T {
	out := make([]T, 0, cb.Len())
	cb.Each(func(v T) {
		out = append(out, v)
	})
	return out
}

package store

// Ring is a fixed-capacity, insertion-ordered buffer. Pushing onto a full
// ring evicts the oldest element. Ring is not safe for concurrent use; the
// Store guards it with its own lock.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

// NewRing returns an empty Ring holding at most capacity elements.
// A capacity below 1 is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full. It reports whether
// an element was evicted.
func (r *Ring[T]) Push(v T) (evicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return true
}

// Len returns the number of elements held.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the maximum number of elements.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th element, oldest first. It panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("store: ring index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.At(r.size - 1), true
}

// Slice returns a copy of all elements, oldest first.
func (r *Ring[T]) Slice() []T {
	return r.LastN(r.size)
}

// LastN returns a copy of the newest n elements, oldest first.
func (r *Ring[T]) LastN(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.At(i))
	}
	return out
}

// Filter returns a copy of the elements for which keep returns true, oldest first.
func (r *Ring[T]) Filter(keep func(T) bool) []T {
	out := make([]T, 0)
	for i := 0; i < r.size; i++ {
		if v := r.At(i); keep(v) {
			out = append(out, v)
		}
	}
	return out
}

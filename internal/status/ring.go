package status

// ring is a fixed-capacity buffer that overwrites its oldest element.
type ring[T any] struct {
	buf  []T
	next int
	size int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// newestFirst copies the contents, most recently pushed first.
func (r *ring[T]) newestFirst() []T {
	out := make([]T, 0, r.size)
	for i := 1; i <= r.size; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *ring[T]) len() int {
	return r.size
}

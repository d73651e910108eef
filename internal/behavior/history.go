package behavior

// History is a capped FIFO log. Once full, Push evicts the oldest entry.
type History[T any] struct {
	buf   []T
	start int
	size  int
}

func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{buf: make([]T, capacity)}
}

func (h *History[T]) Push(v T) {
	c := len(h.buf)
	if h.size < c {
		h.buf[(h.start+h.size)%c] = v
		h.size++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % c
}

func (h *History[T]) Len() int { return h.size }

func (h *History[T]) Cap() int { return len(h.buf) }

// Items returns a copy of the retained entries, oldest first.
func (h *History[T]) Items() []T {
	out := make([]T, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

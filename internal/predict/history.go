package predict

import "github.com/banshee-data/laneflow/internal/geom"

// History is a fixed-capacity ring buffer of a vehicle's recent
// positions, most-recent-last. Once full, pushing a new position
// evicts the oldest.
type History struct {
	buf  []geom.Point
	head int // index of the oldest element
	size int
}

// NewHistory creates a history buffer with the given capacity.
// Capacity must be at least 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]geom.Point, capacity)}
}

// Push appends a position, evicting the oldest when full.
func (h *History) Push(p geom.Point) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = p
		h.size++
		return
	}
	h.buf[h.head] = p
	h.head = (h.head + 1) % len(h.buf)
}

// Len returns the number of buffered positions.
func (h *History) Len() int { return h.size }

// Last returns the most recent position. The boolean is false when the
// buffer is empty.
func (h *History) Last() (geom.Point, bool) {
	if h.size == 0 {
		return geom.Point{}, false
	}
	return h.buf[(h.head+h.size-1)%len(h.buf)], true
}

// Points returns the buffered positions oldest-first as a fresh slice.
func (h *History) Points() []geom.Point {
	out := make([]geom.Point, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

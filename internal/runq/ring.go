package runq

import "math"

// ring is the FIFO backing. prod and cons only ever increase; the slot of a
// cursor is cursor & mask.
type ring[T any] struct {
	buf  []T
	mask uint64
	prod uint64
	cons uint64

	growCount int
}

func newRing[T any](size int) *ring[T] {
	return &ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

func (r *ring[T]) len() int   { return int(r.prod - r.cons) }
func (r *ring[T]) cap() int   { return len(r.buf) }
func (r *ring[T]) grows() int { return r.growCount }

func (r *ring[T]) full() bool {
	return r.prod-r.cons == uint64(len(r.buf))
}

// produce stores v at the producer cursor. The caller guarantees a free slot.
func (r *ring[T]) produce(v T) int {
	slot := int(r.prod & r.mask)
	r.buf[slot] = v

	// Rebase before the producer cursor would overflow. The maximum value is
	// congruent to mask, so both cursors keep their slots and their distance.
	if r.prod == math.MaxUint64 {
		r.cons &= r.mask
		r.prod &= r.mask
	}
	r.prod++
	return slot
}

func (r *ring[T]) tryPush(v T) (int, bool) {
	if r.full() {
		return 0, false
	}
	return r.produce(v), true
}

func (r *ring[T]) push(v T) int {
	if r.full() {
		r.realloc(len(r.buf) * 2)
	}
	slot, ok := r.tryPush(v)
	if !ok {
		panic("runq: ring still full after grow")
	}
	return slot
}

func (r *ring[T]) pushBulk(vs []T) {
	newSize := grownSize(len(r.buf), r.len(), len(vs))
	if newSize > len(r.buf) {
		r.realloc(newSize)
	}
	for _, v := range vs {
		r.produce(v)
	}
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.prod == r.cons {
		return zero, false
	}
	slot := r.cons & r.mask
	v := r.buf[slot]
	r.buf[slot] = zero
	r.cons++
	return v, true
}

// realloc moves every queued element, oldest first, into a new buffer of
// newSize slots and resets the cursors.
func (r *ring[T]) realloc(newSize int) {
	if newSize&(newSize-1) != 0 {
		panic("runq: ring size must be a power of two")
	}
	buf := make([]T, newSize)
	n := 0
	for r.cons != r.prod {
		buf[n] = r.buf[r.cons&r.mask]
		r.cons++
		n++
	}
	r.buf = buf
	r.mask = uint64(newSize - 1)
	r.cons = 0
	r.prod = uint64(n)
	r.growCount++
}

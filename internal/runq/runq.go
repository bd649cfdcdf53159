// Package runq provides the growable run queue that holds handles of pending
// batches which are ready to be flushed by the dispatch loop.
//
// A RunQueue is owned by exactly one dispatch worker. None of its methods
// block and none of them are safe for concurrent use; parallel workers each
// own an independent queue.
//
// BACKING POLICIES:
// The storage behind a queue is selected when it is created:
//
//   - Ring: power-of-two circular buffer indexed by masking unbounded
//     producer/consumer cursors. Strict FIFO. Doubles when full.
//   - Stack: contiguous slice popped from the top. LIFO. Doubles when full.
//
// Ring is the default and is the only policy that preserves arrival order.
// Stack trades ordering for cache locality on the most recently queued
// handle and is mostly useful for benchmarking the dispatch path.
//
// GROWTH:
// Push never fails. When the storage is full a new buffer of twice the
// capacity is allocated, existing elements are moved oldest first, and the
// old buffer is released. PushBulk computes the final capacity up front so a
// bulk insert grows at most once.
package runq

import "fmt"

// Backing selects the storage policy of a RunQueue.
type Backing int

const (
	// Ring is a FIFO power-of-two circular buffer.
	Ring Backing = iota
	// Stack is a LIFO buffer.
	Stack
)

// String returns the flag spelling of the backing policy.
func (b Backing) String() string {
	switch b {
	case Ring:
		return "ring"
	case Stack:
		return "stack"
	default:
		return fmt.Sprintf("backing(%d)", int(b))
	}
}

// ParseBacking converts a flag value into a Backing.
func ParseBacking(s string) (Backing, error) {
	switch s {
	case "ring", "":
		return Ring, nil
	case "stack":
		return Stack, nil
	default:
		return Ring, fmt.Errorf("unknown run queue backing %q (expected ring or stack)", s)
	}
}

// store is the strategy a RunQueue delegates to.
type store[T any] interface {
	tryPush(v T) (int, bool)
	push(v T) int
	pushBulk(vs []T)
	pop() (T, bool)
	len() int
	cap() int
	grows() int
}

// Option configures a RunQueue at creation.
type Option func(*options)

type options struct {
	backing Backing
}

// WithBacking selects the storage policy. The default is Ring.
func WithBacking(b Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

// RunQueue is a growable queue of handles.
type RunQueue[T any] struct {
	backing Backing
	s       store[T]
}

// New creates an empty queue with an initial capacity of 1<<sizeShift.
func New[T any](sizeShift uint, opts ...Option) *RunQueue[T] {
	if sizeShift > 30 {
		panic(fmt.Sprintf("runq: size shift %d too large", sizeShift))
	}

	o := options{backing: Ring}
	for _, opt := range opts {
		opt(&o)
	}

	size := 1 << sizeShift
	q := &RunQueue[T]{backing: o.backing}
	switch o.backing {
	case Stack:
		q.s = newStack[T](size)
	default:
		q.backing = Ring
		q.s = newRing[T](size)
	}
	return q
}

// Backing reports the storage policy in use.
func (q *RunQueue[T]) Backing() Backing { return q.backing }

// TryPush inserts v without growing. It returns the storage slot used, or
// false when the queue is full.
func (q *RunQueue[T]) TryPush(v T) (int, bool) { return q.s.tryPush(v) }

// Push inserts v, doubling the storage first if the queue is full. It
// returns the storage slot used.
func (q *RunQueue[T]) Push(v T) int { return q.s.push(v) }

// PushBulk inserts all of vs in order, growing at most once.
func (q *RunQueue[T]) PushBulk(vs []T) {
	if len(vs) == 0 {
		return
	}
	q.s.pushBulk(vs)
}

// Pop removes the next handle. For Ring that is the oldest one.
func (q *RunQueue[T]) Pop() (T, bool) { return q.s.pop() }

// Len returns the number of queued handles.
func (q *RunQueue[T]) Len() int { return q.s.len() }

// Cap returns the current storage capacity.
func (q *RunQueue[T]) Cap() int { return q.s.cap() }

// Grows returns how many times the storage has been reallocated.
func (q *RunQueue[T]) Grows() int { return q.s.grows() }

// grownSize returns the smallest doubling of size that leaves room for n
// more elements when used elements are already occupied.
func grownSize(size, used, n int) int {
	left := size - used
	newSize := size
	for left < n {
		left += newSize
		newSize *= 2
	}
	return newSize
}

package runq

// stack is the LIFO backing. idx is the number of stored elements.
type stack[T any] struct {
	buf []T
	idx int

	growCount int
}

func newStack[T any](size int) *stack[T] {
	return &stack[T]{buf: make([]T, size)}
}

func (s *stack[T]) len() int   { return s.idx }
func (s *stack[T]) cap() int   { return len(s.buf) }
func (s *stack[T]) grows() int { return s.growCount }

func (s *stack[T]) tryPush(v T) (int, bool) {
	if s.idx == len(s.buf) {
		return 0, false
	}
	s.buf[s.idx] = v
	s.idx++
	return s.idx - 1, true
}

func (s *stack[T]) push(v T) int {
	if s.idx == len(s.buf) {
		s.realloc(len(s.buf) * 2)
	}
	slot, ok := s.tryPush(v)
	if !ok {
		panic("runq: stack still full after grow")
	}
	return slot
}

func (s *stack[T]) pushBulk(vs []T) {
	newSize := grownSize(len(s.buf), s.idx, len(vs))
	if newSize > len(s.buf) {
		s.realloc(newSize)
	}
	s.idx += copy(s.buf[s.idx:], vs)
}

func (s *stack[T]) pop() (T, bool) {
	var zero T
	if s.idx == 0 {
		return zero, false
	}
	s.idx--
	v := s.buf[s.idx]
	s.buf[s.idx] = zero
	return v, true
}

func (s *stack[T]) realloc(newSize int) {
	buf := make([]T, newSize)
	copy(buf, s.buf[:s.idx])
	s.buf = buf
	s.growCount++
}

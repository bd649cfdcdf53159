// Package timerwheel implements the single-level timing wheel that bounds how
// long a pending batch may wait before it is forced out.
//
// WHEEL GEOMETRY:
// The wheel is a fixed ring of slots. Each slot heads an intrusive doubly
// linked list of timer entries, so start and stop are O(1). A cursor points
// at the slot of the current tick; Advance moves it forward one slot per
// elapsed tick and collects the entries whose deadline is reached.
//
//	slot = (current + delay) mod slots
//	rounds = (delay - 1) / slots
//
// Entries with rounds left are decremented instead of fired, which lets a
// single ring schedule delays longer than one revolution while still firing
// in the exact Advance call whose cumulative elapsed ticks reach the delay.
//
// TIMER IDENTITY:
// A TimerID packs the entry index with a generation that is bumped whenever
// the entry is released. Stopping an id whose generation no longer matches,
// or whose entry already fired, is rejected with ErrTimerNotArmed. Duplicate
// stops are therefore errors, never silent no-ops.
//
// A Wheel is single-owner and not safe for concurrent use.
package timerwheel

import (
	"errors"
	"fmt"

	"github.com/concave-dev/pfbatch/internal/validate"
)

// DefaultSlotsPerRing is the slot count used when Config leaves it unset.
const DefaultSlotsPerRing = 1024

// ErrTimerNotArmed is returned when stopping a timer that already expired,
// was already stopped, or never existed.
var ErrTimerNotArmed = errors.New("timer not armed")

const noEntry = -1

// TimerID identifies one armed timer. The zero value never identifies a timer.
type TimerID uint64

func makeID(idx int32, gen uint32) TimerID {
	return TimerID(uint64(gen)<<32 | uint64(uint32(idx)))
}

func (id TimerID) index() int32       { return int32(uint32(id)) }
func (id TimerID) generation() uint32 { return uint32(id >> 32) }

// String renders the id as index/generation for logs.
func (id TimerID) String() string {
	return fmt.Sprintf("%d/%d", id.index(), id.generation())
}

// Config holds the wheel geometry.
type Config struct {
	SlotsPerRing int `json:"slotsPerRing"`
}

// DefaultConfig returns the default wheel geometry.
func DefaultConfig() Config {
	return Config{SlotsPerRing: DefaultSlotsPerRing}
}

// Validate checks the wheel geometry.
func (c Config) Validate() error {
	if err := validate.ValidateField(c.SlotsPerRing, "min=1,max=1048576"); err != nil {
		return fmt.Errorf("invalid slots per ring %d: %w", c.SlotsPerRing, err)
	}
	return nil
}

type entry[T any] struct {
	value  T
	gen    uint32
	slot   int32 // noEntry while free
	rounds uint64
	prev   int32
	next   int32
}

// Wheel schedules values of type T for expiry after a delay in ticks.
type Wheel[T any] struct {
	heads   []int32
	entries []entry[T]
	free    []int32

	current int
	now     uint64
	armed   int
}

// New creates a wheel. A zero SlotsPerRing selects DefaultSlotsPerRing.
func New[T any](cfg Config) (*Wheel[T], error) {
	if cfg.SlotsPerRing == 0 {
		cfg.SlotsPerRing = DefaultSlotsPerRing
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	heads := make([]int32, cfg.SlotsPerRing)
	for i := range heads {
		heads[i] = noEntry
	}
	return &Wheel[T]{heads: heads}, nil
}

// Slots returns the number of slots in the ring.
func (w *Wheel[T]) Slots() int { return len(w.heads) }

// Now returns the number of ticks advanced since creation.
func (w *Wheel[T]) Now() uint64 { return w.now }

// Armed returns the number of timers currently in the wheel.
func (w *Wheel[T]) Armed() int { return w.armed }

// Start arms a timer that delivers v once delay ticks have elapsed. A delay
// of zero is treated as one tick.
func (w *Wheel[T]) Start(v T, delay uint64) TimerID {
	if delay == 0 {
		delay = 1
	}

	n := uint64(len(w.heads))
	slot := int32((uint64(w.current) + delay%n) % n)

	idx := w.alloc()
	e := &w.entries[idx]
	e.value = v
	e.rounds = (delay - 1) / n
	w.link(idx, slot)
	w.armed++

	return makeID(idx, e.gen)
}

// Stop disarms the timer. It fails with ErrTimerNotArmed when the id does
// not refer to an armed timer.
func (w *Wheel[T]) Stop(id TimerID) error {
	idx := id.index()
	if id == 0 || idx < 0 || int(idx) >= len(w.entries) {
		return fmt.Errorf("stop timer %s: %w", id, ErrTimerNotArmed)
	}
	e := &w.entries[idx]
	if e.gen != id.generation() || e.slot == noEntry {
		return fmt.Errorf("stop timer %s: %w", id, ErrTimerNotArmed)
	}

	w.unlink(idx)
	w.release(idx)
	w.armed--
	return nil
}

// Advance moves the wheel forward by elapsed ticks, visiting every slot
// passed over, and appends the value of every expired timer to dst.
func (w *Wheel[T]) Advance(elapsed uint64, dst []T) []T {
	n := uint64(len(w.heads))
	for elapsed > 0 {
		if w.armed == 0 {
			// Nothing can fire, jump straight to the target tick.
			w.current = int((uint64(w.current) + elapsed%n) % n)
			w.now += elapsed
			return dst
		}

		w.current++
		if w.current == len(w.heads) {
			w.current = 0
		}
		w.now++
		elapsed--
		dst = w.expireSlot(int32(w.current), dst)
	}
	return dst
}

// expireSlot fires every entry of slot whose rounds reached zero and
// decrements the rest.
func (w *Wheel[T]) expireSlot(slot int32, dst []T) []T {
	idx := w.heads[slot]
	for idx != noEntry {
		e := &w.entries[idx]
		next := e.next
		if e.rounds == 0 {
			dst = append(dst, e.value)
			w.unlink(idx)
			w.release(idx)
			w.armed--
		} else {
			e.rounds--
		}
		idx = next
	}
	return dst
}

func (w *Wheel[T]) alloc() int32 {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		return idx
	}
	w.entries = append(w.entries, entry[T]{gen: 1, slot: noEntry})
	return int32(len(w.entries) - 1)
}

func (w *Wheel[T]) release(idx int32) {
	var zero T
	e := &w.entries[idx]
	e.value = zero
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	w.free = append(w.free, idx)
}

func (w *Wheel[T]) link(idx, slot int32) {
	e := &w.entries[idx]
	e.slot = slot
	e.prev = noEntry
	e.next = w.heads[slot]
	if e.next != noEntry {
		w.entries[e.next].prev = idx
	}
	w.heads[slot] = idx
}

func (w *Wheel[T]) unlink(idx int32) {
	e := &w.entries[idx]
	if e.prev != noEntry {
		w.entries[e.prev].next = e.next
	} else {
		w.heads[e.slot] = e.next
	}
	if e.next != noEntry {
		w.entries[e.next].prev = e.prev
	}
	e.slot = noEntry
	e.prev = noEntry
	e.next = noEntry
}

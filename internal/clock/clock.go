// Package clock converts wall-clock time into the tick counts the timer
// wheel advances by.
//
// The tick interval is a fixed granularity chosen at startup. Ticker keeps
// the sub-tick remainder between calls so that no time is lost when the
// dispatch loop wakes up at irregular intervals.
package clock

import (
	"sync"
	"time"

	"github.com/concave-dev/pfbatch/internal/validate"
)

// Source provides the current time.
type Source interface {
	Now() time.Time
}

// System reads the monotonic system clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Manual is a Source moved forward explicitly. Used by tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the manual clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Ticker turns successive readings of a Source into elapsed tick counts.
type Ticker struct {
	interval time.Duration
	last     time.Time
	carry    time.Duration
	started  bool
}

// NewTicker creates a ticker with the given tick granularity.
func NewTicker(interval time.Duration) (*Ticker, error) {
	if err := validate.ValidatePositiveTimeout(interval, "tick interval"); err != nil {
		return nil, err
	}
	return &Ticker{interval: interval}, nil
}

// Interval returns the tick granularity.
func (t *Ticker) Interval() time.Duration { return t.interval }

// Elapsed returns the number of whole ticks between the previous call and
// now. The first call only records the starting point and returns 0. A
// clock that moved backwards yields 0.
func (t *Ticker) Elapsed(now time.Time) uint64 {
	if !t.started {
		t.started = true
		t.last = now
		return 0
	}

	delta := now.Sub(t.last)
	t.last = now
	if delta <= 0 {
		return 0
	}

	delta += t.carry
	ticks := delta / t.interval
	t.carry = delta - ticks*t.interval
	return uint64(ticks)
}

// DurationToTicks converts d into ticks, rounding up so a positive duration
// never becomes zero ticks.
func DurationToTicks(d, interval time.Duration) uint64 {
	if d <= 0 || interval <= 0 {
		return 0
	}
	return uint64((d + interval - 1) / interval)
}

// TicksToDuration converts a tick count back into wall time.
func TicksToDuration(ticks uint64, interval time.Duration) time.Duration {
	return time.Duration(ticks) * interval
}

package clock

import (
	"testing"
	"time"
)

// TestTickerCarriesRemainder tests that sub-tick time accumulates across calls
func TestTickerCarriesRemainder(t *testing.T) {
	tk, err := NewTicker(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewTicker failed: %v", err)
	}

	start := time.Unix(0, 0)
	if got := tk.Elapsed(start); got != 0 {
		t.Fatalf("First reading should return 0, got %d", got)
	}

	steps := []struct {
		advance time.Duration
		want    uint64
	}{
		{advance: 4 * time.Millisecond, want: 0},
		{advance: 4 * time.Millisecond, want: 0},
		{advance: 4 * time.Millisecond, want: 1},
		{advance: 25 * time.Millisecond, want: 2},
		{advance: 3 * time.Millisecond, want: 1},
	}

	now := start
	var total uint64
	for i, step := range steps {
		now = now.Add(step.advance)
		got := tk.Elapsed(now)
		if got != step.want {
			t.Errorf("Step %d: expected %d ticks, got %d", i, step.want, got)
		}
		total += got
	}

	if total != 4 {
		t.Errorf("Expected 4 ticks over 40ms, got %d", total)
	}
}

// TestTickerBackwardsClock tests that a clock going backwards yields no ticks
func TestTickerBackwardsClock(t *testing.T) {
	tk, _ := NewTicker(time.Millisecond)
	now := time.Unix(100, 0)
	tk.Elapsed(now)

	if got := tk.Elapsed(now.Add(-time.Second)); got != 0 {
		t.Errorf("Expected 0 ticks for backwards clock, got %d", got)
	}
}

// TestNewTickerRejectsZeroInterval tests interval validation
func TestNewTickerRejectsZeroInterval(t *testing.T) {
	if _, err := NewTicker(0); err == nil {
		t.Error("Expected error for zero interval")
	}
}

// TestDurationToTicks tests rounding of durations into ticks
func TestDurationToTicks(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		interval time.Duration
		want     uint64
	}{
		{name: "exact", d: 50 * time.Millisecond, interval: time.Millisecond, want: 50},
		{name: "rounds up", d: 1500 * time.Microsecond, interval: time.Millisecond, want: 2},
		{name: "sub tick", d: time.Microsecond, interval: time.Millisecond, want: 1},
		{name: "zero", d: 0, interval: time.Millisecond, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationToTicks(tt.d, tt.interval); got != tt.want {
				t.Errorf("DurationToTicks(%v, %v) = %d, want %d", tt.d, tt.interval, got, tt.want)
			}
		})
	}

	if got := TicksToDuration(50, time.Millisecond); got != 50*time.Millisecond {
		t.Errorf("TicksToDuration = %v, want 50ms", got)
	}
}

// TestManualClock tests the manual source
func TestManualClock(t *testing.T) {
	start := time.Unix(10, 0)
	m := NewManual(start)
	m.Advance(3 * time.Second)

	if got := m.Now(); !got.Equal(start.Add(3 * time.Second)) {
		t.Errorf("Expected %v, got %v", start.Add(3*time.Second), got)
	}
}

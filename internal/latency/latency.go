// Package latency keeps per-protocol delivery latency counters for flushed
// items.
//
// Latency is measured from the moment an item is admitted to the moment its
// batch is handed to the sink. Every item carries a protocol id; ids 0 and
// ids at or above MaxProtocols are treated as untagged and not counted. An
// item whose latency exceeds the configured threshold is counted as a
// timeout in addition to the normal totals.
//
// Tracker is safe for concurrent use. Dispatch workers record into it and
// the admin API reads or resets it.
package latency

import (
	"sync"
	"time"
)

const (
	// MaxProtocols bounds the protocol ids that are tracked.
	MaxProtocols = 16

	// DefaultTimeoutThreshold is the latency above which an item is
	// counted as a timeout.
	DefaultTimeoutThreshold = time.Millisecond
)

// Counter accumulates latency for one protocol id or for the total.
type Counter struct {
	Packets      uint64        `json:"totalPackets"`
	Bytes        uint64        `json:"totalBytes"`
	TotalLatency time.Duration `json:"totalLatency"`
	Timeouts     uint64        `json:"timeoutPackets"`
}

// Average returns the mean latency, or zero when nothing was counted.
func (c Counter) Average() time.Duration {
	if c.Packets == 0 {
		return 0
	}
	return c.TotalLatency / time.Duration(c.Packets)
}

func (c *Counter) add(lat time.Duration, bytes int, timeout bool) {
	c.Packets++
	c.Bytes += uint64(bytes)
	c.TotalLatency += lat
	if timeout {
		c.Timeouts++
	}
}

// ProtocolCounter is a Counter tagged with its protocol id.
type ProtocolCounter struct {
	Protocol uint8 `json:"protocol"`
	Counter
}

// Snapshot is a point-in-time copy of a tracker.
type Snapshot struct {
	Since     time.Time         `json:"since"`
	Window    time.Duration     `json:"window"`
	Threshold time.Duration     `json:"threshold"`
	Total     Counter           `json:"total"`
	Protocols []ProtocolCounter `json:"protocols"`
}

// PacketsPerSecond returns the average item throughput over the window.
func (s Snapshot) PacketsPerSecond() float64 {
	if s.Window <= 0 {
		return 0
	}
	return float64(s.Total.Packets) / s.Window.Seconds()
}

// BitsPerSecond returns the average payload throughput over the window.
func (s Snapshot) BitsPerSecond() float64 {
	if s.Window <= 0 {
		return 0
	}
	return float64(s.Total.Bytes*8) / s.Window.Seconds()
}

// Tracker records latency samples.
type Tracker struct {
	mu        sync.Mutex
	threshold time.Duration
	since     time.Time
	total     Counter
	protocols [MaxProtocols]Counter
}

// NewTracker creates a tracker. A non-positive threshold selects
// DefaultTimeoutThreshold. now marks the start of the first window.
func NewTracker(threshold time.Duration, now time.Time) *Tracker {
	if threshold <= 0 {
		threshold = DefaultTimeoutThreshold
	}
	return &Tracker{threshold: threshold, since: now}
}

// Threshold returns the timeout threshold.
func (t *Tracker) Threshold() time.Duration { return t.threshold }

// Record counts one item. It reports whether the sample was counted.
func (t *Tracker) Record(protocol uint8, lat time.Duration, bytes int) bool {
	if protocol == 0 || int(protocol) >= MaxProtocols {
		return false
	}
	if lat < 0 {
		lat = 0
	}
	timeout := lat > t.threshold

	t.mu.Lock()
	t.protocols[protocol].add(lat, bytes, timeout)
	t.total.add(lat, bytes, false)
	t.mu.Unlock()
	return true
}

// Snapshot copies the counters. Only protocols with samples are listed.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(now)
}

// Reset clears every counter and starts a new window at now.
func (t *Tracker) Reset(now time.Time) {
	t.mu.Lock()
	t.resetLocked(now)
	t.mu.Unlock()
}

// SnapshotAndReset copies the counters and clears them atomically.
func (t *Tracker) SnapshotAndReset(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.snapshotLocked(now)
	t.resetLocked(now)
	return s
}

func (t *Tracker) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{
		Since:     t.since,
		Window:    now.Sub(t.since),
		Threshold: t.threshold,
		Total:     t.total,
		Protocols: make([]ProtocolCounter, 0, MaxProtocols),
	}
	for id := 1; id < MaxProtocols; id++ {
		c := t.protocols[id]
		if c.Packets == 0 {
			continue
		}
		s.Total.Timeouts += c.Timeouts
		s.Protocols = append(s.Protocols, ProtocolCounter{Protocol: uint8(id), Counter: c})
	}
	return s
}

func (t *Tracker) resetLocked(now time.Time) {
	t.total = Counter{}
	t.protocols = [MaxProtocols]Counter{}
	t.since = now
}

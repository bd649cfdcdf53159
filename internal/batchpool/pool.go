// Package batchpool owns the arena of pending batches a dispatch worker fills
// and flushes.
//
// Batches are addressed by Handle, a plain value that packs the arena slot
// with the slot's generation. Recycling a batch bumps its generation, so any
// handle still held elsewhere (a timer that fired in the same tick as the
// flush, for instance) fails Lookup instead of touching the slot's next
// occupant. Freed slots are reused in FIFO order to keep a just-freed slot
// idle for as long as possible.
package batchpool

import (
	"errors"
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/timerwheel"
	"github.com/eapache/queue"
)

// ErrStaleHandle is returned when a handle refers to a recycled or unknown slot.
var ErrStaleHandle = errors.New("stale batch handle")

// DestinationID identifies the downstream context a batch is flushed to.
type DestinationID uint32

// Handle references one batch. The zero Handle is never valid.
type Handle uint64

func makeHandle(idx, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx))
}

// Index returns the arena slot of the handle.
func (h Handle) Index() uint32 { return uint32(h) }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// String renders the handle as index/generation for logs.
func (h Handle) String() string {
	return fmt.Sprintf("%d/%d", h.Index(), h.Generation())
}

// Item is one work item, a reference to a packet buffer.
type Item struct {
	Buffer     uint32  // Buffer index in the owning buffer pool
	Src        [4]byte // IPv4 source address, used for fan-out
	Protocol   uint8   // Protocol identifier, used for latency accounting
	Payload    []byte  // Packet bytes
	AdmittedAt uint64  // Tick the item was admitted

	// Wall time of admission. Latency is measured from here, so it is not
	// rounded to the tick interval.
	AdmittedWall time.Time
}

// Batch is a group of items waiting to be flushed to one destination.
type Batch struct {
	Destination DestinationID
	Items       []Item
	CreatedAt   uint64 // Tick of the first item
	TimedOut    bool   // Set when the hold timer forced the flush

	// Snapshot of the destination config when the batch was opened
	Threshold int
	MaxHold   uint64

	// At most one outstanding timer per batch
	Timer    timerwheel.TimerID
	HasTimer bool
}

// Count returns the number of items in the batch.
func (b *Batch) Count() int { return len(b.Items) }

func (b *Batch) reset() {
	items := b.Items[:0]
	for i := range b.Items {
		b.Items[i] = Item{}
	}
	*b = Batch{Items: items}
}

type slot struct {
	gen   uint32
	live  bool
	batch Batch
}

// Pool is a generation-tagged arena of batches. It is not safe for
// concurrent use.
type Pool struct {
	slots []*slot
	free  *queue.Queue
	live  int
}

// New creates a pool with room for capacity batches before it grows.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		slots: make([]*slot, 0, capacity),
		free:  queue.New(),
	}
	return p
}

// Alloc opens a new empty batch for dest.
func (p *Pool) Alloc(dest DestinationID, now uint64) Handle {
	var idx uint32
	if p.free.Length() > 0 {
		idx = p.free.Remove().(uint32)
	} else {
		p.slots = append(p.slots, &slot{gen: 1})
		idx = uint32(len(p.slots) - 1)
	}

	s := p.slots[idx]
	s.live = true
	s.batch.Destination = dest
	s.batch.CreatedAt = now
	p.live++

	return makeHandle(idx, s.gen)
}

// Lookup resolves h. It reports false for stale or unknown handles.
func (p *Pool) Lookup(h Handle) (*Batch, bool) {
	idx := h.Index()
	if int(idx) >= len(p.slots) {
		return nil, false
	}
	s := p.slots[idx]
	if !s.live || s.gen != h.Generation() {
		return nil, false
	}
	return &s.batch, true
}

// Recycle frees the batch behind h and invalidates every copy of h.
func (p *Pool) Recycle(h Handle) error {
	if _, ok := p.Lookup(h); !ok {
		return fmt.Errorf("recycle %s: %w", h, ErrStaleHandle)
	}

	idx := h.Index()
	s := p.slots[idx]
	s.batch.reset()
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	p.free.Add(idx)
	p.live--
	return nil
}

// Len returns the number of live batches.
func (p *Pool) Len() int { return p.live }

// Cap returns the number of slots allocated so far.
func (p *Pool) Cap() int { return len(p.slots) }

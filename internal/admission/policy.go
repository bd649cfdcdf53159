// Package admission decides, per destination, whether a partially filled
// batch is flushed right away or held back behind a timer.
//
// ALGORITHM:
// For every burst of items assigned to a destination:
//
//  1. Open a batch if the destination has none, snapshotting its config.
//  2. Append items one by one. Whenever the batch reaches its size
//     threshold it is flushed immediately: its hold timer (if armed) is
//     stopped and its handle is queued for the dispatch loop. Remaining
//     items go into a fresh batch.
//  3. If a partial batch is left and it has no timer, arm one for
//     MaxHoldTicks.
//
// A single item is a burst of one. Evaluating a whole burst before arming
// means a burst that fills a batch exactly never touches the timer wheel.
//
// BATCH STATES:
//
//	EMPTY -> FILLING (timer may be armed) -> FLUSH_PENDING -> EMPTY (recycled)
//
// FLUSH_PENDING is entered by a threshold flush or by timer expiry. In both
// cases the destination forgets the batch, so later items open a new one.
//
// Policy, Registry and the batch pool belong to one dispatch worker and are
// not safe for concurrent use.
package admission

import (
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/timerwheel"
	"github.com/concave-dev/pfbatch/internal/waitq"
)

// Scheduler is the part of the wait queue the policy drives.
type Scheduler interface {
	StartTimer(h batchpool.Handle, delay uint64) timerwheel.TimerID
	StopTimer(id timerwheel.TimerID) error
	Push(h batchpool.Handle)
}

// Outcome reports what one admission call did.
type Outcome struct {
	Flushes       int              // Batches queued because they reached the threshold
	TimersStarted int              // Hold timers armed
	TimersStopped int              // Hold timers stopped by a threshold flush
	Open          batchpool.Handle // Batch left filling, zero if none
}

// Policy applies the admission algorithm.
type Policy struct {
	reg   *Registry
	pool  *batchpool.Pool
	sched Scheduler
}

// NewPolicy creates a policy over the given registry, pool and scheduler.
func NewPolicy(reg *Registry, pool *batchpool.Pool, sched Scheduler) *Policy {
	return &Policy{reg: reg, pool: pool, sched: sched}
}

// Admit admits a single item for dest at tick now.
func (p *Policy) Admit(dest batchpool.DestinationID, item batchpool.Item, now uint64) (Outcome, error) {
	return p.AdmitBurst(dest, []batchpool.Item{item}, now)
}

// AdmitBurst admits items for dest at tick now as one burst.
func (p *Policy) AdmitBurst(dest batchpool.DestinationID, items []batchpool.Item, now uint64) (Outcome, error) {
	return p.AdmitBurstAt(dest, items, now, time.Time{})
}

// AdmitBurstAt is AdmitBurst with every item also stamped with the wall
// time of admission.
func (p *Policy) AdmitBurstAt(dest batchpool.DestinationID, items []batchpool.Item, now uint64, wall time.Time) (Outcome, error) {
	var out Outcome

	d, ok := p.reg.Get(dest)
	if !ok {
		return out, fmt.Errorf("admit to destination %d: %w", dest, ErrUnknownDestination)
	}
	if len(items) == 0 {
		out.Open, _ = d.OpenBatch()
		return out, nil
	}

	var (
		h batchpool.Handle
		b *batchpool.Batch
	)
	for _, item := range items {
		if b == nil {
			h, b = p.openBatch(d, now)
		}

		item.AdmittedAt = now
		item.AdmittedWall = wall
		b.Items = append(b.Items, item)
		d.stats.Items++

		if b.Count() >= b.Threshold {
			if p.flush(d, h, b) {
				out.TimersStopped++
			}
			d.stats.ThresholdFlushes++
			out.Flushes++
			b = nil
		}
	}

	if b != nil {
		if !b.HasTimer {
			p.arm(d, h, b)
			out.TimersStarted++
		}
		out.Open = h
	}
	return out, nil
}

// FlushOpen queues the open batch of dest, if any, regardless of its size.
// It reports whether a batch was queued.
func (p *Policy) FlushOpen(dest batchpool.DestinationID) bool {
	d, ok := p.reg.Get(dest)
	if !ok || !d.hasOpen {
		return false
	}
	b, ok := p.pool.Lookup(d.open)
	if !ok {
		d.hasOpen = false
		d.hasTimer = false
		return false
	}
	p.flush(d, d.open, b)
	d.stats.ForcedFlushes++
	return true
}

// FlushAll queues every open batch. Used when a worker drains on shutdown.
func (p *Policy) FlushAll() int {
	n := 0
	for _, d := range p.reg.List() {
		if p.FlushOpen(d.ID) {
			n++
		}
	}
	return n
}

func (p *Policy) openBatch(d *Destination, now uint64) (batchpool.Handle, *batchpool.Batch) {
	if d.hasOpen {
		if b, ok := p.pool.Lookup(d.open); ok {
			return d.open, b
		}
		d.hasOpen = false
		d.hasTimer = false
	}

	h := p.pool.Alloc(d.ID, now)
	b, _ := p.pool.Lookup(h)
	b.Threshold = d.config.BatchSizeThreshold
	b.MaxHold = d.config.MaxHoldTicks

	d.open = h
	d.hasOpen = true
	d.stats.Batches++
	return h, b
}

// flush stops the batch timer, detaches the batch from its destination and
// queues it. It reports whether a timer was stopped.
func (p *Policy) flush(d *Destination, h batchpool.Handle, b *batchpool.Batch) bool {
	stopped := false
	if b.HasTimer {
		if err := p.sched.StopTimer(b.Timer); err != nil {
			panic(fmt.Sprintf("admission: stop timer of open batch %s: %v", h, err))
		}
		b.HasTimer = false
		d.stats.TimersStopped++
		stopped = true
	}

	d.hasTimer = false
	d.hasOpen = false
	p.sched.Push(h)
	return stopped
}

func (p *Policy) arm(d *Destination, h batchpool.Handle, b *batchpool.Batch) {
	id := p.sched.StartTimer(h, b.MaxHold)
	b.Timer = id
	b.HasTimer = true
	d.timer = id
	d.hasTimer = true
	d.stats.TimersStarted++
}

// Expiry returns the wait queue callback for batches whose hold timer fired.
// Each live batch is marked timed out and detached from its destination,
// clearing the destination's timer reference. Handles of batches recycled
// before their timer fired are dropped.
func Expiry(reg *Registry, pool *batchpool.Pool) waitq.ExpireFunc {
	return func(expired []batchpool.Handle) []batchpool.Handle {
		live := expired[:0]
		for _, h := range expired {
			b, ok := pool.Lookup(h)
			if !ok {
				continue
			}

			if d, ok := reg.Get(b.Destination); ok && d.hasOpen && d.open == h {
				d.hasTimer = false
				d.hasOpen = false
				d.stats.TimeoutFlushes++
			}
			b.TimedOut = true
			b.HasTimer = false
			live = append(live, h)
		}
		return live
	}
}

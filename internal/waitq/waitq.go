// Package waitq ties the timer wheel to the run queue: batches wait in the
// wheel until their hold time runs out and are then made ready in one bulk
// push.
//
// The single ExpireFunc registered at construction sees every handle that
// expired during an Advance call. It is responsible for marking the owning
// batches and returns the subset that is still live; stale handles, whose
// batch was recycled before the timer fired, are dropped there and never
// reach the run queue.
package waitq

import (
	"fmt"

	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/runq"
	"github.com/concave-dev/pfbatch/internal/timerwheel"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// ExpireFunc handles the expired set of one Advance call and returns the
// handles that should be queued for flushing.
type ExpireFunc func(expired []batchpool.Handle) []batchpool.Handle

// Config holds the geometry of the wheel and run queue.
type Config struct {
	SlotsPerRing  int          `json:"slotsPerRing"`
	RunQueueShift uint         `json:"runQueueShift"`
	Backing       runq.Backing `json:"backing"`
}

// DefaultConfig returns a 1024-slot wheel and a 256-entry ring.
func DefaultConfig() Config {
	return Config{
		SlotsPerRing:  timerwheel.DefaultSlotsPerRing,
		RunQueueShift: 8,
		Backing:       runq.Ring,
	}
}

// WaitQueue owns one TimerWheel and one RunQueue.
type WaitQueue struct {
	wheel  *timerwheel.Wheel[batchpool.Handle]
	runq   *runq.RunQueue[batchpool.Handle]
	expire ExpireFunc

	scratch []batchpool.Handle
}

// New creates a wait queue and registers its expiry callback.
func New(cfg Config, expire ExpireFunc) (*WaitQueue, error) {
	if expire == nil {
		return nil, fmt.Errorf("expiry callback is required")
	}
	if err := validate.ValidateField(cfg.RunQueueShift, "max=24"); err != nil {
		return nil, fmt.Errorf("invalid run queue shift %d: %w", cfg.RunQueueShift, err)
	}

	wheel, err := timerwheel.New[batchpool.Handle](timerwheel.Config{SlotsPerRing: cfg.SlotsPerRing})
	if err != nil {
		return nil, fmt.Errorf("failed to create timer wheel: %w", err)
	}

	return &WaitQueue{
		wheel:  wheel,
		runq:   runq.New[batchpool.Handle](cfg.RunQueueShift, runq.WithBacking(cfg.Backing)),
		expire: expire,
	}, nil
}

// StartTimer arms a hold timer for h.
func (wq *WaitQueue) StartTimer(h batchpool.Handle, delay uint64) timerwheel.TimerID {
	return wq.wheel.Start(h, delay)
}

// StopTimer disarms a hold timer. Stopping twice is an error.
func (wq *WaitQueue) StopTimer(id timerwheel.TimerID) error {
	return wq.wheel.Stop(id)
}

// Advance moves time forward by elapsed ticks, runs the expiry callback once
// with everything that expired and bulk-pushes the live handles onto the run
// queue. It returns the live expired set, which is only valid until the next
// call.
func (wq *WaitQueue) Advance(elapsed uint64) []batchpool.Handle {
	wq.scratch = wq.wheel.Advance(elapsed, wq.scratch[:0])
	if len(wq.scratch) == 0 {
		return nil
	}

	ready := wq.expire(wq.scratch)
	wq.runq.PushBulk(ready)
	return ready
}

// Push queues h for flushing.
func (wq *WaitQueue) Push(h batchpool.Handle) { wq.runq.Push(h) }

// Pop returns the next handle ready for flushing.
func (wq *WaitQueue) Pop() (batchpool.Handle, bool) { return wq.runq.Pop() }

// Len returns the number of ready handles.
func (wq *WaitQueue) Len() int { return wq.runq.Len() }

// Armed returns the number of outstanding hold timers.
func (wq *WaitQueue) Armed() int { return wq.wheel.Armed() }

// Now returns the wheel time in ticks.
func (wq *WaitQueue) Now() uint64 { return wq.wheel.Now() }

// RunQueueCap returns the current run queue capacity.
func (wq *WaitQueue) RunQueueCap() int { return wq.runq.Cap() }

// RunQueueGrows returns how often the run queue has reallocated.
func (wq *WaitQueue) RunQueueGrows() int { return wq.runq.Grows() }

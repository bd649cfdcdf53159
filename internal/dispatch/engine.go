// Package dispatch runs the pending-work scheduling loop.
//
// An Engine owns one registry, one batch pool and one wait queue. Nothing in
// those structures is locked: the engine is driven either directly (Tick,
// Submit, Configure from a single goroutine) or by Run, which serializes
// every external call through a command channel onto the goroutine that
// also drives the clock.
//
// PER TICK:
//
//  1. Convert elapsed wall time into ticks and advance the wait queue.
//     Expired batches are moved to the run queue in one bulk push.
//  2. Pop up to Budget ready batches. Each is delivered to the sink, its
//     items are recorded in the latency tracker, and the batch is recycled.
//  3. Whatever is left stays queued for the next tick.
//
// On shutdown every open batch is flushed and the run queue drained, so no
// admitted item is lost when the context is cancelled.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/clock"
	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/runq"
	"github.com/concave-dev/pfbatch/internal/validate"
	"github.com/concave-dev/pfbatch/internal/waitq"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("dispatch engine stopped")

const (
	DefaultTickInterval = time.Millisecond
	DefaultBudget       = 64
	DefaultPoolCapacity = 1024

	commandQueueSize = 256
)

// Config holds the tunables of one engine.
type Config struct {
	TickInterval  time.Duration    `json:"tickInterval"`
	Budget        int              `json:"budget" validate:"min=1"`
	SlotsPerRing  int              `json:"slotsPerRing" validate:"min=1,max=1048576"`
	RunQueueShift uint             `json:"runQueueShift" validate:"max=24"`
	Backing       runq.Backing     `json:"backing"`
	PoolCapacity  int              `json:"poolCapacity" validate:"min=1"`
	Limits        admission.Limits `json:"limits"`
	Defaults      admission.Config `json:"defaults"`
}

// DefaultConfig returns a 1ms tick, 64-batch budget engine.
func DefaultConfig() Config {
	wq := waitq.DefaultConfig()
	return Config{
		TickInterval:  DefaultTickInterval,
		Budget:        DefaultBudget,
		SlotsPerRing:  wq.SlotsPerRing,
		RunQueueShift: wq.RunQueueShift,
		Backing:       wq.Backing,
		PoolCapacity:  DefaultPoolCapacity,
		Limits:        admission.DefaultLimits(),
		Defaults:      admission.DefaultConfig(),
	}
}

// Validate checks the engine configuration.
func (c Config) Validate() error {
	if err := validate.ValidatePositiveTimeout(c.TickInterval, "tick interval"); err != nil {
		return err
	}
	if err := validate.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid dispatch config: %w", err)
	}
	return nil
}

// Counters are the cumulative totals of an engine.
type Counters struct {
	Ticks         uint64 `json:"ticks"`
	Expired       uint64 `json:"expired"`
	Released      uint64 `json:"released"`
	ReleasedItems uint64 `json:"releasedItems"`
	TimedOut      uint64 `json:"timedOut"`
	Admitted      uint64 `json:"admitted"`
	Stale         uint64 `json:"stale"`
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.Ticks += o.Ticks
	c.Expired += o.Expired
	c.Released += o.Released
	c.ReleasedItems += o.ReleasedItems
	c.TimedOut += o.TimedOut
	c.Admitted += o.Admitted
	c.Stale += o.Stale
}

// TickResult reports what one tick did.
type TickResult struct {
	Elapsed  uint64 // Ticks the wheel advanced
	Expired  int    // Batches moved to the run queue by timer expiry
	Released int    // Batches delivered to the sink
	Backlog  int    // Batches still queued after the budget ran out
}

// Snapshot is a read-only view of an engine.
type Snapshot struct {
	Worker        int              `json:"worker"`
	Now           uint64           `json:"now"`
	ArmedTimers   int              `json:"armedTimers"`
	Backlog       int              `json:"backlog"`
	RunQueueCap   int              `json:"runQueueCap"`
	RunQueueGrows int              `json:"runQueueGrows"`
	LiveBatches   int              `json:"liveBatches"`
	PoolCap       int              `json:"poolCap"`
	Counters      Counters         `json:"counters"`
	Destinations  []admission.Info `json:"destinations"`
}

// Engine is one dispatch worker.
type Engine struct {
	id       int
	cfg      Config
	reg      *admission.Registry
	pool     *batchpool.Pool
	wq       *waitq.WaitQueue
	policy   *admission.Policy
	ticker   *clock.Ticker
	src      clock.Source
	sink     pipeline.Sink
	tracker  *latency.Tracker
	counters Counters

	cmds    chan func()
	stopped chan struct{}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(src clock.Source) Option {
	return func(e *Engine) { e.src = src }
}

// WithLatency records delivered items into tracker.
func WithLatency(tracker *latency.Tracker) Option {
	return func(e *Engine) { e.tracker = tracker }
}

// WithWorkerID tags the engine in snapshots and logs.
func WithWorkerID(id int) Option {
	return func(e *Engine) { e.id = id }
}

// New creates an engine that delivers released batches to sink.
func New(cfg Config, sink pipeline.Sink, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = pipeline.Discard
	}

	reg, err := admission.NewRegistry(cfg.Limits, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	ticker, err := clock.NewTicker(cfg.TickInterval)
	if err != nil {
		return nil, err
	}

	pool := batchpool.New(cfg.PoolCapacity)
	wq, err := waitq.New(waitq.Config{
		SlotsPerRing:  cfg.SlotsPerRing,
		RunQueueShift: cfg.RunQueueShift,
		Backing:       cfg.Backing,
	}, admission.Expiry(reg, pool))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		reg:     reg,
		pool:    pool,
		wq:      wq,
		policy:  admission.NewPolicy(reg, pool, wq),
		ticker:  ticker,
		src:     clock.System{},
		sink:    sink,
		cmds:    make(chan func(), commandQueueSize),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ID returns the worker id.
func (e *Engine) ID() int { return e.id }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Register adds a destination. Call before Run or through Do.
func (e *Engine) Register(id batchpool.DestinationID, name string) error {
	_, err := e.reg.Register(id, name)
	return err
}

// Admit admits items for dest at the current tick, stamping them with the
// engine clock for latency accounting.
func (e *Engine) Admit(dest batchpool.DestinationID, items []batchpool.Item) (admission.Outcome, error) {
	out, err := e.policy.AdmitBurstAt(dest, items, e.wq.Now(), e.src.Now())
	if err == nil {
		e.counters.Admitted += uint64(len(items))
	}
	return out, err
}

// Configure applies a new batching config to dest.
func (e *Engine) Configure(dest batchpool.DestinationID, cfg admission.Config) error {
	if err := e.reg.Configure(dest, cfg); err != nil {
		return err
	}
	logging.Info("Worker %d: destination %d batch size %d, max hold %d ticks",
		e.id, dest, cfg.BatchSizeThreshold, cfg.MaxHoldTicks)
	return nil
}

// Apply resolves ref by id or name and applies settings to it. It reports
// whether this engine owns the destination.
func (e *Engine) Apply(ref string, s Settings) (bool, error) {
	d, ok := e.reg.Lookup(ref)
	if !ok {
		return false, nil
	}
	return true, e.Configure(d.ID, s.resolve(d.Config(), e.cfg.TickInterval))
}

// Tick runs one iteration of the dispatch loop at wall time now.
func (e *Engine) Tick(now time.Time) TickResult {
	var res TickResult

	res.Elapsed = e.ticker.Elapsed(now)
	if res.Elapsed > 0 {
		res.Expired = len(e.wq.Advance(res.Elapsed))
	}

	for res.Released < e.cfg.Budget {
		h, ok := e.wq.Pop()
		if !ok {
			break
		}
		if e.release(h, now) {
			res.Released++
		}
	}

	res.Backlog = e.wq.Len()
	e.counters.Ticks++
	e.counters.Expired += uint64(res.Expired)
	return res
}

// Drain flushes every open batch and releases everything queued,
// regardless of budget. It returns the number of batches released.
func (e *Engine) Drain() int {
	e.policy.FlushAll()

	now := e.src.Now()
	n := 0
	for {
		h, ok := e.wq.Pop()
		if !ok {
			return n
		}
		if e.release(h, now) {
			n++
		}
	}
}

// release delivers a queued batch and records the latency of its items as
// of wall time now.
func (e *Engine) release(h batchpool.Handle, now time.Time) bool {
	b, ok := e.pool.Lookup(h)
	if !ok {
		e.counters.Stale++
		return false
	}

	e.sink.Deliver(b.Destination, b.Items)

	if e.tracker != nil {
		for i := range b.Items {
			it := &b.Items[i]
			lat := now.Sub(it.AdmittedWall)
			if it.AdmittedWall.IsZero() || lat < 0 {
				lat = 0
			}
			e.tracker.Record(it.Protocol, lat, len(it.Payload))
		}
	}

	e.counters.Released++
	e.counters.ReleasedItems += uint64(b.Count())
	if b.TimedOut {
		e.counters.TimedOut++
	}

	if err := e.pool.Recycle(h); err != nil {
		panic(fmt.Sprintf("dispatch: recycle released batch %s: %v", h, err))
	}
	return true
}

// Snapshot returns a view of the engine state.
func (e *Engine) Snapshot() Snapshot {
	dests := e.reg.List()
	infos := make([]admission.Info, 0, len(dests))
	for _, d := range dests {
		infos = append(infos, d.Info(e.pool))
	}

	return Snapshot{
		Worker:        e.id,
		Now:           e.wq.Now(),
		ArmedTimers:   e.wq.Armed(),
		Backlog:       e.wq.Len(),
		RunQueueCap:   e.wq.RunQueueCap(),
		RunQueueGrows: e.wq.RunQueueGrows(),
		LiveBatches:   e.pool.Len(),
		PoolCap:       e.pool.Cap(),
		Counters:      e.counters,
		Destinations:  infos,
	}
}

// Run drives the engine until ctx is cancelled. Every tick interval it
// reads the clock and calls Tick; commands sent through Do run between
// ticks. On return all pending work has been drained.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()

	e.ticker.Elapsed(e.src.Now())
	logging.Debug("Worker %d: dispatch loop started (tick %v, budget %d)",
		e.id, e.cfg.TickInterval, e.cfg.Budget)

	for {
		select {
		case <-ctx.Done():
			e.drainCommands()
			e.Tick(e.src.Now())
			n := e.Drain()
			logging.Info("Worker %d: drained %d batches on shutdown", e.id, n)
			return nil
		case <-t.C:
			e.Tick(e.src.Now())
		case fn := <-e.cmds:
			fn()
		}
	}
}

func (e *Engine) drainCommands() {
	for {
		select {
		case fn := <-e.cmds:
			fn()
		default:
			return
		}
	}
}

// Do runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) Do(ctx context.Context, fn func(*Engine)) error {
	done := make(chan struct{})
	cmd := func() {
		fn(e)
		close(done)
	}

	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-e.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit admits items for dest on the engine goroutine.
func (e *Engine) Submit(ctx context.Context, dest batchpool.DestinationID, items []batchpool.Item) error {
	var err error
	if doErr := e.Do(ctx, func(e *Engine) { _, err = e.Admit(dest, items) }); doErr != nil {
		return doErr
	}
	return err
}

// Stats returns a snapshot taken on the engine goroutine.
func (e *Engine) Stats(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := e.Do(ctx, func(e *Engine) { s = e.Snapshot() })
	return s, err
}

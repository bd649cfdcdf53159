package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/affinity"
	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/clock"
	"github.com/concave-dev/pfbatch/internal/logging"
)

// Settings is a batching change expressed the way operators write it. The
// hold time is given either in ticks or as a duration converted with the
// engine's tick interval; when both are zero the current hold is kept.
type Settings struct {
	BatchSize    int           `json:"batchSize"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	MaxHoldTicks uint64        `json:"maxHoldTicks,omitempty"`
}

func (s Settings) resolve(current admission.Config, interval time.Duration) admission.Config {
	cfg := admission.Config{
		BatchSizeThreshold: s.BatchSize,
		MaxHoldTicks:       current.MaxHoldTicks,
	}
	switch {
	case s.MaxHoldTicks > 0:
		cfg.MaxHoldTicks = s.MaxHoldTicks
	case s.Timeout > 0:
		cfg.MaxHoldTicks = clock.DurationToTicks(s.Timeout, interval)
	}
	return cfg
}

// Group runs several engines and routes destinations to them. Destination
// id d belongs to worker d % len(workers).
type Group struct {
	engines []*Engine
	pin     bool
}

// NewGroup creates a group over engines. When pin is set each worker is
// bound to its own CPU while it runs.
func NewGroup(engines []*Engine, pin bool) (*Group, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("dispatch group needs at least one engine")
	}
	return &Group{engines: engines, pin: pin}, nil
}

// Engines returns the workers.
func (g *Group) Engines() []*Engine { return g.engines }

// Owner returns the engine that owns dest.
func (g *Group) Owner(dest batchpool.DestinationID) *Engine {
	return g.engines[int(dest)%len(g.engines)]
}

// Register adds dest to its owning engine. Names are unique across the
// whole group. Call before Run.
func (g *Group) Register(dest batchpool.DestinationID, name string) error {
	for _, e := range g.engines {
		if d, ok := e.reg.Lookup(name); ok && d.Name == name {
			return fmt.Errorf("destination name %q used by %d: %w", name, d.ID, admission.ErrDuplicateDestination)
		}
	}
	return g.Owner(dest).Register(dest, name)
}

// Run starts every engine and blocks until all of them have drained after
// ctx is cancelled.
func (g *Group) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, e := range g.engines {
		wg.Add(1)
		go func(i int, e *Engine) {
			defer wg.Done()
			if g.pin {
				cpu := affinity.CPUFor(i)
				if err := affinity.Pin(cpu); err != nil {
					logging.Warn("Worker %d: failed to pin to cpu %d: %v", e.ID(), cpu, err)
				} else {
					logging.Debug("Worker %d: pinned to cpu %d", e.ID(), cpu)
				}
			}
			if err := e.Run(ctx); err != nil {
				logging.Error("Worker %d: dispatch loop failed: %v", e.ID(), err)
			}
		}(i, e)
	}
	wg.Wait()
}

// Submit admits items on the engine owning dest.
func (g *Group) Submit(ctx context.Context, dest batchpool.DestinationID, items []batchpool.Item) error {
	return g.Owner(dest).Submit(ctx, dest, items)
}

// Apply applies settings to the destination ref (id or name), wherever it
// lives. It returns admission.ErrUnknownDestination if no engine owns it.
func (g *Group) Apply(ctx context.Context, ref string, s Settings) error {
	for _, e := range g.engines {
		var (
			owned bool
			err   error
		)
		if doErr := e.Do(ctx, func(e *Engine) { owned, err = e.Apply(ref, s) }); doErr != nil {
			return doErr
		}
		if owned {
			return err
		}
	}
	return fmt.Errorf("destination %q: %w", ref, admission.ErrUnknownDestination)
}

// Destination returns the info of ref.
func (g *Group) Destination(ctx context.Context, ref string) (admission.Info, error) {
	for _, e := range g.engines {
		var (
			info  admission.Info
			found bool
		)
		err := e.Do(ctx, func(e *Engine) {
			if d, ok := e.reg.Lookup(ref); ok {
				info, found = d.Info(e.pool), true
			}
		})
		if err != nil {
			return admission.Info{}, err
		}
		if found {
			return info, nil
		}
	}
	return admission.Info{}, fmt.Errorf("destination %q: %w", ref, admission.ErrUnknownDestination)
}

// Snapshots returns one snapshot per engine.
func (g *Group) Snapshots(ctx context.Context) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(g.engines))
	for _, e := range g.engines {
		s, err := e.Stats(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Destinations returns every destination ordered by worker, then id.
func (g *Group) Destinations(ctx context.Context) ([]admission.Info, error) {
	snaps, err := g.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	var out []admission.Info
	for _, s := range snaps {
		out = append(out, s.Destinations...)
	}
	return out, nil
}

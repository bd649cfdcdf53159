// Package traffic generates synthetic packets for a daemon without a real
// packet source.
//
// Each burst draws random IPv4 sources, protocol ids and payloads, routes
// every item to a destination by the last octet of its source address, and
// submits one sub-burst per destination. Bursts are spaced so that the
// average rate matches the configured items per second.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// Submitter accepts a burst for one destination.
type Submitter interface {
	Submit(ctx context.Context, dest batchpool.DestinationID, items []batchpool.Item) error
}

// Config describes the generated load.
type Config struct {
	Rate         int                       `validate:"min=1"`          // Items per second
	Burst        int                       `validate:"min=1,max=4096"` // Items per burst
	PayloadSize  int                       `validate:"min=0,max=9000"` // Bytes per item
	Destinations []batchpool.DestinationID `validate:"min=1"`
	Seed         uint64
}

// Stats counts generated traffic.
type Stats struct {
	Bursts    uint64 `json:"bursts"`
	Items     uint64 `json:"items"`
	Rejected  uint64 `json:"rejected"`
	LastError string `json:"lastError,omitempty"`
}

// Generator produces bursts.
type Generator struct {
	cfg      Config
	sub      Submitter
	rng      *rand.Rand
	interval time.Duration
	buffer   uint32

	bursts   atomic.Uint64
	items    atomic.Uint64
	rejected atomic.Uint64
	lastErr  atomic.Value
}

// New creates a generator.
func New(cfg Config, sub Submitter) (*Generator, error) {
	if err := validate.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid traffic config: %w", err)
	}
	if sub == nil {
		return nil, errors.New("traffic generator needs a submitter")
	}

	interval := time.Duration(int64(time.Second) * int64(cfg.Burst) / int64(cfg.Rate))
	if interval <= 0 {
		interval = time.Microsecond
	}

	return &Generator{
		cfg:      cfg,
		sub:      sub,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		interval: interval,
	}, nil
}

// Interval returns the spacing between bursts.
func (g *Generator) Interval() time.Duration { return g.interval }

// Next builds one burst and groups it by destination. Not safe for
// concurrent use.
func (g *Generator) Next() map[batchpool.DestinationID][]batchpool.Item {
	out := make(map[batchpool.DestinationID][]batchpool.Item, len(g.cfg.Destinations))
	for i := 0; i < g.cfg.Burst; i++ {
		item := g.item()
		dest := g.cfg.Destinations[pipeline.Pick(item.Src, len(g.cfg.Destinations))]
		out[dest] = append(out[dest], item)
	}
	return out
}

func (g *Generator) item() batchpool.Item {
	g.buffer++

	var src [4]byte
	addr := g.rng.Uint32()
	src[0], src[1], src[2], src[3] = 10, byte(addr>>16), byte(addr>>8), byte(addr)

	payload := make([]byte, g.cfg.PayloadSize)
	for i := 0; i+8 <= len(payload); i += 8 {
		v := g.rng.Uint64()
		for j := 0; j < 8; j++ {
			payload[i+j] = byte(v >> (8 * j))
		}
	}

	return batchpool.Item{
		Buffer:   g.buffer,
		Src:      src,
		Protocol: uint8(1 + g.rng.IntN(latency.MaxProtocols-1)),
		Payload:  payload,
	}
}

// Run submits bursts until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	logging.Info("Traffic generator started: %d items/s in bursts of %d to %d destinations",
		g.cfg.Rate, g.cfg.Burst, len(g.cfg.Destinations))

	t := time.NewTicker(g.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Traffic generator stopped after %d items", g.items.Load())
			return nil
		case <-t.C:
			g.submit(ctx, g.Next())
		}
	}
}

func (g *Generator) submit(ctx context.Context, burst map[batchpool.DestinationID][]batchpool.Item) {
	g.bursts.Add(1)
	for dest, items := range burst {
		if err := g.sub.Submit(ctx, dest, items); err != nil {
			if ctx.Err() != nil {
				return
			}
			g.rejected.Add(uint64(len(items)))
			g.lastErr.Store(err.Error())
			logging.Debug("Traffic burst for destination %d rejected: %v", dest, err)
			continue
		}
		g.items.Add(uint64(len(items)))
	}
}

// Stats returns the generator counters.
func (g *Generator) Stats() Stats {
	s := Stats{
		Bursts:   g.bursts.Load(),
		Items:    g.items.Load(),
		Rejected: g.rejected.Load(),
	}
	if msg, ok := g.lastErr.Load().(string); ok {
		s.LastError = msg
	}
	return s
}

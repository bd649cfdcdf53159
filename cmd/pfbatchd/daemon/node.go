package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/gossip"
	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/traffic"
)

// node is the dispatch side of a daemon: the worker group, the flush
// pipeline behind it and the optional synthetic load in front of it.
//
// Released batches go through the router to the fold stage of their
// destination, then through one shared dispatcher that splits them by
// source address over one egress stage per worker.
type node struct {
	group   *dispatch.Group
	router  *pipeline.Router
	stages  []*pipeline.Stage
	egress  []*pipeline.Stage
	tracker *latency.Tracker
	traffic *traffic.Generator // Nil when --rate is 0
}

// buildNode creates one engine per worker, registers the startup
// destinations and gives each of them its own fold stage.
func buildNode(cfg *config.Config, started time.Time) (*node, error) {
	engineCfg, err := cfg.DispatchConfig()
	if err != nil {
		return nil, err
	}

	n := &node{
		router:  pipeline.NewRouter(nil),
		tracker: latency.NewTracker(latency.DefaultTimeoutThreshold, started),
	}

	engines := make([]*dispatch.Engine, cfg.Workers)
	for i := range engines {
		e, err := dispatch.New(engineCfg, n.router,
			dispatch.WithWorkerID(i),
			dispatch.WithLatency(n.tracker))
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		engines[i] = e
	}

	n.group, err = dispatch.NewGroup(engines, cfg.PinCPUs)
	if err != nil {
		return nil, err
	}

	egressSinks := make([]pipeline.Sink, cfg.Workers)
	for i := range egressSinks {
		stage := pipeline.NewStage(pipeline.Descriptor{Name: fmt.Sprintf("egress-%d", i)})
		n.egress = append(n.egress, stage)
		egressSinks[i] = stage
	}
	fanout, err := pipeline.NewDispatcher(egressSinks...)
	if err != nil {
		return nil, err
	}

	for _, id := range config.DestinationIDs(cfg.Destinations) {
		name := config.DestinationName(id)
		if err := n.group.Register(id, name); err != nil {
			return nil, fmt.Errorf("failed to register destination %s: %w", name, err)
		}
		stage := pipeline.NewStage(pipeline.Descriptor{Name: name, Next: fanout})
		n.router.Handle(id, stage)
		n.stages = append(n.stages, stage)
	}

	if cfg.TrafficEnabled() {
		n.traffic, err = traffic.New(cfg.TrafficConfig(uint64(started.UnixNano())), n.group)
		if err != nil {
			return nil, err
		}
	}

	return n, nil
}

// stageStats lists the fold stages in destination order, followed by the
// egress stages.
func (n *node) stageStats() []pipeline.StageStats {
	out := make([]pipeline.StageStats, 0, len(n.stages)+len(n.egress))
	for _, s := range n.stages {
		out = append(out, s.Stats())
	}
	for _, s := range n.egress {
		out = append(out, s.Stats())
	}
	return out
}

func (n *node) trafficStats() traffic.Stats {
	if n.traffic == nil {
		return traffic.Stats{}
	}
	return n.traffic.Stats()
}

// applyBroadcast applies a batch config received over gossip to the local
// workers.
func (n *node) applyBroadcast(ctx context.Context, bc gossip.BatchConfig) error {
	err := n.group.Apply(ctx, bc.Destination, dispatch.Settings{
		BatchSize:    bc.BatchSize,
		Timeout:      bc.Timeout,
		MaxHoldTicks: bc.MaxHoldTicks,
	})
	if errors.Is(err, admission.ErrUnknownDestination) {
		return gossip.ErrNotOwned
	}
	return err
}

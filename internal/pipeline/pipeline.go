// Package pipeline provides the flush targets that receive released batches.
//
// Every processing stage is the same generic Stage, parameterized by a
// Descriptor that names it, supplies its per-item fold and points at the
// next sink in the chain. Stages differ only in their descriptors, so adding
// a new protocol stage is a matter of declaring one more Descriptor.
//
// ROUTING:
// Dispatcher picks a downstream index from the last octet of an item's
// source address (src[3] % n). It is used on the ingress side to choose the
// destination an item is admitted to, and as a Sink it fans a batch out to
// its targets by the same rule.
//
// OWNERSHIP:
// A Sink must not retain the items slice or any item's payload after
// Deliver returns. The dispatch loop recycles the batch right after the
// call and its storage is reused for the next batch.
package pipeline

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/concave-dev/pfbatch/internal/batchpool"
)

// TrailerSize is the number of payload bytes excluded from the fold.
const TrailerSize = 16

// Sink consumes a released batch for one destination.
type Sink interface {
	Deliver(dest batchpool.DestinationID, items []batchpool.Item)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(dest batchpool.DestinationID, items []batchpool.Item)

// Deliver calls f.
func (f SinkFunc) Deliver(dest batchpool.DestinationID, items []batchpool.Item) {
	f(dest, items)
}

// Discard drops every batch.
var Discard Sink = SinkFunc(func(batchpool.DestinationID, []batchpool.Item) {})

// FoldFunc reduces one payload to a 64-bit value.
type FoldFunc func(payload []byte) uint64

// Descriptor is the capability set of a stage.
type Descriptor struct {
	Name string
	Fold FoldFunc // nil selects SumFold
	Next Sink     // nil ends the chain
}

// SumFold adds up the payload as little-endian 64-bit words, leaving out
// the trailer. A short final word is zero-padded.
func SumFold(payload []byte) uint64 {
	if len(payload) <= TrailerSize {
		return 0
	}
	body := payload[:len(payload)-TrailerSize]

	var sum uint64
	for len(body) >= 8 {
		sum += binary.LittleEndian.Uint64(body)
		body = body[8:]
	}
	if len(body) > 0 {
		var tail [8]byte
		copy(tail[:], body)
		sum += binary.LittleEndian.Uint64(tail[:])
	}
	return sum
}

// StageStats is a snapshot of a stage's counters.
type StageStats struct {
	Name    string `json:"name"`
	Batches uint64 `json:"batches"`
	Items   uint64 `json:"items"`
	Digest  uint64 `json:"digest"`
}

// Stage folds every item of a batch and forwards the batch to its next sink.
type Stage struct {
	desc    Descriptor
	batches atomic.Uint64
	items   atomic.Uint64
	digest  atomic.Uint64
}

// NewStage creates a stage from its descriptor.
func NewStage(desc Descriptor) *Stage {
	if desc.Fold == nil {
		desc.Fold = SumFold
	}
	return &Stage{desc: desc}
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.desc.Name }

// Deliver folds items and forwards them.
func (s *Stage) Deliver(dest batchpool.DestinationID, items []batchpool.Item) {
	var sum uint64
	for i := range items {
		sum += s.desc.Fold(items[i].Payload)
	}
	s.digest.Add(sum)
	s.items.Add(uint64(len(items)))
	s.batches.Add(1)

	if s.desc.Next != nil {
		s.desc.Next.Deliver(dest, items)
	}
}

// Stats returns the stage counters.
func (s *Stage) Stats() StageStats {
	return StageStats{
		Name:    s.desc.Name,
		Batches: s.batches.Load(),
		Items:   s.items.Load(),
		Digest:  s.digest.Load(),
	}
}

// Dispatcher fans items out by the last octet of their source address.
// It holds no per-call state, so concurrent and nested Deliver calls never
// wait on each other.
type Dispatcher struct {
	targets []Sink
}

// NewDispatcher creates a dispatcher over targets.
func NewDispatcher(targets ...Sink) (*Dispatcher, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("dispatcher needs at least one target")
	}
	return &Dispatcher{targets: targets}, nil
}

// Pick returns the target index for src.
func Pick(src [4]byte, n int) int {
	return int(src[3]) % n
}

// Route returns the target index for item.
func (d *Dispatcher) Route(item batchpool.Item) int {
	return Pick(item.Src, len(d.targets))
}

// Deliver splits items per target, preserving their order, and delivers
// every non-empty group.
func (d *Dispatcher) Deliver(dest batchpool.DestinationID, items []batchpool.Item) {
	groups := make([][]batchpool.Item, len(d.targets))
	for _, item := range items {
		idx := d.Route(item)
		groups[idx] = append(groups[idx], item)
	}
	for i, group := range groups {
		if len(group) > 0 {
			d.targets[i].Deliver(dest, group)
		}
	}
}

// Router delivers each batch to the sink registered for its destination.
type Router struct {
	mu       sync.RWMutex
	routes   map[batchpool.DestinationID]Sink
	fallback Sink
}

// NewRouter creates a router. Batches for unrouted destinations go to
// fallback, or are dropped when fallback is nil.
func NewRouter(fallback Sink) *Router {
	if fallback == nil {
		fallback = Discard
	}
	return &Router{routes: make(map[batchpool.DestinationID]Sink), fallback: fallback}
}

// Handle registers sink for dest, replacing any previous one.
func (r *Router) Handle(dest batchpool.DestinationID, sink Sink) {
	r.mu.Lock()
	r.routes[dest] = sink
	r.mu.Unlock()
}

// Deliver forwards to the destination's sink.
func (r *Router) Deliver(dest batchpool.DestinationID, items []batchpool.Item) {
	r.mu.RLock()
	sink, ok := r.routes[dest]
	r.mu.RUnlock()
	if !ok {
		sink = r.fallback
	}
	sink.Deliver(dest, items)
}

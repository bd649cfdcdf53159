package admission

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/timerwheel"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// ErrUnknownDestination is returned for destination ids that were never registered.
var ErrUnknownDestination = errors.New("unknown destination")

// ErrDuplicateDestination is returned when an id or name is already taken.
var ErrDuplicateDestination = errors.New("destination already registered")

// Stats counts what the policy did for one destination.
type Stats struct {
	Items            uint64 `json:"items"`
	Batches          uint64 `json:"batches"`
	ThresholdFlushes uint64 `json:"thresholdFlushes"`
	TimeoutFlushes   uint64 `json:"timeoutFlushes"`
	ForcedFlushes    uint64 `json:"forcedFlushes"`
	TimersStarted    uint64 `json:"timersStarted"`
	TimersStopped    uint64 `json:"timersStopped"`
}

// Destination is the mutable record of one downstream target. It tracks the
// batch currently being filled and the hold timer armed for it, if any.
type Destination struct {
	ID   batchpool.DestinationID
	Name string

	config Config

	open     batchpool.Handle
	hasOpen  bool
	timer    timerwheel.TimerID
	hasTimer bool

	stats Stats
}

// Config returns the config applied to the next batch opened.
func (d *Destination) Config() Config { return d.config }

// Timer returns the outstanding hold timer, if any.
func (d *Destination) Timer() (timerwheel.TimerID, bool) { return d.timer, d.hasTimer }

// OpenBatch returns the batch currently being filled, if any.
func (d *Destination) OpenBatch() (batchpool.Handle, bool) { return d.open, d.hasOpen }

// Stats returns the destination counters.
func (d *Destination) Stats() Stats { return d.stats }

// Info is a read-only view of a destination for the API.
type Info struct {
	ID         batchpool.DestinationID `json:"id"`
	Name       string                  `json:"name"`
	Config     Config                  `json:"config"`
	OpenItems  int                     `json:"openItems"`
	TimerArmed bool                    `json:"timerArmed"`
	Stats      Stats                   `json:"stats"`
}

// Info snapshots the destination. pool resolves the open batch size.
func (d *Destination) Info(pool *batchpool.Pool) Info {
	info := Info{
		ID:         d.ID,
		Name:       d.Name,
		Config:     d.config,
		TimerArmed: d.hasTimer,
		Stats:      d.stats,
	}
	if d.hasOpen && pool != nil {
		if b, ok := pool.Lookup(d.open); ok {
			info.OpenItems = b.Count()
		}
	}
	return info
}

// Registry owns every destination of one dispatch worker.
type Registry struct {
	limits   Limits
	defaults Config
	dests    map[batchpool.DestinationID]*Destination
}

// NewRegistry creates an empty registry. defaults is applied to newly
// registered destinations and must satisfy limits.
func NewRegistry(limits Limits, defaults Config) (*Registry, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := limits.Check(defaults); err != nil {
		return nil, fmt.Errorf("invalid default destination config: %w", err)
	}

	return &Registry{
		limits:   limits,
		defaults: defaults,
		dests:    make(map[batchpool.DestinationID]*Destination),
	}, nil
}

// Limits returns the accepted batch size range.
func (r *Registry) Limits() Limits { return r.limits }

// Register adds a destination with the default config.
func (r *Registry) Register(id batchpool.DestinationID, name string) (*Destination, error) {
	if err := validate.NameFormat("destination", name); err != nil {
		return nil, err
	}
	if _, exists := r.dests[id]; exists {
		return nil, fmt.Errorf("destination %d: %w", id, ErrDuplicateDestination)
	}
	if d, exists := r.byName(name); exists {
		return nil, fmt.Errorf("destination name %q used by %d: %w", name, d.ID, ErrDuplicateDestination)
	}

	d := &Destination{ID: id, Name: name, config: r.defaults}
	r.dests[id] = d
	return d, nil
}

// Get returns the destination with the given id.
func (r *Registry) Get(id batchpool.DestinationID) (*Destination, bool) {
	d, ok := r.dests[id]
	return d, ok
}

// Lookup resolves a destination by id, or by name when ref is not numeric.
func (r *Registry) Lookup(ref string) (*Destination, bool) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return r.Get(batchpool.DestinationID(id))
	}
	return r.byName(ref)
}

// Names are unique, so at most one destination matches.
func (r *Registry) byName(name string) (*Destination, bool) {
	for _, d := range r.dests {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Configure validates cfg and stores it for the destination. The change
// takes effect on the next batch opened; a rejected change leaves the
// current settings untouched.
func (r *Registry) Configure(id batchpool.DestinationID, cfg Config) error {
	d, ok := r.dests[id]
	if !ok {
		return fmt.Errorf("configure destination %d: %w", id, ErrUnknownDestination)
	}
	if err := r.limits.Check(cfg); err != nil {
		return fmt.Errorf("configure destination %s: %w", d.Name, err)
	}
	d.config = cfg
	return nil
}

// List returns the destinations ordered by id.
func (r *Registry) List() []*Destination {
	out := make([]*Destination, 0, len(r.dests))
	for _, d := range r.dests {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered destinations.
func (r *Registry) Len() int { return len(r.dests) }

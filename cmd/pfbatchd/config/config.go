// Package config holds the pfbatchd daemon configuration.
//
// Flags are bound straight into Global. The daemon runs three networked
// pieces, each with its own address:
//
//   - Gossip (--serf): Serf membership and batch config broadcasts over
//     UDP+TCP on one port.
//   - Admin API (--bind): the gin HTTP server, loopback by default.
//   - Dispatch workers: not networked; tuned by --workers, --tick and the
//     batching flags.
//
// EXPLICIT OVERRIDE TRACKING:
// A port the operator named is bound exactly or the daemon fails. A port
// taken from the defaults walks up to the next free one, bounded by
// MAX_PORTS, so several daemons can share a host without flags.
package config

import (
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/clock"
	configDefaults "github.com/concave-dev/pfbatch/internal/config"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/runq"
	"github.com/concave-dev/pfbatch/internal/traffic"
)

// ConfigField represents a configuration field that can be explicitly set
type ConfigField int

const (
	SerfField ConfigField = iota
	APIAddrField
	LogFileField
)

const (
	DefaultSerf     = configDefaults.DefaultBindAddr + ":4300"
	DefaultAPI      = "127.0.0.1:8080"
	DefaultLogLevel = configDefaults.DefaultLogLevel
	DefaultMaxPorts = 100

	DefaultWorkers      = 1
	DefaultBudget       = 64
	DefaultSlots        = 1024
	DefaultRunQueue     = 8
	DefaultBacking      = "ring"
	DefaultMaxBurst     = 256
	DefaultDestinations = 4
	DefaultRate         = 100_000
	DefaultBurst        = 32
	DefaultPayload      = 64
)

// Config holds all daemon configuration values
type Config struct {
	SerfAddr   string   // Gossip bind address
	SerfPort   int      // Gossip bind port
	APIAddr    string   // Admin API bind address
	APIPort    int      // Admin API bind port
	NodeName   string   // Name of this daemon in the fleet
	JoinAddrs  []string // Fleet seeds to join
	StrictJoin bool     // Exit if the fleet join fails
	NoGossip   bool     // Run alone without Serf
	LogLevel   string   // DEBUG, INFO, WARN, ERROR
	LogFile    string   // Write logs here instead of stdout
	MaxPorts   int      // Ports to try during discovery

	Workers       int           // Dispatch workers
	Tick          time.Duration // Timer wheel tick
	Budget        int           // Batches released per worker per tick
	Slots         int           // Timer wheel slots
	RunQueueShift uint          // Initial run queue capacity is 1<<shift
	Backing       string        // ring or stack
	MaxBurst      int           // Largest accepted batch size
	PinCPUs       bool          // Bind each worker to its own CPU

	Destinations int           // Destinations registered at startup
	BatchSize    int           // Initial batch size threshold
	Timeout      time.Duration // Initial max hold time

	Rate    int // Synthetic items per second, 0 disables the generator
	Burst   int // Items per synthetic burst
	Payload int // Bytes per synthetic item

	serfExplicitlySet    bool
	apiAddrExplicitlySet bool
	logFileExplicitlySet bool
}

// Global configuration instance
var Global Config

// SetExplicitlySet marks a configuration field as explicitly set by the user.
func (c *Config) SetExplicitlySet(field ConfigField, value bool) {
	switch field {
	case SerfField:
		c.serfExplicitlySet = value
	case APIAddrField:
		c.apiAddrExplicitlySet = value
	case LogFileField:
		c.logFileExplicitlySet = value
	}
}

// IsExplicitlySet returns whether a configuration field was explicitly set by the user.
func (c *Config) IsExplicitlySet(field ConfigField) bool {
	switch field {
	case SerfField:
		return c.serfExplicitlySet
	case APIAddrField:
		return c.apiAddrExplicitlySet
	case LogFileField:
		return c.logFileExplicitlySet
	}
	return false
}

// TrafficEnabled reports whether the synthetic generator runs.
func (c *Config) TrafficEnabled() bool {
	return c.Rate > 0
}

// TrafficConfig builds the generator config for the registered
// destinations.
func (c *Config) TrafficConfig(seed uint64) traffic.Config {
	return traffic.Config{
		Rate:         c.Rate,
		Burst:        c.Burst,
		PayloadSize:  c.Payload,
		Destinations: DestinationIDs(c.Destinations),
		Seed:         seed,
	}
}

// DispatchConfig builds the per-worker engine config. Backing must already
// be validated.
func (c *Config) DispatchConfig() (dispatch.Config, error) {
	backing, err := runq.ParseBacking(c.Backing)
	if err != nil {
		return dispatch.Config{}, err
	}

	cfg := dispatch.DefaultConfig()
	cfg.TickInterval = c.Tick
	cfg.Budget = c.Budget
	cfg.SlotsPerRing = c.Slots
	cfg.RunQueueShift = c.RunQueueShift
	cfg.Backing = backing
	cfg.Limits = admission.Limits{
		MinBatchSize: admission.DefaultMinBatchSize,
		MaxBurst:     c.MaxBurst,
	}
	cfg.Defaults = admission.Config{
		BatchSizeThreshold: c.BatchSize,
		MaxHoldTicks:       clock.DurationToTicks(c.Timeout, c.Tick),
	}
	return cfg, nil
}

// DestinationIDs returns the ids registered at startup, 1 through n.
func DestinationIDs(n int) []batchpool.DestinationID {
	ids := make([]batchpool.DestinationID, n)
	for i := range ids {
		ids[i] = batchpool.DestinationID(i + 1)
	}
	return ids
}

// DestinationName is the name a startup destination is registered under.
func DestinationName(id batchpool.DestinationID) string {
	return fmt.Sprintf("fold-%d", id)
}

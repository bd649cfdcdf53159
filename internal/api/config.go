package api

import (
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/api/handlers"
	"github.com/concave-dev/pfbatch/internal/config"
	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// Config holds everything the admin API serves. Dispatch and Latency are
// required; the gossip fields stay nil on a daemon running alone.
type Config struct {
	BindAddr string // HTTP server bind address
	BindPort int    // HTTP server bind port
	Version  string // Reported by /health
	Started  time.Time

	Dispatch    handlers.Dispatcher
	Latency     *latency.Tracker
	Stats       handlers.StatsSource // Dispatch is filled in from Dispatch when unset
	Resources   *resources.Cache     // Fleet resource collection
	Membership  handlers.Membership  // Nil without gossip
	Broadcaster handlers.Broadcaster // Nil without gossip
}

// DefaultConfig returns a loopback config on the default API port. The
// daemon fills in the components.
func DefaultConfig() *Config {
	return &Config{
		BindAddr: "127.0.0.1",
		BindPort: config.DefaultAPIPort,
		Started:  time.Now(),
	}
}

// Validate checks the network settings and that required components are
// wired.
func (c *Config) Validate() error {
	if err := validate.ValidateRequiredString(c.BindAddr, "bind address"); err != nil {
		return err
	}
	if err := validate.ValidatePortRange(c.BindPort); err != nil {
		return fmt.Errorf("bind port validation failed: %w", err)
	}
	if c.Dispatch == nil {
		return fmt.Errorf("dispatch workers cannot be nil")
	}
	if c.Latency == nil {
		return fmt.Errorf("latency tracker cannot be nil")
	}
	return nil
}

// Package config holds default values shared by the pfbatch daemon, its
// gossip layer and the CLI.
package config

import "time"

const (
	// DefaultBindAddr binds every listener on all interfaces
	DefaultBindAddr = "0.0.0.0"

	// DefaultLogLevel is the level used when no --log-level is given
	DefaultLogLevel = "INFO"

	// DefaultGossipPort is the Serf bind port
	DefaultGossipPort = 4300

	// DefaultAPIPort is the admin HTTP API port
	DefaultAPIPort = 8080

	// DefaultTickInterval is the dispatch loop tick
	DefaultTickInterval = time.Millisecond

	// DefaultBatchSize is the batch size threshold of new destinations
	DefaultBatchSize = 32

	// DefaultMaxHold is how long a partial batch may wait before it is
	// released regardless of size
	DefaultMaxHold = 10 * time.Millisecond
)

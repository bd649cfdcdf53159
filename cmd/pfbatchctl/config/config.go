// Package config holds the pfbatchctl flag values.
package config

import "github.com/concave-dev/pfbatch/internal/version"

const (
	DefaultAPIAddr = "127.0.0.1:8080" // Default daemon API address
)

// Version is the pfbatchctl version
var Version = version.PfbatchctlVersion

// Global holds the global CLI configuration
var Global struct {
	APIAddr  string // Address of the pfbatchd API server
	LogLevel string // Log level for CLI operations
	Timeout  int    // Connection timeout in seconds
	Verbose  bool   // Show verbose output
	Output   string // Output format: table, json
}

// Dest holds the dest command configuration
var Dest struct {
	Watch     bool   // Refresh dest ls every 2 seconds
	BatchSize int    // dest set --batch-size
	Timeout   string // dest set --timeout, e.g. "10ms"
	HoldTicks uint64 // dest set --hold-ticks, wins over --timeout
	Broadcast bool   // dest set --broadcast
}

// Stats holds the stats and latency command configuration
var Stats struct {
	Watch bool // Refresh every 2 seconds
	Reset bool // latency --reset: show and clear in one step
}

// Fleet holds the members and resources command configuration
var Fleet struct {
	Watch   bool   // Refresh every 2 seconds
	Status  string // members --status filter: alive, failed, left
	Sort    string // resources --sort: name, memory, uptime
	NoCache bool   // resources --no-cache
}

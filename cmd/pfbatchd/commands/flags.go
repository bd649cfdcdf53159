package commands

import (
	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	configDefaults "github.com/concave-dev/pfbatch/internal/config"
	"github.com/spf13/cobra"
)

// SetupFlags configures all command line flags for the daemon
func SetupFlags(cmd *cobra.Command) {
	// Network flags
	cmd.Flags().StringVar(&config.Global.APIAddr, "bind", config.DefaultAPI,
		"Address and port for the admin HTTP API (e.g., "+config.DefaultAPI+")")
	cmd.Flags().StringVar(&config.Global.SerfAddr, "serf", config.DefaultSerf,
		"Address and port for Serf gossip (e.g., "+config.DefaultSerf+")")
	cmd.Flags().StringSliceVar(&config.Global.JoinAddrs, "join", nil,
		"Comma-separated list of fleet addresses to join (e.g., node1:4300,node2:4300)\n"+
			"Multiple addresses provide fault tolerance - if the first node is down, the next one is tried")
	cmd.Flags().BoolVar(&config.Global.StrictJoin, "strict-join", false,
		"Exit if the fleet join fails (default: continue in isolation)")
	cmd.Flags().BoolVar(&config.Global.NoGossip, "no-gossip", false,
		"Run without Serf; batch changes cannot be broadcast")

	// Dispatch flags
	cmd.Flags().IntVar(&config.Global.Workers, "workers", config.DefaultWorkers,
		"Number of dispatch workers; destination d is owned by worker d % workers")
	cmd.Flags().DurationVar(&config.Global.Tick, "tick", configDefaults.DefaultTickInterval,
		"Timer wheel tick interval")
	cmd.Flags().IntVar(&config.Global.Budget, "budget", config.DefaultBudget,
		"Maximum batches each worker releases per tick")
	cmd.Flags().IntVar(&config.Global.Slots, "slots", config.DefaultSlots,
		"Timer wheel slots per revolution")
	cmd.Flags().UintVar(&config.Global.RunQueueShift, "runq-shift", config.DefaultRunQueue,
		"Initial run queue capacity as a power of two")
	cmd.Flags().StringVar(&config.Global.Backing, "backing", config.DefaultBacking,
		"Run queue backing: ring (FIFO) or stack (LIFO)")
	cmd.Flags().IntVar(&config.Global.MaxBurst, "max-burst", config.DefaultMaxBurst,
		"Largest batch size threshold accepted at runtime")
	cmd.Flags().BoolVar(&config.Global.PinCPUs, "pin-cpus", false,
		"Bind each dispatch worker to its own CPU")

	// Batching flags
	cmd.Flags().IntVar(&config.Global.Destinations, "destinations", config.DefaultDestinations,
		"Number of destinations registered at startup (named fold-1 .. fold-N)")
	cmd.Flags().IntVar(&config.Global.BatchSize, "batch-size", configDefaults.DefaultBatchSize,
		"Initial batch size threshold of every destination")
	cmd.Flags().DurationVar(&config.Global.Timeout, "timeout", configDefaults.DefaultMaxHold,
		"Initial maximum hold time of a partial batch")

	// Synthetic traffic flags
	cmd.Flags().IntVar(&config.Global.Rate, "rate", config.DefaultRate,
		"Synthetic items per second (0 disables the generator)")
	cmd.Flags().IntVar(&config.Global.Burst, "burst", config.DefaultBurst,
		"Synthetic items per burst")
	cmd.Flags().IntVar(&config.Global.Payload, "payload", config.DefaultPayload,
		"Synthetic payload bytes per item")

	// Operational flags
	cmd.Flags().StringVar(&config.Global.NodeName, "name", "",
		"Node name (defaults to a generated name like 'tidal-harbor')")
	cmd.Flags().StringVar(&config.Global.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&config.Global.LogFile, "log-file", "",
		"Write logs to this file instead of stdout")
}

// CheckExplicitFlags checks if flags were explicitly set by the user
func CheckExplicitFlags(cmd *cobra.Command) {
	config.Global.SetExplicitlySet(config.SerfField, cmd.Flags().Changed("serf"))
	config.Global.SetExplicitlySet(config.APIAddrField, cmd.Flags().Changed("bind"))
	config.Global.SetExplicitlySet(config.LogFileField, cmd.Flags().Changed("log-file"))
}

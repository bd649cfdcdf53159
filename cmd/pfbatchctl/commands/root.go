// Package commands defines the pfbatchctl command tree. Commands are built
// here without handlers; main wires RunE so this package stays free of API
// client code.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the pfbatchctl root command
var RootCmd = &cobra.Command{
	Use:   "pfbatchctl",
	Short: "CLI for pfbatch batching dispatchers",
	Long: `pfbatchctl inspects and tunes a running pfbatchd daemon through its
admin API.

It lists destinations and their batching policy, changes the batch size
or hold time of a destination (optionally across the whole fleet), and
shows dispatch counters, delivery latency, fleet membership and host
resources.`,
	SilenceUsage: true,
	Example: `  # Show a summary of the daemon
  pfbatchctl info

  # List destinations with live updates
  pfbatchctl dest ls --watch

  # Flush fold-2 at 64 items or after 5ms, on every daemon
  pfbatchctl dest set fold-2 --batch-size=64 --timeout=5ms --broadcast

  # Show latency and start a new window
  pfbatchctl latency --reset

  # Talk to another daemon, JSON output
  pfbatchctl --api=10.0.0.12:8080 -o json stats`,
}

// SetupCommands attaches every subcommand to the root
func SetupCommands() {
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(destCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(latencyCmd)
	RootCmd.AddCommand(membersCmd)
	RootCmd.AddCommand(resourcesCmd)

	destCmd.AddCommand(destLsCmd)
	destCmd.AddCommand(destInfoCmd)
	destCmd.AddCommand(destSetCmd)

	latencyCmd.AddCommand(latencyResetCmd)
}

// SetupGlobalFlags configures the persistent flags shared by all commands
func SetupGlobalFlags(rootCmd *cobra.Command, apiAddrPtr *string, logLevelPtr *string,
	timeoutPtr *int, verbosePtr *bool, outputPtr *string, defaultAPIAddr string) {
	rootCmd.PersistentFlags().StringVar(apiAddrPtr, "api", defaultAPIAddr,
		"pfbatchd API address")
	rootCmd.PersistentFlags().StringVar(logLevelPtr, "log-level", "ERROR",
		"Log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().IntVar(timeoutPtr, "timeout", 8,
		"Connection timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(verbosePtr, "verbose", "v", false,
		"Show verbose output")
	rootCmd.PersistentFlags().StringVarP(outputPtr, "output", "o", "table",
		"Output format: table, json")
}

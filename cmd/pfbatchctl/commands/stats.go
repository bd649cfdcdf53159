package commands

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dispatch and pipeline counters",
	Long: `Show tick, admission and release counters per dispatch worker, the
backlog of ready timers, and the batches each pipeline stage received.`,
	Example: `  pfbatchctl stats
  pfbatchctl stats --watch`,
	Args: cobra.NoArgs,
}

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Show delivery latency per protocol",
	Long: `Show how long items waited between admission and delivery, per
protocol id, along with packet and bit rates over the current window.
Items that waited longer than the daemon's threshold count as timeouts.`,
	Example: `  # Read the counters
  pfbatchctl latency

  # Read and start a new window, every 2 seconds
  pfbatchctl latency --reset --watch`,
	Args: cobra.NoArgs,
}

var latencyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the latency counters",
	Args:  cobra.NoArgs,
}

// GetStatsCommands returns stats, latency and latency reset for handler wiring
func GetStatsCommands() (*cobra.Command, *cobra.Command, *cobra.Command) {
	return statsCmd, latencyCmd, latencyResetCmd
}

// SetupStatsFlags configures flags for stats and latency
func SetupStatsFlags(statsCmd, latencyCmd *cobra.Command, watchPtr *bool, resetPtr *bool) {
	statsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	latencyCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	latencyCmd.Flags().BoolVar(resetPtr, "reset", false,
		"Clear the counters after reading them")
}

package commands

import (
	"github.com/spf13/cobra"
)

var destCmd = &cobra.Command{
	Use:     "dest",
	Aliases: []string{"destination", "destinations"},
	Short:   "Inspect and tune destinations",
	Long: `Commands for the destinations of a pfbatchd daemon.

A destination collects submitted items into a batch and flushes it when
the batch reaches its batch size or has been held for its maximum hold
time, whichever comes first.`,
}

var destLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List destinations",
	Example: `  # List destinations
  pfbatchctl dest ls

  # Include flush counters
  pfbatchctl -v dest ls --watch`,
	Args: cobra.NoArgs,
}

var destInfoCmd = &cobra.Command{
	Use:   "info <id|name>",
	Short: "Show one destination",
	Example: `  pfbatchctl dest info 3
  pfbatchctl dest info fold-3`,
	Args: cobra.ExactArgs(1),
}

var destSetCmd = &cobra.Command{
	Use:   "set <id|name>",
	Short: "Change the batching policy of a destination",
	Long: `Change the batch size and hold time of a destination.

The change applies to the next batch the destination opens. The daemon
rejects a batch size outside its configured range and leaves the
destination unchanged. --hold-ticks wins over --timeout when both are
given; with neither, the current hold time is kept.

With --broadcast the change is also gossiped to every daemon in the fleet.
Daemons that own a destination with the same id or name apply it.`,
	Example: `  # Flush at 64 items
  pfbatchctl dest set fold-1 --batch-size=64

  # Flush at 32 items or after 2ms
  pfbatchctl dest set 1 --batch-size=32 --timeout=2ms

  # Apply fleet-wide
  pfbatchctl dest set fold-1 --batch-size=128 --hold-ticks=50 --broadcast`,
	Args: cobra.ExactArgs(1),
}

// GetDestCommands returns the dest subcommands for handler wiring
func GetDestCommands() (*cobra.Command, *cobra.Command, *cobra.Command) {
	return destLsCmd, destInfoCmd, destSetCmd
}

// SetupDestFlags configures flags for dest commands
func SetupDestFlags(lsCmd, infoCmd, setCmd *cobra.Command,
	watchPtr *bool, batchSizePtr *int, timeoutPtr *string, holdTicksPtr *uint64, broadcastPtr *bool) {
	lsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	infoCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")

	setCmd.Flags().IntVar(batchSizePtr, "batch-size", 0,
		"Items per batch before it is flushed")
	setCmd.Flags().StringVar(timeoutPtr, "timeout", "",
		"Maximum hold time of a partial batch, e.g. 5ms")
	setCmd.Flags().Uint64Var(holdTicksPtr, "hold-ticks", 0,
		"Maximum hold time in dispatcher ticks (wins over --timeout)")
	setCmd.Flags().BoolVar(broadcastPtr, "broadcast", false,
		"Also apply the change on every daemon in the fleet")
	_ = setCmd.MarkFlagRequired("batch-size")
}

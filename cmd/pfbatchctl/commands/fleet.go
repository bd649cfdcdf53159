package commands

import (
	"github.com/spf13/cobra"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List fleet members",
	Long: `List the daemons known to this daemon through gossip. A daemon
started with --no-gossip reports no members.`,
	Example: `  pfbatchctl members
  pfbatchctl members --status=failed
  pfbatchctl -v members --watch`,
	Args: cobra.NoArgs,
}

var resourcesCmd = &cobra.Command{
	Use:   "resources [node]",
	Short: "Show host resources of fleet daemons",
	Long: `Show CPU, memory, load and Go runtime figures of every daemon, or of
one daemon given by name, id or unique id prefix. Results are cached by
the daemon for a few seconds; --no-cache forces a fresh query.`,
	Example: `  # All daemons, most memory available first
  pfbatchctl resources --sort=memory

  # One daemon by id prefix
  pfbatchctl resources a1b2`,
	Args: cobra.MaximumNArgs(1),
}

// GetFleetCommands returns members and resources for handler wiring
func GetFleetCommands() (*cobra.Command, *cobra.Command) {
	return membersCmd, resourcesCmd
}

// SetupFleetFlags configures flags for members and resources
func SetupFleetFlags(membersCmd, resourcesCmd *cobra.Command,
	watchPtr *bool, statusPtr *string, sortPtr *string, noCachePtr *bool) {
	membersCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	membersCmd.Flags().StringVar(statusPtr, "status", "",
		"Filter members by status (alive, leaving, left, failed)")

	resourcesCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
	resourcesCmd.Flags().StringVar(sortPtr, "sort", "uptime",
		"Sort daemons by: uptime, name, memory")
	resourcesCmd.Flags().BoolVar(noCachePtr, "no-cache", false,
		"Bypass the daemon's resource cache")
}

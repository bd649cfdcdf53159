package commands

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a summary of the daemon",
	Long: `Show the health, version, uptime, worker count, backlog and fleet
membership of the daemon behind --api.`,
	Args: cobra.NoArgs,
}

// GetInfoCommand returns the info command for handler wiring
func GetInfoCommand() *cobra.Command {
	return infoCmd
}

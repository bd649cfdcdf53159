// Command pfbatchctl is the admin CLI for pfbatchd.
package main

import (
	"os"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/commands"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/handlers"
)

func init() {
	rootCmd := commands.RootCmd

	rootCmd.Version = config.Version
	rootCmd.PersistentPreRunE = config.ValidateGlobalFlags

	commands.SetupCommands()

	commands.SetupGlobalFlags(rootCmd, &config.Global.APIAddr, &config.Global.LogLevel,
		&config.Global.Timeout, &config.Global.Verbose, &config.Global.Output, config.DefaultAPIAddr)

	destLsCmd, destInfoCmd, destSetCmd := commands.GetDestCommands()
	commands.SetupDestFlags(destLsCmd, destInfoCmd, destSetCmd,
		&config.Dest.Watch, &config.Dest.BatchSize, &config.Dest.Timeout,
		&config.Dest.HoldTicks, &config.Dest.Broadcast)

	statsCmd, latencyCmd, latencyResetCmd := commands.GetStatsCommands()
	commands.SetupStatsFlags(statsCmd, latencyCmd, &config.Stats.Watch, &config.Stats.Reset)

	membersCmd, resourcesCmd := commands.GetFleetCommands()
	commands.SetupFleetFlags(membersCmd, resourcesCmd,
		&config.Fleet.Watch, &config.Fleet.Status, &config.Fleet.Sort, &config.Fleet.NoCache)

	commands.GetInfoCommand().RunE = handlers.HandleInfo
	destLsCmd.RunE = handlers.HandleDestList
	destInfoCmd.RunE = handlers.HandleDestInfo
	destSetCmd.RunE = handlers.HandleDestSet
	statsCmd.RunE = handlers.HandleStats
	latencyCmd.RunE = handlers.HandleLatency
	latencyResetCmd.RunE = handlers.HandleLatencyReset
	membersCmd.RunE = handlers.HandleMembers
	resourcesCmd.RunE = handlers.HandleResources
}

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

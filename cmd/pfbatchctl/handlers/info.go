package handlers

import (
	"fmt"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/client"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/display"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/utils"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/spf13/cobra"
)

// HandleInfo handles `info`, a one-screen summary of the daemon
func HandleInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	logging.Info("Fetching daemon information from API server: %s", config.Global.APIAddr)

	apiClient := client.CreateAPIClient()

	health, err := apiClient.GetHealth()
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("daemon at %s is %s: %s", config.Global.APIAddr, health.Status, health.Error)
	}
	stats, err := apiClient.GetStats()
	if err != nil {
		return err
	}
	dests, err := apiClient.GetDestinations()
	if err != nil {
		return err
	}
	members, err := apiClient.GetMembers()
	if err != nil {
		logging.Warn("Failed to fetch fleet members: %v", err)
	}

	display.DisplayInfo(health, stats, dests, members)
	return nil
}

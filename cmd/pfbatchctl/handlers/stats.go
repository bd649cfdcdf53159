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

// HandleStats handles `stats`
func HandleStats(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	fetchAndDisplay := func() error {
		logging.Info("Fetching stats from API server: %s", config.Global.APIAddr)

		stats, err := client.CreateAPIClient().GetStats()
		if err != nil {
			return err
		}

		display.DisplayStats(stats)
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Stats.Watch)
}

// HandleLatency handles `latency`. With --reset the counters are read and
// cleared in one request, so each refresh of --watch shows one window.
func HandleLatency(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	fetchAndDisplay := func() error {
		logging.Info("Fetching latency counters from API server: %s", config.Global.APIAddr)

		lat, err := client.CreateAPIClient().GetLatency(config.Stats.Reset)
		if err != nil {
			return err
		}

		display.DisplayLatency(lat)
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Stats.Watch)
}

// HandleLatencyReset handles `latency reset`
func HandleLatencyReset(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	if err := client.CreateAPIClient().ResetLatency(); err != nil {
		return err
	}

	if config.Global.Output == "json" {
		fmt.Println(`{"reset": true}`)
	} else {
		fmt.Println("Latency counters reset")
	}
	return nil
}

package handlers

import (
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/client"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/display"
	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/utils"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/spf13/cobra"
)

// HandleDestList handles `dest ls`
func HandleDestList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	fetchAndDisplay := func() error {
		logging.Info("Fetching destinations from API server: %s", config.Global.APIAddr)

		dests, err := client.CreateAPIClient().GetDestinations()
		if err != nil {
			return err
		}

		display.DisplayDestinations(dests)
		if !config.Dest.Watch {
			logging.Success("Successfully retrieved %d destinations", len(dests))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Dest.Watch)
}

// HandleDestInfo handles `dest info <id|name>`
func HandleDestInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()
	ref := args[0]

	fetchAndDisplay := func() error {
		logging.Info("Fetching destination %s from API server: %s", ref, config.Global.APIAddr)

		dest, err := client.CreateAPIClient().GetDestination(ref)
		if err != nil {
			return err
		}

		display.DisplayDestination(*dest)
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplay, config.Dest.Watch)
}

// HandleDestSet handles `dest set <id|name> --batch-size N`
func HandleDestSet(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()
	ref := args[0]

	req, err := buildSetBatchRequest()
	if err != nil {
		return err
	}

	logging.Info("Setting batch size %d on destination %s via %s", req.BatchSize, ref, config.Global.APIAddr)

	res, err := client.CreateAPIClient().SetBatch(ref, req)
	if err != nil {
		return err
	}

	display.DisplaySetBatch(ref, res, req.Broadcast)
	if req.Broadcast && !res.Broadcast {
		return fmt.Errorf("broadcast failed: %s", res.BroadcastError)
	}
	return nil
}

// buildSetBatchRequest checks the dest set flags. Range checks on the batch
// size stay on the daemon, which knows its own limits.
func buildSetBatchRequest() (client.SetBatchRequest, error) {
	req := client.SetBatchRequest{
		BatchSize:    config.Dest.BatchSize,
		MaxHoldTicks: config.Dest.HoldTicks,
		Broadcast:    config.Dest.Broadcast,
	}
	if req.BatchSize <= 0 {
		return req, fmt.Errorf("--batch-size must be positive")
	}
	if config.Dest.Timeout != "" {
		timeout, err := time.ParseDuration(config.Dest.Timeout)
		if err != nil {
			return req, fmt.Errorf("invalid --timeout %q: %w", config.Dest.Timeout, err)
		}
		if timeout <= 0 {
			return req, fmt.Errorf("--timeout must be positive")
		}
		req.Timeout = config.Dest.Timeout
	}
	return req, nil
}

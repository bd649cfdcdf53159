// Package commands contains the cobra command tree of pfbatchd.
//
// The daemon has a single root command. PreRunE turns flags into a
// validated config.Global; RunE hands over to daemon.Run, which owns the
// process until a signal arrives.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchd/daemon"
	"github.com/concave-dev/pfbatch/cmd/pfbatchd/utils"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/version"
	"github.com/spf13/cobra"
)

// Log file handle, closed on exit
var logFileHandle *os.File

// CleanupLogFile closes the log file handle if it exists
func CleanupLogFile() {
	if logFileHandle != nil {
		if err := logFileHandle.Close(); err != nil {
			// The logger may be writing to this file, so report on stderr
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
		logFileHandle = nil
	}
}

// RootCmd is the pfbatch daemon
var RootCmd = &cobra.Command{
	Use:   "pfbatchd",
	Short: "Batching dispatcher for per-destination pending work",
	Long: `pfbatch daemon (pfbatchd) groups work items into per-destination batches.

A batch is released as soon as it reaches its destination's size threshold,
or when it has waited the destination's maximum hold time. Batch settings
can be changed at runtime through the admin API and broadcast to every
daemon in the fleet over gossip.

Auto-configures ports when not explicitly specified.`,
	Version:      version.PfbatchdVersion,
	SilenceUsage: true,
	Example: `  # Start a daemon with 4 destinations and synthetic traffic
  pfbatchd

  # Join a second daemon to the first one's fleet
  pfbatchd --join=127.0.0.1:4300 --name=second-node

  # Two pinned workers, smaller batches, no synthetic load
  pfbatchd --workers=2 --pin-cpus --batch-size=16 --timeout=2ms --rate=0

  # Run alone without gossip
  pfbatchd --no-gossip --bind=127.0.0.1:9090`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.DisplayLogo(version.PfbatchdVersion)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		CheckExplicitFlags(cmd)

		if config.Global.IsExplicitlySet(config.LogFileField) && config.Global.LogFile != "" {
			logDir := filepath.Dir(config.Global.LogFile)
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory %s: %w", logDir, err)
			}

			var err error
			logFileHandle, err = os.OpenFile(config.Global.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", config.Global.LogFile, err)
			}

			logging.SetOutput(logFileHandle)
		}

		// Set the level before InitializeConfig logs anything, then again
		// for a DEBUG override from the environment
		logging.SetLevel(config.Global.LogLevel)
		config.InitializeConfig()
		logging.SetLevel(config.Global.LogLevel)

		if err := config.ValidateConfig(); err != nil {
			CleanupLogFile()
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer CleanupLogFile()
		return daemon.Run()
	},
}

// SetupCommands initializes all commands and their relationships
func SetupCommands() {
	SetupFlags(RootCmd)
}

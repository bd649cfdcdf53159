package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/runq"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// InitializeConfig applies environment overrides before validation runs.
func InitializeConfig() {
	if os.Getenv("DEBUG") == "true" {
		Global.LogLevel = "DEBUG"
		logging.Info("DEBUG environment variable detected, setting log level to DEBUG")
	}

	if Global.MaxPorts == 0 {
		Global.MaxPorts = DefaultMaxPorts
	}
	if maxPortsEnv := os.Getenv("MAX_PORTS"); maxPortsEnv != "" {
		if maxPorts, err := strconv.Atoi(maxPortsEnv); err == nil {
			Global.MaxPorts = maxPorts
			logging.Info("MAX_PORTS environment variable detected, setting max ports to %d", maxPorts)
		} else {
			logging.Warn("Invalid MAX_PORTS environment variable '%s', using default: %d", maxPortsEnv, Global.MaxPorts)
		}
	}
}

// ValidateConfig checks and normalizes Global before the daemon starts.
// Addresses are split into host and port; every range the dispatch layer
// would reject later is rejected here with the flag name in the message.
func ValidateConfig() error {
	if Global.MaxPorts < 1 || Global.MaxPorts > 10000 {
		logging.Error("Invalid max-ports value: %d (must be between 1 and 10000)", Global.MaxPorts)
		return fmt.Errorf("max-ports must be between 1 and 10000, got: %d", Global.MaxPorts)
	}

	if err := validateNetwork(); err != nil {
		return err
	}

	if Global.NodeName != "" {
		originalName := Global.NodeName
		Global.NodeName = strings.ToLower(Global.NodeName)
		if originalName != Global.NodeName {
			logging.Warn("Node name '%s' converted to lowercase: '%s'", originalName, Global.NodeName)
		}

		if err := validate.NodeNameFormat(Global.NodeName); err != nil {
			logging.Error("Invalid node name '%s': %v", Global.NodeName, err)
			return fmt.Errorf("invalid node name: %w", err)
		}
	}

	if err := logging.ValidateLogLevel(Global.LogLevel); err != nil {
		return err
	}

	if err := validateDispatch(); err != nil {
		logging.Error("Invalid dispatch configuration: %v", err)
		return err
	}

	if err := validateTraffic(); err != nil {
		logging.Error("Invalid traffic configuration: %v", err)
		return err
	}

	return nil
}

func validateNetwork() error {
	apiNetAddr, err := validate.ParseBindAddress(Global.APIAddr)
	if err != nil {
		logging.Error("Invalid API address '%s': %v", Global.APIAddr, err)
		return fmt.Errorf("invalid API address: %w", err)
	}
	if err := validate.ValidateField(apiNetAddr.Port, "required,min=1,max=65535"); err != nil {
		logging.Error("API port cannot be 0 (auto-assigned) - operators and peers need a known port")
		return fmt.Errorf("API address requires specific port (not 0): %w", err)
	}
	Global.APIAddr = apiNetAddr.Host
	Global.APIPort = apiNetAddr.Port

	if Global.NoGossip {
		if len(Global.JoinAddrs) > 0 {
			return fmt.Errorf("cannot use --join with --no-gossip")
		}
		return nil
	}

	netAddr, err := validate.ParseBindAddress(Global.SerfAddr)
	if err != nil {
		logging.Error("Invalid serf address '%s': %v", Global.SerfAddr, err)
		return fmt.Errorf("invalid serf address: %w", err)
	}
	if err := validate.ValidateField(netAddr.Port, "required,min=1,max=65535"); err != nil {
		logging.Error("Serf port cannot be 0 (auto-assigned) - peers need a known port")
		return fmt.Errorf("daemon requires specific port (not 0): %w", err)
	}
	Global.SerfAddr = netAddr.Host
	Global.SerfPort = netAddr.Port

	if len(Global.JoinAddrs) > 0 {
		if err := validate.ValidateAddressList(Global.JoinAddrs); err != nil {
			logging.Error("Invalid join addresses: %v", err)
			return fmt.Errorf("invalid join addresses: %w", err)
		}
	}
	return nil
}

func validateDispatch() error {
	if err := validate.ValidateField(Global.Workers, "min=1,max=256"); err != nil {
		return fmt.Errorf("--workers must be between 1 and 256, got %d", Global.Workers)
	}
	if err := validate.ValidatePositiveTimeout(Global.Tick, "--tick"); err != nil {
		return err
	}
	if err := validate.ValidateField(Global.Budget, "min=1"); err != nil {
		return fmt.Errorf("--budget must be at least 1, got %d", Global.Budget)
	}
	if err := validate.ValidateField(Global.Slots, "min=1,max=1048576"); err != nil {
		return fmt.Errorf("--slots must be between 1 and 1048576, got %d", Global.Slots)
	}
	if err := validate.ValidateField(Global.RunQueueShift, "max=24"); err != nil {
		return fmt.Errorf("--runq-shift must be at most 24, got %d", Global.RunQueueShift)
	}
	if _, err := runq.ParseBacking(Global.Backing); err != nil {
		return fmt.Errorf("--backing: %w", err)
	}
	if err := validate.ValidateField(Global.MaxBurst, fmt.Sprintf("min=%d", admission.DefaultMinBatchSize)); err != nil {
		return fmt.Errorf("--max-burst must be at least %d, got %d", admission.DefaultMinBatchSize, Global.MaxBurst)
	}
	if err := validate.ValidateField(Global.Destinations, "min=1,max=4096"); err != nil {
		return fmt.Errorf("--destinations must be between 1 and 4096, got %d", Global.Destinations)
	}
	if err := validate.ValidatePositiveTimeout(Global.Timeout, "--timeout"); err != nil {
		return err
	}

	limits := admission.Limits{MinBatchSize: admission.DefaultMinBatchSize, MaxBurst: Global.MaxBurst}
	if err := limits.Check(admission.Config{BatchSizeThreshold: Global.BatchSize, MaxHoldTicks: 1}); err != nil {
		return fmt.Errorf("--batch-size: %w", err)
	}
	return nil
}

func validateTraffic() error {
	if Global.Rate < 0 {
		return fmt.Errorf("--rate cannot be negative, got %d", Global.Rate)
	}
	if !Global.TrafficEnabled() {
		return nil
	}
	if err := validate.ValidateField(Global.Burst, "min=1,max=4096"); err != nil {
		return fmt.Errorf("--burst must be between 1 and 4096, got %d", Global.Burst)
	}
	if err := validate.ValidateField(Global.Payload, "min=0,max=9000"); err != nil {
		return fmt.Errorf("--payload must be between 0 and 9000 bytes, got %d", Global.Payload)
	}
	return nil
}

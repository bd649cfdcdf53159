package gossip

import (
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/config"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// Config holds configuration for the gossip Manager
type Config struct {
	BindAddr string            // Bind address
	BindPort int               // Bind port
	NodeName string            // Name of the node
	Tags     map[string]string // Tags for the node

	EventBufferSize     int           // Event buffer size
	JoinRetries         int           // Join retries
	JoinTimeout         time.Duration // Join timeout
	QueryTimeout        time.Duration // Timeout for fleet-wide queries
	DeadNodeReclaimTime time.Duration // How long failed nodes are kept before removal
	LogLevel            string        // Log level
}

// DefaultConfig returns a default configuration for the Manager
func DefaultConfig() *Config {
	return &Config{
		BindAddr:            config.DefaultBindAddr,
		BindPort:            config.DefaultGossipPort,
		EventBufferSize:     1024,
		JoinRetries:         3,
		JoinTimeout:         30 * time.Second,
		QueryTimeout:        5 * time.Second,
		DeadNodeReclaimTime: 10 * time.Minute,
		LogLevel:            config.DefaultLogLevel,
		Tags:                make(map[string]string),
	}
}

// validateConfig validates manager configuration
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.NodeNameFormat(cfg.NodeName); err != nil {
		return err
	}

	if err := validate.ValidateField(cfg.BindAddr, "required,ip"); err != nil {
		return fmt.Errorf("invalid bind address: %w", err)
	}

	if err := validate.ValidateField(cfg.BindPort, "min=0,max=65535"); err != nil {
		return fmt.Errorf("invalid bind port: %w", err)
	}

	if cfg.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be positive, got: %d", cfg.EventBufferSize)
	}

	if cfg.JoinRetries < 1 {
		return fmt.Errorf("join retries must be positive, got: %d", cfg.JoinRetries)
	}

	if err := validate.ValidatePositiveTimeout(cfg.QueryTimeout, "query timeout"); err != nil {
		return err
	}

	if err := validateTags(cfg.Tags); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}

	return nil
}

// validateTags validates that user-provided tags don't use reserved names
func validateTags(tags map[string]string) error {
	reservedTags := map[string]bool{
		tagNodeID:  true,
		tagAPIAddr: true,
	}

	for tagName := range tags {
		if reservedTags[tagName] {
			return fmt.Errorf("tag name '%s' is reserved and cannot be used", tagName)
		}
	}

	return nil
}

package api

import (
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/internal/latency"
)

// TestConfig_Validate tests Config.Validate() with valid and invalid configurations
func TestConfig_Validate(t *testing.T) {
	group := newTestGroup(t)
	tracker := latency.NewTracker(time.Millisecond, time.Now())

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty bind address", mutate: func(c *Config) { c.BindAddr = "" }, wantErr: true},
		{name: "zero port", mutate: func(c *Config) { c.BindPort = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.BindPort = 70000 }, wantErr: true},
		{name: "missing dispatch", mutate: func(c *Config) { c.Dispatch = nil }, wantErr: true},
		{name: "missing latency", mutate: func(c *Config) { c.Latency = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Dispatch = group
			config.Latency = tracker
			tt.mutate(config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestDefaultConfig tests default values
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.BindAddr != "127.0.0.1" {
		t.Errorf("BindAddr = %q, want loopback", config.BindAddr)
	}
	if config.BindPort != 8080 {
		t.Errorf("BindPort = %d, want 8080", config.BindPort)
	}
	if config.Started.IsZero() {
		t.Error("Started should be set")
	}
}

package gossip

import (
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig tests DefaultConfig values
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BindAddr != "0.0.0.0" || config.BindPort != 4300 {
		t.Errorf("Unexpected bind address %s:%d", config.BindAddr, config.BindPort)
	}
	if config.EventBufferSize != 1024 || config.JoinRetries != 3 {
		t.Errorf("Unexpected buffer/retries: %d/%d", config.EventBufferSize, config.JoinRetries)
	}
	if config.QueryTimeout != 5*time.Second {
		t.Errorf("Expected 5s query timeout, got %v", config.QueryTimeout)
	}
	if config.Tags == nil || len(config.Tags) != 0 {
		t.Errorf("Expected empty initialized tags, got %v", config.Tags)
	}
	if config.NodeName != "" {
		t.Errorf("Expected empty node name by default, got %q", config.NodeName)
	}
}

// TestValidateConfig tests validateConfig with valid and invalid configurations
func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.NodeName = "edge-1"
		c.BindAddr = "127.0.0.1"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "ipv6 bind", mutate: func(c *Config) { c.BindAddr = "::1" }},
		{name: "port zero", mutate: func(c *Config) { c.BindPort = 0 }},
		{name: "empty node name", mutate: func(c *Config) { c.NodeName = "" }, wantErr: "node name cannot be empty"},
		{name: "uppercase node name", mutate: func(c *Config) { c.NodeName = "Edge" }, wantErr: "lowercase"},
		{name: "hostname bind", mutate: func(c *Config) { c.BindAddr = "localhost" }, wantErr: "invalid bind address"},
		{name: "port too high", mutate: func(c *Config) { c.BindPort = 70000 }, wantErr: "invalid bind port"},
		{name: "zero buffer", mutate: func(c *Config) { c.EventBufferSize = 0 }, wantErr: "event buffer size"},
		{name: "zero retries", mutate: func(c *Config) { c.JoinRetries = 0 }, wantErr: "join retries"},
		{name: "zero query timeout", mutate: func(c *Config) { c.QueryTimeout = 0 }, wantErr: "query timeout"},
		{name: "reserved node_id tag", mutate: func(c *Config) { c.Tags["node_id"] = "x" }, wantErr: "reserved"},
		{name: "reserved api_addr tag", mutate: func(c *Config) { c.Tags["api_addr"] = "x" }, wantErr: "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateConfig(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateConfig() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateConfig() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}

	if err := validateConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

package config

import (
	"net"
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
)

// TestDefaultBindAddrIsValidIP validates that the default bind address is a valid IPv4 address
func TestDefaultBindAddrIsValidIP(t *testing.T) {
	ip := net.ParseIP(DefaultBindAddr)
	if ip == nil {
		t.Fatalf("DefaultBindAddr %q is not a valid IP address", DefaultBindAddr)
	}
	if ip.To4() == nil {
		t.Errorf("DefaultBindAddr %q is not a valid IPv4 address", DefaultBindAddr)
	}
}

// TestDefaultLogLevel validates the default log level is accepted by the logger
func TestDefaultLogLevel(t *testing.T) {
	if err := logging.ValidateLogLevel(DefaultLogLevel); err != nil {
		t.Errorf("DefaultLogLevel %q rejected: %v", DefaultLogLevel, err)
	}
}

// TestDefaultPorts validates the default ports are usable and distinct
func TestDefaultPorts(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{name: "gossip", port: DefaultGossipPort},
		{name: "api", port: DefaultAPIPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port < 1024 || tt.port > 65535 {
				t.Errorf("%s port %d outside the unprivileged range", tt.name, tt.port)
			}
		})
	}

	if DefaultGossipPort == DefaultAPIPort {
		t.Errorf("gossip and api default to the same port %d", DefaultAPIPort)
	}
}

// TestDefaultBatching validates the batching defaults fit the admission limits
func TestDefaultBatching(t *testing.T) {
	if DefaultBatchSize < 16 {
		t.Errorf("DefaultBatchSize = %d, below the minimum threshold of 16", DefaultBatchSize)
	}
	if DefaultTickInterval <= 0 {
		t.Errorf("DefaultTickInterval = %v, want positive", DefaultTickInterval)
	}
	if DefaultMaxHold < DefaultTickInterval {
		t.Errorf("DefaultMaxHold %v shorter than one tick %v", DefaultMaxHold, DefaultTickInterval)
	}
	if DefaultMaxHold > time.Second {
		t.Errorf("DefaultMaxHold %v is unreasonably long", DefaultMaxHold)
	}
}

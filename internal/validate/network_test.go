package validate_test

import (
	"testing"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchd/utils"
	"github.com/concave-dev/pfbatch/internal/validate"
)

// TestDaemonDefaultAddresses tests that the pfbatchd --bind and --serf
// defaults parse and carry a fixed port
func TestDaemonDefaultAddresses(t *testing.T) {
	tests := []struct {
		flag     string
		addr     string
		wantHost string
		wantPort int
	}{
		{flag: "bind", addr: config.DefaultAPI, wantHost: "127.0.0.1", wantPort: 8080},
		{flag: "serf", addr: config.DefaultSerf, wantHost: "0.0.0.0", wantPort: 4300},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			addr, err := validate.ParseBindAddress(tt.addr)
			if err != nil {
				t.Fatalf("ParseBindAddress(%q) failed: %v", tt.addr, err)
			}
			if addr.Host != tt.wantHost || addr.Port != tt.wantPort {
				t.Errorf("--%s default = %s, want %s:%d", tt.flag, addr, tt.wantHost, tt.wantPort)
			}
			if err := validate.ValidateField(addr.Port, "required,min=1,max=65535"); err != nil {
				t.Errorf("--%s default port must be fixed: %v", tt.flag, err)
			}
			if addr.String() != tt.addr {
				t.Errorf("String() = %q, want %q", addr.String(), tt.addr)
			}
		})
	}
}

// TestParseBindAddress tests the forms operators pass to --bind, --serf and --api
func TestParseBindAddress(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		wantPort int
		wantErr  bool
	}{
		{name: "loopback api", addr: "127.0.0.1:9090", wantPort: 9090},
		{name: "any interface gossip", addr: "0.0.0.0:4301", wantPort: 4301},
		{name: "ipv6 loopback", addr: "[::1]:8080", wantPort: 8080},
		{name: "zero port", addr: "127.0.0.1:0", wantErr: true},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "hostname", addr: "localhost:8080", wantErr: true},
		{name: "non-numeric port", addr: "127.0.0.1:api", wantErr: true},
		{name: "port out of range", addr: "127.0.0.1:70000", wantErr: true},
		{name: "negative port", addr: "127.0.0.1:-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := validate.ParseBindAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBindAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if err == nil && addr.Port != tt.wantPort {
				t.Errorf("port = %d, want %d", addr.Port, tt.wantPort)
			}
		})
	}
}

// TestValidateAddressList tests --join seed lists
func TestValidateAddressList(t *testing.T) {
	tests := []struct {
		name    string
		seeds   []string
		wantErr bool
	}{
		{name: "single seed", seeds: []string{"10.0.0.1:4300"}},
		{name: "seed per daemon", seeds: []string{"10.0.0.1:4300", "10.0.0.2:4301"}},
		{name: "empty", seeds: nil, wantErr: true},
		{name: "bad later seed", seeds: []string{"10.0.0.1:4300", "seed-two:4300"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.ValidateAddressList(tt.seeds)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddressList(%v) error = %v, wantErr %v", tt.seeds, err, tt.wantErr)
			}
		})
	}
}

// TestMaxPortsFallback tests how far port discovery walks from a busy
// default for each MAX_PORTS value
func TestMaxPortsFallback(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{name: "unset", env: "", want: config.DefaultMaxPorts},
		{name: "override", env: "250", want: 250},
		{name: "not a number", env: "many", want: config.DefaultMaxPorts},
		{name: "zero", env: "0", want: config.DefaultMaxPorts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := config.Global
			t.Cleanup(func() { config.Global = saved })
			config.Global.MaxPorts = 0

			t.Setenv("MAX_PORTS", tt.env)
			config.InitializeConfig()

			if got := utils.GetMaxPorts(); got != tt.want {
				t.Errorf("GetMaxPorts() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestValidateField tests the runtime-built range tags used for batch sizes
// and ports
func TestValidateField(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		tag     string
		wantErr bool
	}{
		{name: "batch size in range", value: 32, tag: "min=16,max=256"},
		{name: "batch size at max burst", value: 256, tag: "min=16,max=256"},
		{name: "batch size zero", value: 0, tag: "min=16,max=256", wantErr: true},
		{name: "hold ticks zero", value: uint64(0), tag: "min=1", wantErr: true},
		{name: "fixed port", value: 4300, tag: "required,min=1,max=65535"},
		{name: "auto port", value: 0, tag: "required,min=1,max=65535", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.ValidateField(tt.value, tt.tag)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateField(%v, %q) error = %v, wantErr %v", tt.value, tt.tag, err, tt.wantErr)
			}
		})
	}
}

package utils

import (
	"fmt"
	"net"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/netutil"
)

// FindAvailablePort finds a port free for both TCP and UDP, starting at
// startPort. Serf gossips over UDP and syncs state over TCP on the same
// port, so both have to be free.
func FindAvailablePort(address string, startPort int) (int, error) {
	maxAttempts := GetMaxPorts()

	for port := startPort; port < startPort+maxAttempts && port <= 65535; port++ {
		addr := fmt.Sprintf("%s:%d", address, port)

		tcpConn, tcpErr := net.Listen("tcp4", addr)
		if tcpErr != nil {
			if netutil.IsAddressInUseError(tcpErr) {
				continue
			}
			return 0, fmt.Errorf("failed to bind TCP to %s: %w", addr, tcpErr)
		}
		tcpConn.Close()

		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
		}
		udpConn, udpErr := net.ListenUDP("udp", udpAddr)
		if udpErr == nil {
			udpConn.Close()
			return port, nil
		}
		if netutil.IsAddressInUseError(udpErr) {
			continue
		}
		return 0, fmt.Errorf("failed to bind UDP to %s: %w", addr, udpErr)
	}

	return 0, fmt.Errorf("no available port found in range %d-%d on %s",
		startPort, startPort+maxAttempts-1, address)
}

// CheckPortAvailable verifies an explicitly requested gossip port is free
// for both UDP and TCP.
func CheckPortAvailable(address string, port int) error {
	addr := fmt.Sprintf("%s:%d", address, port)

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		if netutil.IsAddressInUseError(err) {
			return fmt.Errorf("cannot bind Serf (UDP) to %s: port %d is already in use", address, port)
		}
		return fmt.Errorf("failed to bind Serf (UDP) to %s: %w", addr, err)
	}
	udpConn.Close()

	tcpListener, err := net.Listen("tcp4", addr)
	if err != nil {
		if netutil.IsAddressInUseError(err) {
			return fmt.Errorf("cannot bind Serf (TCP) to %s: port %d is already in use", address, port)
		}
		return fmt.Errorf("failed to bind Serf (TCP) to %s: %w", addr, err)
	}
	tcpListener.Close()
	return nil
}

// PreBindServiceListener binds a TCP listener for a service before anything
// starts. An explicit port is bound exactly; a default port falls back to
// the next free one.
func PreBindServiceListener(serviceName string, portBinder *netutil.PortBinder, explicitlySet bool, addr string, port int) (net.Listener, int, error) {
	if explicitlySet {
		logging.Info("Pre-binding %s listener to explicit port %d", serviceName, port)

		listener, err := portBinder.BindTCP(addr, port)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to pre-bind %s listener to %s:%d: %w", serviceName, addr, port, err)
		}
		return listener, port, nil
	}

	logging.Info("Pre-binding %s listener starting from port %d", serviceName, port)

	listener, actualPort, err := portBinder.BindTCPWithFallbackAndLimit(addr, port, GetMaxPorts())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pre-bind %s listener: %w", serviceName, err)
	}

	if actualPort != port {
		logging.Warn("Default %s port %d was busy, pre-bound to port %d", serviceName, port, actualPort)
	} else {
		logging.Info("Pre-bound %s listener to port %d", serviceName, actualPort)
	}
	return listener, actualPort, nil
}

// GetMaxPorts returns how many ports discovery may try.
func GetMaxPorts() int {
	if config.Global.MaxPorts <= 0 {
		return config.DefaultMaxPorts
	}
	return config.Global.MaxPorts
}

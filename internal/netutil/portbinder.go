// Package netutil reserves listener ports for the pfbatch daemon.
//
// The admin API port is bound before anything else starts and the bound
// listener is handed to the HTTP server, so there is no window between
// finding a free port and using it. With a fallback bind the daemon walks
// up from the preferred port and advertises whichever port it got through
// gossip tags.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

const maxBindAttempts = 100

// AddressInUseError is a port conflict. It unwraps to the listen error.
type AddressInUseError struct {
	Port    int
	Address string
	Err     error
}

func (e *AddressInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use on %s", e.Port, e.Address)
}

func (e *AddressInUseError) Unwrap() error {
	return e.Err
}

// PortBinder pre-binds TCP listeners.
type PortBinder struct{}

// NewPortBinder creates a PortBinder.
func NewPortBinder() *PortBinder {
	return &PortBinder{}
}

// BindTCP binds an IPv4 TCP listener on address:port. A port conflict is
// returned as *AddressInUseError.
func (pb *PortBinder) BindTCP(address string, port int) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", address, port)

	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		if IsAddressInUseError(err) {
			return nil, &AddressInUseError{
				Port:    port,
				Address: address,
				Err:     err,
			}
		}
		return nil, fmt.Errorf("failed to bind TCP to %s: %w", addr, err)
	}

	return listener, nil
}

// BindTCPWithFallback binds preferredPort or, if it is taken, the next free
// port above it. It gives up after maxBindAttempts ports.
func (pb *PortBinder) BindTCPWithFallback(address string, preferredPort int) (net.Listener, int, error) {
	return pb.BindTCPWithFallbackAndLimit(address, preferredPort, maxBindAttempts)
}

// BindTCPWithFallbackAndLimit is BindTCPWithFallback with a caller chosen
// number of ports to try.
func (pb *PortBinder) BindTCPWithFallbackAndLimit(address string, preferredPort, maxAttempts int) (net.Listener, int, error) {
	if maxAttempts < 1 {
		return nil, 0, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}

	for port := preferredPort; port < preferredPort+maxAttempts && port <= 65535; port++ {
		listener, err := pb.BindTCP(address, port)
		if err != nil {
			var addrInUseErr *AddressInUseError
			if errors.As(err, &addrInUseErr) {
				continue
			}
			return nil, 0, fmt.Errorf("failed to bind TCP starting from port %d: %w", preferredPort, err)
		}

		return listener, port, nil
	}

	return nil, 0, fmt.Errorf("no available TCP port found in range %d-%d on %s",
		preferredPort, preferredPort+maxAttempts-1, address)
}

// GetListenerPort returns the port a TCP listener is bound to.
func (pb *PortBinder) GetListenerPort(listener net.Listener) (int, error) {
	addr := listener.Addr()
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener is not a TCP listener: %T", addr)
	}

	return tcpAddr.Port, nil
}

package utils

import (
	"net"
	"testing"

	"github.com/concave-dev/pfbatch/internal/netutil"
)

// TestPreBindServiceListener tests explicit and fallback binding
func TestPreBindServiceListener(t *testing.T) {
	pb := netutil.NewPortBinder()

	taken, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	if _, _, err := PreBindServiceListener("API", pb, true, "127.0.0.1", port); err == nil {
		t.Error("Expected explicit bind of a taken port to fail")
	}

	l, got, err := PreBindServiceListener("API", pb, false, "127.0.0.1", port)
	if err != nil {
		t.Skipf("no free port above %d: %v", port, err)
	}
	defer l.Close()
	if got == port {
		t.Errorf("Expected fallback away from taken port %d", port)
	}
}

// TestFindAvailablePort tests that a port taken over TCP is skipped
func TestFindAvailablePort(t *testing.T) {
	taken, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	got, err := FindAvailablePort("127.0.0.1", port)
	if err != nil {
		t.Skipf("no free port above %d: %v", port, err)
	}
	if got == port {
		t.Errorf("Expected a port other than %d", port)
	}

	if err := CheckPortAvailable("127.0.0.1", port); err == nil {
		t.Error("Expected CheckPortAvailable to report the taken port")
	}
}

package affinity

import (
	"errors"
	"runtime"
	"testing"
)

// TestPinRejectsNegativeCPU tests argument validation
func TestPinRejectsNegativeCPU(t *testing.T) {
	if err := Pin(-1); err == nil {
		t.Error("Expected error for negative cpu")
	}
}

// TestPinCurrentCPU tests pinning to a CPU the thread is already allowed on
func TestPinCurrentCPU(t *testing.T) {
	cpus, err := Current()
	if errors.Is(err, ErrUnsupported) {
		t.Skip("affinity not supported on this platform")
	}
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if len(cpus) == 0 {
		t.Fatal("Expected at least one allowed cpu")
	}

	done := make(chan error, 1)
	go func() {
		err := Pin(cpus[0])
		if err == nil {
			after, cerr := Current()
			if cerr != nil {
				err = cerr
			} else if len(after) != 1 || after[0] != cpus[0] {
				err = errors.New("thread not restricted to the pinned cpu")
			}
		}
		done <- err
	}()

	if err := <-done; err != nil {
		t.Errorf("Pin failed: %v", err)
	}
}

// TestCPUFor tests worker to CPU mapping
func TestCPUFor(t *testing.T) {
	n := runtime.NumCPU()
	tests := []struct {
		worker int
		want   int
	}{
		{worker: 0, want: 0},
		{worker: n, want: 0},
		{worker: n + 1, want: 1 % n},
		{worker: -1, want: 1 % n},
	}

	for _, tt := range tests {
		if got := CPUFor(tt.worker); got != tt.want {
			t.Errorf("CPUFor(%d) = %d, want %d", tt.worker, got, tt.want)
		}
	}
}

// Package affinity pins dispatch workers to CPUs.
//
// A pinned worker locks its goroutine to the current OS thread and then
// restricts that thread to one CPU. Platform code lives in build-tagged
// files; unsupported platforms return ErrUnsupported.
package affinity

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupported is returned where thread affinity is not available.
var ErrUnsupported = errors.New("cpu affinity not supported on this platform")

// Pin locks the calling goroutine to its OS thread and binds the thread to
// cpu. On failure the goroutine is unlocked again.
func Pin(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("invalid cpu %d", cpu)
	}

	runtime.LockOSThread()
	if err := setAffinity(cpu); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	return nil
}

// Unpin releases the OS thread lock taken by Pin. The thread keeps its
// affinity mask; it is discarded by the runtime when the goroutine exits
// while still locked, so callers normally just return.
func Unpin() {
	runtime.UnlockOSThread()
}

// CPUFor returns the CPU a worker index maps to, wrapping around the
// available CPUs.
func CPUFor(worker int) int {
	n := runtime.NumCPU()
	if worker < 0 {
		worker = -worker
	}
	return worker % n
}

package utils

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
)

// WatchInterval is the refresh period of --watch
const WatchInterval = 2 * time.Second

// RunWithWatch runs fn once, or with watch set, clears the screen and reruns
// it every WatchInterval until SIGINT or SIGTERM. A failed refresh is
// logged and the loop keeps going, so a restarting daemon does not end the
// watch.
func RunWithWatch(fn func() error, watch bool) error {
	if !watch {
		return fn()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(WatchInterval)
	defer ticker.Stop()

	fmt.Print("\033[2J\033[H")
	if err := fn(); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			fmt.Print("\033[2J\033[H")
			if err := fn(); err != nil {
				logging.Error("Error updating display: %v", err)
			}
		case <-sigChan:
			fmt.Println("\nWatch mode interrupted")
			return nil
		}
	}
}

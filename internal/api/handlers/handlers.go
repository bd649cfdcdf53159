// Package handlers provides the HTTP request handlers of the pfbatch admin
// API.
//
// Handlers are factories closing over the daemon components they read. The
// dispatch workers are reached through the Dispatcher interface, which
// *dispatch.Group satisfies; every call travels over the worker command
// channels, so a handler never touches scheduler state directly.
//
// RESPONSES:
// Successful reads answer {"status": "success", "data": ...}. Failures
// answer {"error": <summary>, "details": <cause>} with a 4xx or 5xx code.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/gin-gonic/gin"
)

// requestTimeout bounds how long a handler waits on the dispatch workers.
const requestTimeout = 5 * time.Second

// Dispatcher is the view of the dispatch workers the API needs.
type Dispatcher interface {
	Destinations(ctx context.Context) ([]admission.Info, error)
	Destination(ctx context.Context, ref string) (admission.Info, error)
	Apply(ctx context.Context, ref string, s dispatch.Settings) error
	Snapshots(ctx context.Context) ([]dispatch.Snapshot, error)
}

func workerContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondWorkerError maps a dispatch error onto a status code.
func respondWorkerError(c *gin.Context, summary string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, admission.ErrInvalidBatchSize):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   admission.ErrInvalidBatchSize.Error(),
			"details": err.Error(),
		})
		return
	case errors.Is(err, admission.ErrUnknownDestination):
		status = http.StatusNotFound
	case errors.Is(err, dispatch.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":   summary,
		"details": err.Error(),
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the body of /health. It is not wrapped in an envelope.
type HealthResponse struct {
	Status    string         `json:"status"` // healthy or degraded
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Uptime    string         `json:"uptime"`
	Workers   []WorkerHealth `json:"workers"`
	Error     string         `json:"error,omitempty"`
}

// WorkerHealth shows that a dispatch worker answered and how much it holds.
type WorkerHealth struct {
	Worker      int    `json:"worker"`
	Ticks       uint64 `json:"ticks"`
	Now         uint64 `json:"now"` // Wheel time in ticks
	Backlog     int    `json:"backlog"`
	ArmedTimers int    `json:"armedTimers"`
	LiveBatches int    `json:"liveBatches"`
}

// HandleHealth reports the API server and the liveness of every dispatch
// worker. A worker that cannot answer within the request timeout marks the
// daemon degraded with 503. A nil dispatcher reports no workers.
func HandleHealth(version string, startTime time.Time, d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now(),
			Version:   version,
			Uptime:    time.Since(startTime).String(),
			Workers:   []WorkerHealth{},
		}

		if d != nil {
			ctx, cancel := workerContext(c)
			defer cancel()

			snaps, err := d.Snapshots(ctx)
			if err != nil {
				response.Status = "degraded"
				response.Error = err.Error()
				c.JSON(http.StatusServiceUnavailable, response)
				return
			}
			for _, s := range snaps {
				response.Workers = append(response.Workers, WorkerHealth{
					Worker:      s.Worker,
					Ticks:       s.Counters.Ticks,
					Now:         s.Now,
					Backlog:     s.Backlog,
					ArmedTimers: s.ArmedTimers,
					LiveBatches: s.LiveBatches,
				})
			}
		}

		c.JSON(http.StatusOK, response)
	}
}

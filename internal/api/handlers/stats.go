package handlers

import (
	"net/http"

	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/concave-dev/pfbatch/internal/traffic"
	"github.com/gin-gonic/gin"
)

// StatsSource gathers what GET /stats reports. Only Dispatch is required.
type StatsSource struct {
	Dispatch Dispatcher
	Stages   func() []pipeline.StageStats
	Traffic  func() traffic.Stats
	Host     func() *resources.HostResources
}

// StatsResponse is the daemon-wide statistics document.
type StatsResponse struct {
	Workers []dispatch.Snapshot      `json:"workers"`
	Totals  dispatch.Counters        `json:"totals"`
	Backlog int                      `json:"backlog"`
	Armed   int                      `json:"armedTimers"`
	Stages  []pipeline.StageStats    `json:"stages,omitempty"`
	Traffic *traffic.Stats           `json:"traffic,omitempty"`
	Host    *resources.HostResources `json:"host,omitempty"`
}

// HandleStats returns per-worker engine snapshots with daemon totals.
func HandleStats(src StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := workerContext(c)
		defer cancel()

		snaps, err := src.Dispatch.Snapshots(ctx)
		if err != nil {
			respondWorkerError(c, "Failed to collect engine stats", err)
			return
		}

		resp := StatsResponse{Workers: snaps}
		for _, s := range snaps {
			resp.Totals.Add(s.Counters)
			resp.Backlog += s.Backlog
			resp.Armed += s.ArmedTimers
		}
		if src.Stages != nil {
			resp.Stages = src.Stages()
		}
		if src.Traffic != nil {
			t := src.Traffic()
			resp.Traffic = &t
		}
		if src.Host != nil {
			resp.Host = src.Host()
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   resp,
		})
	}
}

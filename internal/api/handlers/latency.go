package handlers

import (
	"net/http"
	"time"

	"github.com/concave-dev/pfbatch/internal/latency"
	"github.com/gin-gonic/gin"
)

// LatencyRow is one line of the latency table. Protocol 0 is the total.
type LatencyRow struct {
	Protocol uint8 `json:"protocol"`
	latency.Counter
	AverageLatency time.Duration `json:"averageLatency"`
}

// LatencyResponse is a latency snapshot with derived rates.
type LatencyResponse struct {
	Since            time.Time     `json:"since"`
	Window           time.Duration `json:"window"`
	Threshold        time.Duration `json:"threshold"`
	PacketsPerSecond float64       `json:"packetsPerSecond"`
	BitsPerSecond    float64       `json:"bitsPerSecond"`
	Total            LatencyRow    `json:"total"`
	Protocols        []LatencyRow  `json:"protocols"`
	Reset            bool          `json:"reset"`
}

func newLatencyResponse(s latency.Snapshot, reset bool) LatencyResponse {
	resp := LatencyResponse{
		Since:            s.Since,
		Window:           s.Window,
		Threshold:        s.Threshold,
		PacketsPerSecond: s.PacketsPerSecond(),
		BitsPerSecond:    s.BitsPerSecond(),
		Total:            LatencyRow{Counter: s.Total, AverageLatency: s.Total.Average()},
		Protocols:        make([]LatencyRow, 0, len(s.Protocols)),
		Reset:            reset,
	}
	for _, p := range s.Protocols {
		resp.Protocols = append(resp.Protocols, LatencyRow{
			Protocol:       p.Protocol,
			Counter:        p.Counter,
			AverageLatency: p.Average(),
		})
	}
	return resp
}

// HandleLatency returns the latency counters. With ?reset=true the counters
// are cleared in the same step, so no item is missed or counted twice
// between the read and the reset.
func HandleLatency(tracker *latency.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		reset := c.Query("reset") == "true"

		var snap latency.Snapshot
		if reset {
			snap = tracker.SnapshotAndReset(time.Now())
		} else {
			snap = tracker.Snapshot(time.Now())
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   newLatencyResponse(snap, reset),
		})
	}
}

// HandleLatencyReset clears the latency counters.
func HandleLatencyReset(tracker *latency.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tracker.Reset(time.Now())
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "latency counters reset",
		})
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/gossip"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/gin-gonic/gin"
)

// Broadcaster sends a batch config to the rest of the fleet.
type Broadcaster interface {
	BroadcastBatchConfig(cfg gossip.BatchConfig) error
}

// SetBatchRequest is the body of PUT /destinations/:id/batch. The hold time
// is given either as a duration string ("10ms") or in ticks; ticks win. A
// missing batch size reads as zero and is rejected by the workers' limits.
type SetBatchRequest struct {
	BatchSize    int    `json:"batchSize"`
	Timeout      string `json:"timeout,omitempty"`
	MaxHoldTicks uint64 `json:"maxHoldTicks,omitempty"`
	Broadcast    bool   `json:"broadcast,omitempty"`
}

// SetBatchResponse reports where a batch change took effect.
type SetBatchResponse struct {
	Destination    *admission.Info `json:"destination,omitempty"` // Local state after the change
	Applied        bool            `json:"applied"`               // Applied on this daemon
	Broadcast      bool            `json:"broadcast"`             // Sent to the fleet
	BroadcastError string          `json:"broadcastError,omitempty"`
}

// HandleDestinations lists every destination of this daemon.
func HandleDestinations(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := workerContext(c)
		defer cancel()

		dests, err := d.Destinations(ctx)
		if err != nil {
			respondWorkerError(c, "Failed to list destinations", err)
			return
		}
		if dests == nil {
			dests = []admission.Info{}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   dests,
			"count":  len(dests),
		})
	}
}

// HandleDestination returns one destination by id or name.
func HandleDestination(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("id")

		ctx, cancel := workerContext(c)
		defer cancel()

		info, err := d.Destination(ctx, ref)
		if err != nil {
			respondWorkerError(c, "Destination not found", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   info,
		})
	}
}

// HandleSetBatch changes the batching policy of a destination. The change
// applies to the next batch the destination opens. With broadcast set it is
// also sent to every daemon in the fleet, even when no local destination
// matches; a local rejection is never broadcast.
func HandleSetBatch(d Dispatcher, b Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("id")

		var req SetBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}

		settings := dispatch.Settings{
			BatchSize:    req.BatchSize,
			MaxHoldTicks: req.MaxHoldTicks,
		}
		if req.Timeout != "" {
			timeout, err := time.ParseDuration(req.Timeout)
			if err != nil || timeout <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "Invalid timeout",
					"details": fmt.Sprintf("timeout %q must be a positive duration", req.Timeout),
				})
				return
			}
			settings.Timeout = timeout
		}

		if req.Broadcast && b == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "Broadcast unavailable",
				"details": "gossip is disabled on this daemon",
			})
			return
		}

		ctx, cancel := workerContext(c)
		defer cancel()

		var resp SetBatchResponse
		err := d.Apply(ctx, ref, settings)
		switch {
		case err == nil:
			resp.Applied = true
			if info, lookupErr := d.Destination(ctx, ref); lookupErr == nil {
				resp.Destination = &info
			}
			logging.Info("Destination %s: batch size %d applied", ref, settings.BatchSize)
		case errors.Is(err, admission.ErrUnknownDestination) && req.Broadcast:
			logging.Debug("Destination %s not present locally, broadcasting only", ref)
		default:
			respondWorkerError(c, "Failed to apply batch config", err)
			return
		}

		if req.Broadcast {
			bErr := b.BroadcastBatchConfig(gossip.BatchConfig{
				Destination:  ref,
				BatchSize:    settings.BatchSize,
				Timeout:      settings.Timeout,
				MaxHoldTicks: settings.MaxHoldTicks,
			})
			if bErr != nil {
				logging.Warn("Destination %s: broadcast failed: %v", ref, bErr)
				resp.BroadcastError = bErr.Error()
			} else {
				resp.Broadcast = true
			}
		}

		status := http.StatusOK
		if !resp.Applied {
			if !resp.Broadcast {
				c.JSON(http.StatusBadGateway, gin.H{
					"error":   "Failed to broadcast batch config",
					"details": resp.BroadcastError,
				})
				return
			}
			status = http.StatusAccepted
		}
		c.JSON(status, gin.H{
			"status": "success",
			"data":   resp,
		})
	}
}

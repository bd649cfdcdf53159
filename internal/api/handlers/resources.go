package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/gin-gonic/gin"
)

// NodeResourcesResponse is one daemon host in API responses.
type NodeResourcesResponse struct {
	*resources.HostResources

	UptimeHuman       string `json:"uptimeHuman"`
	MemoryTotalMB     int    `json:"memoryTotalMB"`
	MemoryUsedMB      int    `json:"memoryUsedMB"`
	MemoryAvailableMB int    `json:"memoryAvailableMB"`
}

func newNodeResourcesResponse(res *resources.HostResources) NodeResourcesResponse {
	return NodeResourcesResponse{
		HostResources:     res,
		UptimeHuman:       formatDuration(res.Uptime),
		MemoryTotalMB:     int(res.MemoryTotal / (1024 * 1024)),
		MemoryUsedMB:      int(res.MemoryUsed / (1024 * 1024)),
		MemoryAvailableMB: int(res.MemoryAvailable / (1024 * 1024)),
	}
}

// formatDuration formats a duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd%dh", days, hours)
}

// HandleFleetResources returns the host snapshot of every daemon that
// answered the last resource query. Results are cached; `sort` accepts
// name, memory or uptime (newest daemons first).
func HandleFleetResources(cache *resources.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Resources unavailable",
				"details": "no resource source configured",
			})
			return
		}
		if c.Query("no_cache") == "true" {
			cache.Invalidate()
		}

		collected, err := cache.Get()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to collect resources",
				"details": err.Error(),
			})
			return
		}

		resList := make([]NodeResourcesResponse, 0, len(collected))
		for _, res := range collected {
			resList = append(resList, newNodeResourcesResponse(res))
		}

		switch c.DefaultQuery("sort", "uptime") {
		case "name":
			sort.Slice(resList, func(i, j int) bool {
				return resList[i].NodeName < resList[j].NodeName
			})
		case "memory":
			sort.Slice(resList, func(i, j int) bool {
				return resList[i].MemoryAvailable > resList[j].MemoryAvailable
			})
		default:
			sort.Slice(resList, func(i, j int) bool {
				return resList[i].Uptime < resList[j].Uptime
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   resList,
			"count":  len(resList),
		})
	}
}

// HandleNodeResources returns the host snapshot of one daemon, looked up by
// node name or node id.
func HandleNodeResources(cache *resources.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("id")
		if cache == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Resources unavailable",
				"details": "no resource source configured",
			})
			return
		}

		collected, err := cache.Get()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to collect resources",
				"details": err.Error(),
			})
			return
		}

		res, ok := collected[ref]
		if !ok {
			for _, candidate := range collected {
				if candidate.NodeID == ref {
					res, ok = candidate, true
					break
				}
			}
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Node not found",
				"details": fmt.Sprintf("no resources reported by node '%s'", ref),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   newNodeResourcesResponse(res),
		})
	}
}

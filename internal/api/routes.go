package api

import (
	"github.com/gin-gonic/gin"
)

// Configures all API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	v1.GET("/health", s.getHandlerHealth())

	dests := v1.Group("/destinations")
	{
		dests.GET("", s.getHandlerDestinations())
		dests.GET("/:id", s.getHandlerDestination())
		dests.PUT("/:id/batch", s.getHandlerSetBatch())
	}

	v1.GET("/stats", s.getHandlerStats())

	lat := v1.Group("/latency")
	{
		lat.GET("", s.getHandlerLatency())
		lat.POST("/reset", s.getHandlerLatencyReset())
	}

	v1.GET("/members", s.getHandlerMembers())

	res := v1.Group("/resources")
	{
		res.GET("", s.getHandlerFleetResources())
		res.GET("/:id", s.getHandlerNodeResources())
	}
}

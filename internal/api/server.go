// Package api provides the admin HTTP API of a pfbatch daemon.
//
// The API is how operators and pfbatchctl look at and steer a running
// daemon: destination listing and batch tuning, engine statistics, latency
// counters, fleet membership and host resources. It never touches
// scheduler state directly; handlers go through the dispatch workers'
// command channels.
//
// ROUTES (all under /api/v1):
//
//	GET  /health
//	GET  /destinations
//	GET  /destinations/:id
//	PUT  /destinations/:id/batch
//	GET  /stats
//	GET  /latency            (?reset=true reads and clears)
//	POST /latency/reset
//	GET  /members
//	GET  /resources
//	GET  /resources/:id
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/concave-dev/pfbatch/internal/api/handlers"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/netutil"
	"github.com/gin-gonic/gin"
)

// Server is the admin API server
type Server struct {
	config     *Config
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a server that binds its own port on Start.
func NewServer(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid api config: %w", err)
	}

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	if config.Stats.Dispatch == nil {
		config.Stats.Dispatch = config.Dispatch
	}
	return &Server{config: config}, nil
}

// NewServerWithListener creates a server on a listener reserved earlier in
// daemon startup.
func NewServerWithListener(config *Config, listener net.Listener) (*Server, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}
	s, err := NewServer(config)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	return s, nil
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return fmt.Sprintf("%s:%d", s.config.BindAddr, s.config.BindPort)
	}
	return s.listener.Addr().String()
}

// Start binds the port if needed and serves in the background.
func (s *Server) Start() error {
	if s.listener == nil {
		listener, err := netutil.NewPortBinder().BindTCP(s.config.BindAddr, s.config.BindPort)
		if err != nil {
			return err
		}
		s.listener = listener
	}

	logging.Info("Starting HTTP API server on %s", s.listener.Addr())

	// Configure Gin logging only if not already configured by CLI tools
	if !logging.IsConfiguredByCLI() {
		gin.DefaultWriter = logging.NewLevelWriter("DEBUG", "gin")
		gin.DefaultErrorWriter = logging.NewLevelWriter("ERROR", "gin")
	}

	s.httpServer = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener := s.listener
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed: %v", err)
		}
	}()

	logging.Success("HTTP API server started successfully")
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP API server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// router builds the gin engine with middleware and routes.
func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(s.loggingMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(gin.Recovery())
	s.setupRoutes(router)
	return router
}

func (s *Server) getHandlerHealth() gin.HandlerFunc {
	return handlers.HandleHealth(s.config.Version, s.config.Started, s.config.Dispatch)
}

func (s *Server) getHandlerDestinations() gin.HandlerFunc {
	return handlers.HandleDestinations(s.config.Dispatch)
}

func (s *Server) getHandlerDestination() gin.HandlerFunc {
	return handlers.HandleDestination(s.config.Dispatch)
}

func (s *Server) getHandlerSetBatch() gin.HandlerFunc {
	return handlers.HandleSetBatch(s.config.Dispatch, s.config.Broadcaster)
}

func (s *Server) getHandlerStats() gin.HandlerFunc {
	return handlers.HandleStats(s.config.Stats)
}

func (s *Server) getHandlerLatency() gin.HandlerFunc {
	return handlers.HandleLatency(s.config.Latency)
}

func (s *Server) getHandlerLatencyReset() gin.HandlerFunc {
	return handlers.HandleLatencyReset(s.config.Latency)
}

func (s *Server) getHandlerMembers() gin.HandlerFunc {
	return handlers.HandleMembers(s.config.Membership)
}

func (s *Server) getHandlerFleetResources() gin.HandlerFunc {
	return handlers.HandleFleetResources(s.config.Resources)
}

func (s *Server) getHandlerNodeResources() gin.HandlerFunc {
	return handlers.HandleNodeResources(s.config.Resources)
}

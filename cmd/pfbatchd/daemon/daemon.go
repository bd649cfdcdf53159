// Package daemon runs the pfbatch daemon.
//
// STARTUP ORDER:
//  1. Build the dispatch workers, destinations and flush pipeline.
//  2. Find a gossip port (UDP+TCP) and pre-bind the admin API listener,
//     so nothing starts unless every port is secured.
//  3. Start the dispatch workers, then gossip, then the API.
//  4. Join the fleet, then start the synthetic load.
//
// SHUTDOWN ORDER:
// The reverse: the API stops taking changes, the load stops, the workers
// drain every open batch to the pipeline and exit, and gossip leaves the
// fleet last so peers see a clean leave.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/cmd/pfbatchd/utils"
	"github.com/concave-dev/pfbatch/internal/api"
	"github.com/concave-dev/pfbatch/internal/gossip"
	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/names"
	"github.com/concave-dev/pfbatch/internal/netutil"
	"github.com/concave-dev/pfbatch/internal/resources"
	pfutils "github.com/concave-dev/pfbatch/internal/utils"
	"github.com/concave-dev/pfbatch/internal/version"
	"github.com/hashicorp/serf/serf"
)

// resourceCacheTTL bounds how often GET /resources queries the fleet
const resourceCacheTTL = 5 * time.Second

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run() error {
	logging.SetLevel(config.Global.LogLevel)
	logging.Info("Starting pfbatch daemon v%s", version.PfbatchdVersion)
	started := time.Now()

	if config.Global.NodeName == "" {
		config.Global.NodeName = names.Generate()
		logging.Info("Generated node name: %s", config.Global.NodeName)
	}
	logging.Info("Node: %s", config.Global.NodeName)

	n, err := buildNode(&config.Global, started)
	if err != nil {
		logging.Error("Failed to build dispatch workers: %v", err)
		return err
	}
	logging.Info("Dispatch: %d workers, %d destinations, batch size %d, max hold %v, tick %v",
		config.Global.Workers, config.Global.Destinations, config.Global.BatchSize,
		config.Global.Timeout, config.Global.Tick)

	// ============================================================================
	// PORTS: secure every port before any service starts
	// ============================================================================

	if !config.Global.NoGossip {
		if config.Global.IsExplicitlySet(config.SerfField) {
			logging.Info("Binding to %s:%d", config.Global.SerfAddr, config.Global.SerfPort)
			if err := utils.CheckPortAvailable(config.Global.SerfAddr, config.Global.SerfPort); err != nil {
				logging.Error("%v", err)
				return err
			}
		} else {
			originalSerfPort := config.Global.SerfPort
			logging.Info("Finding available Serf port starting from %d", originalSerfPort)
			port, err := utils.FindAvailablePort(config.Global.SerfAddr, originalSerfPort)
			if err != nil {
				logging.Error("Failed to find available Serf port starting from %d: %v", originalSerfPort, err)
				return fmt.Errorf("failed to find available Serf port: %w", err)
			}
			if port != originalSerfPort {
				logging.Warn("Default port %d was busy, using port %d for Serf", originalSerfPort, port)
				config.Global.SerfPort = port
			}
		}
	}

	portBinder := netutil.NewPortBinder()
	apiListener, apiPort, err := utils.PreBindServiceListener(
		"API", portBinder, config.Global.IsExplicitlySet(config.APIAddrField),
		config.Global.APIAddr, config.Global.APIPort)
	if err != nil {
		logging.Error("Failed to bind API listener: %v", err)
		return err
	}
	config.Global.APIPort = apiPort
	apiAddr := fmt.Sprintf("%s:%d", config.Global.APIAddr, config.Global.APIPort)

	if !config.Global.NoGossip {
		joinCommand := fmt.Sprintf("  %s --join=%s:%d", os.Args[0], config.Global.SerfAddr, config.Global.SerfPort)
		separator := strings.Repeat("-", max(len(joinCommand), 50))
		logging.Info("%s", separator)
		logging.Info("To join this node to the fleet, use:")
		logging.Info("%s", joinCommand)
		logging.Info("%s", separator)
	}

	// ============================================================================
	// SERVICES
	// ============================================================================

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatchDone := make(chan struct{})
	go func() {
		n.group.Run(dispatchCtx)
		close(dispatchDone)
	}()

	var manager *gossip.Manager
	var cache *resources.Cache
	var eventsWG sync.WaitGroup

	if config.Global.NoGossip {
		nodeID, err := pfutils.GenerateID()
		if err != nil {
			apiListener.Close()
			return fmt.Errorf("failed to generate node ID: %w", err)
		}
		nodeName := config.Global.NodeName
		cache = resources.NewCache(resourceCacheTTL, func() (map[string]*resources.HostResources, error) {
			return map[string]*resources.HostResources{
				nodeName: resources.Gather(nodeID, nodeName, started),
			}, nil
		})
	} else {
		gossipCfg := gossip.DefaultConfig()
		gossipCfg.BindAddr = config.Global.SerfAddr
		gossipCfg.BindPort = config.Global.SerfPort
		gossipCfg.NodeName = config.Global.NodeName
		gossipCfg.LogLevel = config.Global.LogLevel

		manager, err = gossip.NewManager(gossipCfg)
		if err != nil {
			apiListener.Close()
			logging.Error("Failed to create gossip manager: %v", err)
			return err
		}
		manager.SetApplier(gossip.ApplierFunc(n.applyBroadcast))

		logging.Info("Starting Serf gossip on %s:%d", config.Global.SerfAddr, config.Global.SerfPort)
		if err := manager.Start(); err != nil {
			apiListener.Close()
			logging.Error("Failed to start gossip: %v", err)
			return err
		}

		cache = resources.NewCache(resourceCacheTTL, manager.QueryResources)

		eventsWG.Add(1)
		go func() {
			defer eventsWG.Done()
			watchMembership(dispatchCtx, manager.ConsumerEventCh, cache)
		}()
	}

	apiCfg := api.DefaultConfig()
	apiCfg.BindAddr = config.Global.APIAddr
	apiCfg.BindPort = config.Global.APIPort
	apiCfg.Version = version.PfbatchdVersion
	apiCfg.Started = started
	apiCfg.Dispatch = n.group
	apiCfg.Latency = n.tracker
	apiCfg.Stats.Stages = n.stageStats
	apiCfg.Stats.Traffic = n.trafficStats
	apiCfg.Stats.Host = func() *resources.HostResources {
		nodeID := ""
		if manager != nil {
			nodeID = manager.NodeID
		}
		return resources.Gather(nodeID, config.Global.NodeName, started)
	}
	apiCfg.Resources = cache
	if manager != nil {
		apiCfg.Membership = manager
		apiCfg.Broadcaster = manager
	}

	logging.Info("Starting HTTP API server with pre-bound listener on %s", apiListener.Addr().String())
	apiServer, err := api.NewServerWithListener(apiCfg, apiListener)
	if err != nil {
		apiListener.Close()
		logging.Error("Failed to create API server: %v", err)
		return err
	}
	if err := apiServer.Start(); err != nil {
		logging.Error("Failed to start API server: %v", err)
		return err
	}

	if manager != nil {
		if err := manager.AdvertiseAPI(apiAddr); err != nil {
			logging.Warn("Failed to advertise API address: %v", err)
		}
	}

	if manager != nil && len(config.Global.JoinAddrs) > 0 {
		logging.Info("Joining fleet via %v", config.Global.JoinAddrs)
		if err := manager.Join(config.Global.JoinAddrs); err != nil {
			logging.Error("Failed to join fleet: %v", err)

			if netutil.IsConnectionRefusedError(err) {
				logging.Error("TIP: Check if the target node(s) are running and accessible")
				logging.Error("     You can verify with: pfbatchctl members")
			}

			if config.Global.StrictJoin {
				logging.Error("Strict join mode enabled: exiting due to fleet join failure")
				os.Exit(1)
			}

			logging.Warn("Continuing in isolation mode (use --strict-join to exit on join failure)")
		}
	}

	trafficCtx, stopTraffic := context.WithCancel(dispatchCtx)
	defer stopTraffic()
	trafficDone := make(chan struct{})
	if n.traffic != nil {
		logging.Info("Synthetic traffic: %d items/s in bursts of %d (every %v)",
			config.Global.Rate, config.Global.Burst, n.traffic.Interval())
		go func() {
			defer close(trafficDone)
			if err := n.traffic.Run(trafficCtx); err != nil {
				logging.Error("Traffic generator stopped: %v", err)
			}
		}()
	} else {
		close(trafficDone)
		logging.Info("Synthetic traffic disabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logging.Success("pfbatch daemon started successfully")
	logging.Info("Daemon running... Press Ctrl+C to shutdown")
	logging.Info("Node services started:")
	if manager != nil {
		logging.Info("  - Serf gossip: %s:%d", config.Global.SerfAddr, config.Global.SerfPort)
	} else {
		logging.Info("  - Serf gossip: disabled")
	}
	logging.Info("  - HTTP API: %s", apiAddr)

	sig := <-sigCh
	logging.Info("Received signal: %v", sig)

	// ============================================================================
	// GRACEFUL SHUTDOWN: API, traffic, dispatch drain, gossip
	// ============================================================================

	logging.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("Error shutting down API server: %v", err)
	}

	stopTraffic()
	<-trafficDone

	stopDispatch()
	<-dispatchDone
	eventsWG.Wait()

	if manager != nil {
		if err := manager.Shutdown(); err != nil {
			logging.Error("Error shutting down gossip: %v", err)
		}
	}

	logging.Success("pfbatch daemon shutdown completed")
	return nil
}

// watchMembership drops cached fleet resources whenever membership changes,
// so GET /resources reflects joins and failures on the next read.
func watchMembership(ctx context.Context, events <-chan serf.Event, cache *resources.Cache) {
	for {
		select {
		case event := <-events:
			if _, ok := event.(serf.MemberEvent); ok {
				logging.Debug("Membership changed (%s), invalidating resource cache", event.EventType())
				cache.Invalidate()
			}
		case <-ctx.Done():
			return
		}
	}
}

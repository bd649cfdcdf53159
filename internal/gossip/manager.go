// Package gossip connects pfbatch daemons into a fleet over Serf.
//
// The fleet has no leader and no replicated state. Gossip carries three
// things:
//
//   - Membership: every daemon tracks which peers are alive, along with the
//     admin API address each one advertises in its tags.
//   - Batch config broadcasts: `batch-config` user events carry a batching
//     change for a destination. Every daemon that owns a destination with
//     that id or name applies it locally. The sender applies it before
//     broadcasting and ignores its own event.
//   - Resource queries: a `get-resources` query asks every daemon for its
//     host snapshot.
//
// SWIM NOTES:
// Serf detects failures with randomized direct and indirect pings, and
// spreads events epidemically, so message load per node stays constant as
// the fleet grows. User events are delivered at least once and may be
// reordered; a batch config event is a full replacement of the settings,
// so applying it twice or late is harmless as long as operators do not
// race each other on the same destination.
package gossip

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/concave-dev/pfbatch/internal/utils"
	"github.com/hashicorp/serf/serf"
)

const (
	tagNodeID  = "node_id"
	tagAPIAddr = "api_addr"
)

// Member is a daemon in the fleet
type Member struct {
	ID      string            `json:"id"`      // Random hex node identifier
	Name    string            `json:"name"`    // Node name
	Addr    net.IP            `json:"addr"`    // Gossip IP address
	Port    uint16            `json:"port"`    // Gossip port
	APIAddr string            `json:"apiAddr"` // Advertised admin API address
	Status  serf.MemberStatus `json:"status"`  // Serf member status
	Tags    map[string]string `json:"tags"`    // User tags

	LastSeen time.Time `json:"lastSeen"`
}

// Manager owns the Serf instance of one daemon
type Manager struct {
	serf      *serf.Serf
	NodeID    string
	NodeName  string
	startTime time.Time

	// Serf writes into ingestEventQueue; processing never waits on the
	// optional consumer channel.
	ConsumerEventCh  chan serf.Event
	ingestEventQueue chan serf.Event

	applierMu sync.RWMutex
	applier   Applier

	memberLock sync.RWMutex
	members    map[string]*Member

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	config *Config
}

// NewManager creates a Manager. Start must be called before it joins a fleet.
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	nodeID, err := utils.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node ID: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		NodeID:           nodeID,
		NodeName:         config.NodeName,
		startTime:        time.Now(),
		ConsumerEventCh:  make(chan serf.Event, config.EventBufferSize),
		ingestEventQueue: make(chan serf.Event, config.EventBufferSize*2),
		members:          make(map[string]*Member),
		ctx:              ctx,
		cancel:           cancel,
		config:           config,
	}, nil
}

// SetApplier registers the local handler for batch config broadcasts.
func (m *Manager) SetApplier(a Applier) {
	m.applierMu.Lock()
	m.applier = a
	m.applierMu.Unlock()
}

// Start creates the Serf instance and starts the event processor
func (m *Manager) Start() error {
	logging.Info("Starting gossip for node %s (%s)", m.NodeName, m.NodeID)

	serfConfig := serf.DefaultConfig()

	if !logging.IsConfiguredByCLI() {
		logging.SetLevel(m.config.LogLevel)
	}

	// Logging has to be wired before Init()
	if m.config.LogLevel == "ERROR" {
		serfConfig.LogOutput = io.Discard
		serfConfig.MemberlistConfig.LogOutput = io.Discard
	} else {
		colorfulWriter := logging.NewColorfulSerfWriter()
		serfConfig.LogOutput = colorfulWriter
		serfConfig.MemberlistConfig.LogOutput = colorfulWriter
	}

	serfConfig.Init()
	serfConfig.NodeName = m.NodeName
	serfConfig.MemberlistConfig.BindAddr = m.config.BindAddr
	serfConfig.MemberlistConfig.BindPort = m.config.BindPort
	serfConfig.MemberlistConfig.DeadNodeReclaimTime = m.config.DeadNodeReclaimTime
	serfConfig.EventCh = m.ingestEventQueue
	serfConfig.Tags = m.buildNodeTags()

	var err error
	m.serf, err = serf.Create(serfConfig)
	if err != nil {
		return fmt.Errorf("failed to create serf instance: %w", err)
	}

	m.wg.Add(1)
	go m.processEvents()

	m.addMember(m.serf.LocalMember())

	logging.Success("Gossip started on %s:%d", m.config.BindAddr, m.config.BindPort)
	return nil
}

// Join joins an existing fleet through one or more seed addresses, retrying
// with a linear backoff.
func (m *Manager) Join(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("no join addresses provided")
	}
	if m.serf == nil {
		return fmt.Errorf("gossip not started")
	}

	logging.Info("Attempting to join fleet via %v", addresses)

	type joinResult struct {
		n   int
		err error
	}

	var lastErr error
	for attempt := 1; attempt <= m.config.JoinRetries; attempt++ {
		joinDone := make(chan joinResult, 1)
		go func() {
			n, err := m.serf.Join(addresses, false)
			joinDone <- joinResult{n, err}
		}()

		timer := time.NewTimer(m.config.JoinTimeout)
		select {
		case result := <-joinDone:
			timer.Stop()
			if result.err == nil {
				logging.Success("Joined fleet, discovered %d nodes", result.n)
				return nil
			}
			lastErr = result.err
			logging.Warn("Join attempt %d/%d failed: %v", attempt, m.config.JoinRetries, result.err)

		case <-timer.C:
			lastErr = fmt.Errorf("join attempt timed out after %v", m.config.JoinTimeout)
			logging.Warn("Join attempt %d/%d timed out after %v",
				attempt, m.config.JoinRetries, m.config.JoinTimeout)
		}

		if attempt < m.config.JoinRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to join fleet after %d attempts: %w", m.config.JoinRetries, lastErr)
}

// Shutdown leaves the fleet and stops the event processor
func (m *Manager) Shutdown() error {
	logging.Info("Shutting down gossip")

	m.cancel()

	if m.serf != nil {
		if err := m.serf.Leave(); err != nil {
			logging.Warn("Error during graceful leave: %v", err)
		}
		if err := m.serf.Shutdown(); err != nil {
			logging.Error("Error shutting down Serf: %v", err)
		}
	}

	m.wg.Wait()
	logging.Success("Gossip shutdown completed")
	return nil
}

// Members returns a copy of all known members, keyed by node id
func (m *Manager) Members() map[string]*Member {
	m.memberLock.RLock()
	defer m.memberLock.RUnlock()

	members := make(map[string]*Member, len(m.members))
	for id, node := range m.members {
		members[id] = copyMember(node)
	}
	return members
}

// Member returns one member by node id or name
func (m *Manager) Member(ref string) (*Member, bool) {
	m.memberLock.RLock()
	defer m.memberLock.RUnlock()

	if node, ok := m.members[ref]; ok {
		return copyMember(node), true
	}
	for _, node := range m.members {
		if node.Name == ref {
			return copyMember(node), true
		}
	}
	return nil, false
}

// LocalMember returns this daemon's own member record
func (m *Manager) LocalMember() *Member {
	member, _ := m.Member(m.NodeID)
	return member
}

func copyMember(node *Member) *Member {
	nodeCopy := *node
	nodeCopy.Tags = make(map[string]string, len(node.Tags))
	for k, v := range node.Tags {
		nodeCopy.Tags[k] = v
	}
	return &nodeCopy
}

// QueryResources asks every member for its host snapshot. It returns what
// arrived before the query timeout, keyed by node name.
func (m *Manager) QueryResources() (map[string]*resources.HostResources, error) {
	if m.serf == nil {
		return nil, fmt.Errorf("gossip not started")
	}

	expected := len(m.Members())
	logging.Debug("Querying resources from %d fleet members", expected)

	resp, err := m.serf.Query(queryResources, nil, &serf.QueryParam{
		RequestAck: true,
		Timeout:    m.config.QueryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send %s query: %w", queryResources, err)
	}
	defer resp.Close()

	collected := make(map[string]*resources.HostResources, expected)

	// One extra second covers response collection after the query deadline
	deadline := time.NewTimer(m.config.QueryTimeout + time.Second)
	defer deadline.Stop()

	for len(collected) < expected {
		select {
		case response, ok := <-resp.ResponseCh():
			if !ok {
				return collected, nil
			}
			res, err := resources.FromJSON(response.Payload)
			if err != nil {
				logging.Warn("Failed to parse resources from node %s: %v", response.From, err)
				continue
			}
			collected[response.From] = res

		case <-deadline.C:
			logging.Warn("Timeout waiting for resource responses, got %d of %d", len(collected), expected)
			return collected, nil
		}
	}

	return collected, nil
}

// buildNodeTags constructs the tags map for this node
func (m *Manager) buildNodeTags() map[string]string {
	tags := make(map[string]string, len(m.config.Tags)+2)
	for k, v := range m.config.Tags {
		tags[k] = v
	}
	tags[tagNodeID] = m.NodeID
	return tags
}

// AdvertiseAPI publishes the admin API address in this node's tags
func (m *Manager) AdvertiseAPI(addr string) error {
	if m.serf == nil {
		return fmt.Errorf("gossip not started")
	}
	tags := m.buildNodeTags()
	tags[tagAPIAddr] = addr
	if err := m.serf.SetTags(tags); err != nil {
		return fmt.Errorf("failed to advertise api address: %w", err)
	}
	m.updateMember(m.serf.LocalMember())
	return nil
}

package gossip

import (
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/hashicorp/serf/serf"
)

const queryResources = "get-resources"

// processEvents handles Serf events. Internal handling always runs; the
// event is then offered to ConsumerEventCh and dropped if nobody reads it.
func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.ingestEventQueue:
			m.handleEvent(event)

			select {
			case m.ConsumerEventCh <- event:
			default:
				logging.Debug("Event channel full, dropping event: %T", event)
			}

		case <-m.ctx.Done():
			logging.Debug("Gossip event processor shutting down")
			return
		}
	}
}

func (m *Manager) handleEvent(event serf.Event) {
	switch e := event.(type) {
	case serf.MemberEvent:
		m.handleMemberEvent(e)
	case serf.UserEvent:
		m.handleUserEvent(e)
	case *serf.Query:
		m.handleQuery(e)
	default:
		logging.Debug("Received unhandled event type: %T", event)
	}
}

// ============================================================================
// MEMBER EVENTS
// ============================================================================

func (m *Manager) handleMemberEvent(event serf.MemberEvent) {
	for _, member := range event.Members {
		switch event.EventType() {
		case serf.EventMemberJoin:
			logging.Info("Node joined: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.addMember(member)

		case serf.EventMemberLeave:
			logging.Info("Node left: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.removeMember(member)

		case serf.EventMemberFailed:
			logging.Warn("Node failed: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.updateMemberStatus(member, serf.StatusFailed)

		case serf.EventMemberUpdate:
			logging.Debug("Node updated: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.updateMember(member)

		case serf.EventMemberReap:
			logging.Info("Node reaped: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.removeMember(member)
		}
	}
}

func (m *Manager) addMember(member serf.Member) {
	node := memberFromSerf(member)

	m.memberLock.Lock()
	m.members[node.ID] = node
	m.memberLock.Unlock()
}

func (m *Manager) updateMember(member serf.Member) {
	node := memberFromSerf(member)

	m.memberLock.Lock()
	if existing, ok := m.members[node.ID]; ok && member.Status != serf.StatusAlive {
		node.LastSeen = existing.LastSeen
	}
	m.members[node.ID] = node
	m.memberLock.Unlock()
}

func (m *Manager) updateMemberStatus(member serf.Member, status serf.MemberStatus) {
	m.memberLock.Lock()
	if node, ok := m.members[memberID(member)]; ok {
		node.Status = status
		if status == serf.StatusAlive {
			node.LastSeen = time.Now()
		}
	}
	m.memberLock.Unlock()
}

func (m *Manager) removeMember(member serf.Member) {
	m.memberLock.Lock()
	delete(m.members, memberID(member))
	m.memberLock.Unlock()
}

// memberID is the node_id tag, falling back to the name for peers that
// do not carry one
func memberID(member serf.Member) string {
	if id := member.Tags[tagNodeID]; id != "" {
		return id
	}
	return member.Name
}

func memberFromSerf(member serf.Member) *Member {
	node := &Member{
		ID:       memberID(member),
		Name:     member.Name,
		Addr:     member.Addr,
		Port:     member.Port,
		APIAddr:  member.Tags[tagAPIAddr],
		Status:   member.Status,
		Tags:     make(map[string]string, len(member.Tags)),
		LastSeen: time.Now(),
	}

	for k, v := range member.Tags {
		if k == tagNodeID || k == tagAPIAddr {
			continue
		}
		node.Tags[k] = v
	}
	return node
}

// ============================================================================
// USER EVENTS
// ============================================================================

func (m *Manager) handleUserEvent(event serf.UserEvent) {
	switch event.Name {
	case eventBatchConfig:
		m.handleBatchConfig(event.Payload)
	default:
		logging.Debug("Received unknown user event: %s", event.Name)
	}
}

// ============================================================================
// QUERIES
// ============================================================================

func (m *Manager) handleQuery(query *serf.Query) {
	switch query.Name {
	case queryResources:
		res := resources.Gather(m.NodeID, m.NodeName, m.startTime)
		payload, err := res.ToJSON()
		if err != nil {
			logging.Error("Failed to encode resources: %v", err)
			return
		}
		if err := query.Respond(payload); err != nil {
			logging.Warn("Failed to answer %s query: %v", query.Name, err)
		}
	default:
		logging.Debug("Received unknown query: %s", query.Name)
	}
}

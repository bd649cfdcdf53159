package gossip

import (
	"context"
	"net"
	"testing"

	"github.com/hashicorp/serf/serf"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	config := DefaultConfig()
	config.NodeName = "edge-1"
	config.BindAddr = "127.0.0.1"
	config.Tags["zone"] = "a"

	m, err := NewManager(config)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

// TestNewManager tests Manager creation
func TestNewManager(t *testing.T) {
	m := newTestManager(t)

	if len(m.NodeID) != 12 {
		t.Errorf("Expected 12 character node id, got %q", m.NodeID)
	}
	if m.NodeName != "edge-1" {
		t.Errorf("NodeName = %q, want edge-1", m.NodeName)
	}
	if m.ConsumerEventCh == nil || m.ingestEventQueue == nil {
		t.Error("Event channels should be created")
	}

	if _, err := NewManager(&Config{NodeName: ""}); err == nil {
		t.Error("Expected error for invalid config")
	}

	if err := m.BroadcastBatchConfig(BatchConfig{Destination: "1"}); err == nil {
		t.Error("Expected error broadcasting before Start")
	}
}

// TestBuildNodeTags tests system tags are added next to user tags
func TestBuildNodeTags(t *testing.T) {
	m := newTestManager(t)
	tags := m.buildNodeTags()

	if tags["zone"] != "a" {
		t.Errorf("User tag missing: %v", tags)
	}
	if tags[tagNodeID] != m.NodeID {
		t.Errorf("node_id tag = %q, want %q", tags[tagNodeID], m.NodeID)
	}
}

// TestMemberTracking tests join, failure and removal bookkeeping
func TestMemberTracking(t *testing.T) {
	m := newTestManager(t)

	peer := serf.Member{
		Name:   "edge-2",
		Addr:   net.ParseIP("10.0.0.2"),
		Port:   4300,
		Tags:   map[string]string{tagNodeID: "abc123", tagAPIAddr: "10.0.0.2:8118", "zone": "b"},
		Status: serf.StatusAlive,
	}

	m.handleEvent(serf.MemberEvent{Type: serf.EventMemberJoin, Members: []serf.Member{peer}})

	got, ok := m.Member("abc123")
	if !ok {
		t.Fatal("Joined member not tracked")
	}
	if got.APIAddr != "10.0.0.2:8118" {
		t.Errorf("APIAddr = %q", got.APIAddr)
	}
	if _, reserved := got.Tags[tagNodeID]; reserved {
		t.Error("Reserved tags should not be exposed as user tags")
	}
	if byName, ok := m.Member("edge-2"); !ok || byName.ID != "abc123" {
		t.Error("Member lookup by name failed")
	}

	got.Tags["zone"] = "mutated"
	if again, _ := m.Member("abc123"); again.Tags["zone"] != "b" {
		t.Error("Returned member shares tags with internal state")
	}

	m.handleEvent(serf.MemberEvent{Type: serf.EventMemberFailed, Members: []serf.Member{peer}})
	if failed, _ := m.Member("abc123"); failed.Status != serf.StatusFailed {
		t.Errorf("Expected failed status, got %v", failed.Status)
	}

	m.handleEvent(serf.MemberEvent{Type: serf.EventMemberLeave, Members: []serf.Member{peer}})
	if _, ok := m.Member("abc123"); ok {
		t.Error("Departed member still tracked")
	}
}

// TestHandleBatchConfig tests applying received broadcasts
func TestHandleBatchConfig(t *testing.T) {
	m := newTestManager(t)

	var applied []BatchConfig
	m.SetApplier(ApplierFunc(func(ctx context.Context, cfg BatchConfig) error {
		if cfg.Destination == "missing" {
			return ErrNotOwned
		}
		applied = append(applied, cfg)
		return nil
	}))

	send := func(cfg BatchConfig) {
		payload, err := encodeBatchConfig(cfg)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		m.handleEvent(serf.UserEvent{Name: eventBatchConfig, Payload: payload})
	}

	send(BatchConfig{Origin: "edge-2", Destination: "fold-1", BatchSize: 32, MaxHoldTicks: 10})
	send(BatchConfig{Origin: "edge-1", Destination: "fold-1", BatchSize: 64})
	send(BatchConfig{Origin: "edge-2", Destination: "missing", BatchSize: 32})
	m.handleEvent(serf.UserEvent{Name: eventBatchConfig, Payload: []byte("not json")})
	m.handleEvent(serf.UserEvent{Name: "other", Payload: nil})

	if len(applied) != 1 {
		t.Fatalf("Expected exactly one applied config, got %d", len(applied))
	}
	if applied[0].BatchSize != 32 || applied[0].MaxHoldTicks != 10 {
		t.Errorf("Unexpected applied config: %+v", applied[0])
	}
}

// TestDecodeBatchConfig tests payload validation
func TestDecodeBatchConfig(t *testing.T) {
	if _, err := decodeBatchConfig([]byte(`{"batchSize":32}`)); err == nil {
		t.Error("Expected error for missing destination")
	}
	if _, err := decodeBatchConfig([]byte(`{`)); err == nil {
		t.Error("Expected error for malformed payload")
	}

	cfg, err := decodeBatchConfig([]byte(`{"origin":"edge-2","destination":"3","batchSize":16,"timeout":2000000}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.Destination != "3" || cfg.Timeout.Milliseconds() != 2 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}

package gossip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
)

const eventBatchConfig = "batch-config"

// applyTimeout bounds how long a received broadcast may wait on the local
// dispatch workers.
const applyTimeout = 5 * time.Second

// BatchConfig is the payload of a batch-config broadcast.
type BatchConfig struct {
	Origin       string        `json:"origin"`                 // Node name of the sender
	Destination  string        `json:"destination"`            // Destination id or name
	BatchSize    int           `json:"batchSize"`              // New batch size threshold
	Timeout      time.Duration `json:"timeout,omitempty"`      // Hold time as a duration
	MaxHoldTicks uint64        `json:"maxHoldTicks,omitempty"` // Hold time in ticks, wins over Timeout
}

// Applier applies a received batch config to the local daemon. It returns
// ErrNotOwned when no local destination matches.
type Applier interface {
	ApplyBatchConfig(ctx context.Context, cfg BatchConfig) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, cfg BatchConfig) error

// ApplyBatchConfig calls f.
func (f ApplierFunc) ApplyBatchConfig(ctx context.Context, cfg BatchConfig) error {
	return f(ctx, cfg)
}

// ErrNotOwned signals that a broadcast names no local destination.
var ErrNotOwned = errors.New("destination not present on this node")

func encodeBatchConfig(cfg BatchConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

func decodeBatchConfig(payload []byte) (BatchConfig, error) {
	var cfg BatchConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Destination == "" {
		return cfg, fmt.Errorf("batch config without destination")
	}
	return cfg, nil
}

// BroadcastBatchConfig sends cfg to every member. The sender is expected to
// have applied it locally already; its own copy is ignored on receipt.
func (m *Manager) BroadcastBatchConfig(cfg BatchConfig) error {
	if m.serf == nil {
		return fmt.Errorf("gossip not started")
	}

	cfg.Origin = m.NodeName
	payload, err := encodeBatchConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode batch config: %w", err)
	}

	if err := m.serf.UserEvent(eventBatchConfig, payload, false); err != nil {
		return fmt.Errorf("failed to broadcast batch config: %w", err)
	}

	logging.Info("Broadcast batch config for destination %s: batch size %d", cfg.Destination, cfg.BatchSize)
	return nil
}

func (m *Manager) handleBatchConfig(payload []byte) {
	cfg, err := decodeBatchConfig(payload)
	if err != nil {
		logging.Warn("Ignoring malformed %s event: %v", eventBatchConfig, err)
		return
	}
	if cfg.Origin == m.NodeName {
		return
	}

	m.applierMu.RLock()
	applier := m.applier
	m.applierMu.RUnlock()
	if applier == nil {
		logging.Debug("No applier registered, ignoring %s event from %s", eventBatchConfig, cfg.Origin)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, applyTimeout)
	defer cancel()

	switch err := applier.ApplyBatchConfig(ctx, cfg); {
	case err == nil:
		logging.Info("Applied batch config from %s to destination %s", cfg.Origin, cfg.Destination)
	case errors.Is(err, ErrNotOwned):
		logging.Debug("Destination %s from %s not present locally", cfg.Destination, cfg.Origin)
	default:
		logging.Warn("Rejected batch config from %s for destination %s: %v", cfg.Origin, cfg.Destination, err)
	}
}

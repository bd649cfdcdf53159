package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/config"
	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/gossip"
)

func testNodeConfig() *config.Config {
	return &config.Config{
		Workers:       2,
		Tick:          time.Millisecond,
		Budget:        config.DefaultBudget,
		Slots:         64,
		RunQueueShift: 4,
		Backing:       "ring",
		MaxBurst:      config.DefaultMaxBurst,
		Destinations:  3,
		BatchSize:     16,
		Timeout:       5 * time.Millisecond,
	}
}

func runNode(t *testing.T, n *node) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.group.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// TestBuildNode tests worker, destination and stage wiring
func TestBuildNode(t *testing.T) {
	n, err := buildNode(testNodeConfig(), time.Now())
	if err != nil {
		t.Fatalf("buildNode failed: %v", err)
	}
	if n.traffic != nil {
		t.Error("Expected no traffic generator with rate 0")
	}
	if got := len(n.group.Engines()); got != 2 {
		t.Errorf("Expected 2 workers, got %d", got)
	}

	stats := n.stageStats()
	if len(stats) != 5 {
		t.Fatalf("Expected 3 fold and 2 egress stages, got %d", len(stats))
	}
	for i, s := range stats[:3] {
		if want := config.DestinationName(batchpool.DestinationID(i + 1)); s.Name != want {
			t.Errorf("Stage %d named %q, want %q", i, s.Name, want)
		}
	}
	if stats[3].Name != "egress-0" || stats[4].Name != "egress-1" {
		t.Errorf("Unexpected egress stages: %q, %q", stats[3].Name, stats[4].Name)
	}

	if got := n.trafficStats(); got.Items != 0 {
		t.Errorf("Expected empty traffic stats, got %+v", got)
	}
}

// TestBuildNodeWithTraffic tests the generator is created when a rate is set
func TestBuildNodeWithTraffic(t *testing.T) {
	cfg := testNodeConfig()
	cfg.Rate = 1000
	cfg.Burst = 10
	cfg.Payload = 32

	n, err := buildNode(cfg, time.Now())
	if err != nil {
		t.Fatalf("buildNode failed: %v", err)
	}
	if n.traffic == nil {
		t.Fatal("Expected a traffic generator")
	}
	if n.traffic.Interval() != 10*time.Millisecond {
		t.Errorf("Expected 10ms burst interval, got %v", n.traffic.Interval())
	}
}

// TestBuildNodeRejectsBadBacking tests engine config errors surface
func TestBuildNodeRejectsBadBacking(t *testing.T) {
	cfg := testNodeConfig()
	cfg.Backing = "heap"
	if _, err := buildNode(cfg, time.Now()); err == nil {
		t.Error("Expected error for unknown backing")
	}
}

// TestFullBatchReachesStage tests a threshold flush travels through the
// router and the egress fan-out
func TestFullBatchReachesStage(t *testing.T) {
	n, err := buildNode(testNodeConfig(), time.Now())
	if err != nil {
		t.Fatalf("buildNode failed: %v", err)
	}
	runNode(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items := make([]batchpool.Item, 16)
	for i := range items {
		items[i] = batchpool.Item{
			Buffer:   uint32(i + 1),
			Src:      [4]byte{10, 0, 0, byte(i)},
			Protocol: 1,
			Payload:  make([]byte, 32),
		}
	}
	if err := n.group.Submit(ctx, 2, items); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats := n.stageStats()
		if s := stats[1]; s.Batches == 1 && s.Items == 16 && stats[3].Items+stats[4].Items == 16 {
			// Even and odd source octets split evenly over two egress stages
			if stats[3].Items != 8 || stats[4].Items != 8 {
				t.Errorf("Unexpected egress split: %+v, %+v", stats[3], stats[4])
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("Batch never reached stage fold-2: %+v", n.stageStats()[1])
}

// TestApplyBroadcast tests gossip batch configs map onto local workers
func TestApplyBroadcast(t *testing.T) {
	n, err := buildNode(testNodeConfig(), time.Now())
	if err != nil {
		t.Fatalf("buildNode failed: %v", err)
	}
	runNode(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		cfg     gossip.BatchConfig
		wantErr error
	}{
		{
			name: "by_name",
			cfg:  gossip.BatchConfig{Destination: "fold-3", BatchSize: 64, MaxHoldTicks: 7},
		},
		{
			name:    "not_owned",
			cfg:     gossip.BatchConfig{Destination: "fold-9", BatchSize: 64},
			wantErr: gossip.ErrNotOwned,
		},
		{
			name:    "out_of_range",
			cfg:     gossip.BatchConfig{Destination: "1", BatchSize: 4},
			wantErr: admission.ErrInvalidBatchSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.applyBroadcast(ctx, tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("applyBroadcast failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	info, err := n.group.Destination(ctx, "fold-3")
	if err != nil {
		t.Fatalf("Destination failed: %v", err)
	}
	if info.Config.BatchSizeThreshold != 64 || info.Config.MaxHoldTicks != 7 {
		t.Errorf("Broadcast not applied: %+v", info.Config)
	}
}

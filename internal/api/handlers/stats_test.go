package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/pipeline"
	"github.com/concave-dev/pfbatch/internal/resources"
	"github.com/concave-dev/pfbatch/internal/traffic"
)

// TestHandleStats tests per-worker snapshots are summed
func TestHandleStats(t *testing.T) {
	src := StatsSource{
		Dispatch: newFakeDispatcher(),
		Stages: func() []pipeline.StageStats {
			return []pipeline.StageStats{{Name: "fold-1", Batches: 3, Items: 40}}
		},
		Traffic: func() traffic.Stats { return traffic.Stats{Bursts: 7, Items: 224} },
		Host: func() *resources.HostResources {
			return &resources.HostResources{NodeName: "edge-1", Uptime: time.Minute}
		},
	}

	w, env := serve(t, "GET", "/stats", "/stats", HandleStats(src), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}

	if len(resp.Workers) != 2 {
		t.Fatalf("workers = %d, want 2", len(resp.Workers))
	}
	want := dispatch.Counters{Admitted: 15, Released: 5, TimedOut: 1}
	if resp.Totals != want {
		t.Errorf("totals = %+v, want %+v", resp.Totals, want)
	}
	if resp.Backlog != 3 || resp.Armed != 1 {
		t.Errorf("backlog = %d armed = %d, want 3 and 1", resp.Backlog, resp.Armed)
	}
	if len(resp.Stages) != 1 || resp.Stages[0].Items != 40 {
		t.Errorf("stages = %+v", resp.Stages)
	}
	if resp.Traffic == nil || resp.Traffic.Items != 224 {
		t.Errorf("traffic = %+v", resp.Traffic)
	}
	if resp.Host == nil || resp.Host.NodeName != "edge-1" {
		t.Errorf("host = %+v", resp.Host)
	}
}

// TestHandleStatsOptionalSources tests only the dispatcher is required
func TestHandleStatsOptionalSources(t *testing.T) {
	w, env := serve(t, "GET", "/stats", "/stats", HandleStats(StatsSource{Dispatch: newFakeDispatcher()}), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}
	if resp.Traffic != nil || resp.Host != nil || resp.Stages != nil {
		t.Errorf("Expected optional sections to be omitted: %+v", resp)
	}

	d := newFakeDispatcher()
	d.err = dispatch.ErrStopped
	w, _ = serve(t, "GET", "/stats", "/stats", HandleStats(StatsSource{Dispatch: d}), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

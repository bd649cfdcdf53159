package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/internal/latency"
)

func newTestTracker() *latency.Tracker {
	tr := latency.NewTracker(time.Millisecond, time.Now().Add(-time.Second))
	tr.Record(1, 500*time.Microsecond, 100)
	tr.Record(1, 3*time.Millisecond, 100)
	tr.Record(2, 200*time.Microsecond, 50)
	return tr
}

// TestHandleLatency tests the latency table and show-and-reset
func TestHandleLatency(t *testing.T) {
	tr := newTestTracker()

	w, env := serve(t, "GET", "/latency", "/latency", HandleLatency(tr), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp LatencyResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}
	if resp.Total.Packets != 3 || resp.Total.Timeouts != 1 || resp.Total.Bytes != 250 {
		t.Errorf("total = %+v", resp.Total)
	}
	if len(resp.Protocols) != 2 {
		t.Fatalf("protocols = %d, want 2", len(resp.Protocols))
	}
	if resp.Protocols[0].Protocol != 1 || resp.Protocols[0].AverageLatency != 1750*time.Microsecond {
		t.Errorf("protocol 1 row = %+v", resp.Protocols[0])
	}
	if resp.Reset {
		t.Error("plain read should not reset")
	}

	w, env = serve(t, "GET", "/latency?reset=true", "/latency", HandleLatency(tr), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}
	if !resp.Reset || resp.Total.Packets != 3 {
		t.Errorf("show-and-reset should return the old counters: %+v", resp)
	}

	if after := tr.Snapshot(time.Now()); after.Total.Packets != 0 {
		t.Errorf("counters not reset: %+v", after.Total)
	}
}

// TestHandleLatencyReset tests the explicit reset endpoint
func TestHandleLatencyReset(t *testing.T) {
	tr := newTestTracker()

	w, env := serve(t, "POST", "/latency/reset", "/latency/reset", HandleLatencyReset(tr), nil)
	if w.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("status = %d %q", w.Code, env.Status)
	}
	if after := tr.Snapshot(time.Now()); after.Total.Packets != 0 || len(after.Protocols) != 0 {
		t.Errorf("counters not reset: %+v", after)
	}
}

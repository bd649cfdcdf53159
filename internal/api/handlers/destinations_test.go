package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/dispatch"
)

// TestHandleDestinations tests listing destinations
func TestHandleDestinations(t *testing.T) {
	d := newFakeDispatcher()
	w, env := serve(t, "GET", "/destinations", "/destinations", HandleDestinations(d), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if env.Count != 2 {
		t.Errorf("count = %d, want 2", env.Count)
	}

	var dests []admission.Info
	if err := json.Unmarshal(env.Data, &dests); err != nil {
		t.Fatalf("Failed to parse data: %v", err)
	}
	if dests[0].Name != "fold-1" || dests[1].Name != "fold-2" {
		t.Errorf("Unexpected destinations: %+v", dests)
	}

	d.err = dispatch.ErrStopped
	w, env = serve(t, "GET", "/destinations", "/destinations", HandleDestinations(d), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("stopped engine status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if env.Error == "" {
		t.Error("Expected error summary")
	}
}

// TestHandleDestination tests lookup by id and name
func TestHandleDestination(t *testing.T) {
	d := newFakeDispatcher()

	tests := []struct {
		ref    string
		status int
		name   string
	}{
		{ref: "1", status: http.StatusOK, name: "fold-1"},
		{ref: "fold-2", status: http.StatusOK, name: "fold-2"},
		{ref: "missing", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			w, env := serve(t, "GET", "/destinations/"+tt.ref, "/destinations/:id", HandleDestination(d), nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var info admission.Info
			if err := json.Unmarshal(env.Data, &info); err != nil {
				t.Fatalf("Failed to parse data: %v", err)
			}
			if info.Name != tt.name {
				t.Errorf("name = %q, want %q", info.Name, tt.name)
			}
		})
	}
}

// TestHandleSetBatch tests batch changes, validation and broadcast
func TestHandleSetBatch(t *testing.T) {
	tests := []struct {
		name          string
		ref           string
		body          any
		noBroadcaster bool
		broadcastErr  error
		status        int
		wantError     string
		wantApplied   bool
		wantBroadcast int
	}{
		{
			name:        "apply size and timeout",
			ref:         "fold-1",
			body:        SetBatchRequest{BatchSize: 64, Timeout: "20ms"},
			status:      http.StatusOK,
			wantApplied: true,
		},
		{
			name:      "batch size below range",
			ref:       "fold-1",
			body:      SetBatchRequest{BatchSize: 8},
			status:    http.StatusBadRequest,
			wantError: "invalid batch size nothing changed",
		},
		{
			name:      "batch size above range",
			ref:       "1",
			body:      SetBatchRequest{BatchSize: 1024, Broadcast: true},
			status:    http.StatusBadRequest,
			wantError: "invalid batch size nothing changed",
		},
		{
			name:      "missing batch size",
			ref:       "fold-1",
			body:      `{"timeout":"10ms"}`,
			status:    http.StatusBadRequest,
			wantError: "invalid batch size nothing changed",
		},
		{
			name:      "zero batch size",
			ref:       "fold-1",
			body:      `{"batchSize":0}`,
			status:    http.StatusBadRequest,
			wantError: "invalid batch size nothing changed",
		},
		{
			name:      "malformed body",
			ref:       "fold-1",
			body:      `{"batchSize":`,
			status:    http.StatusBadRequest,
			wantError: "Invalid request body",
		},
		{
			name:      "malformed timeout",
			ref:       "fold-1",
			body:      SetBatchRequest{BatchSize: 32, Timeout: "soon"},
			status:    http.StatusBadRequest,
			wantError: "Invalid timeout",
		},
		{
			name:   "unknown destination",
			ref:    "missing",
			body:   SetBatchRequest{BatchSize: 32},
			status: http.StatusNotFound,
		},
		{
			name:          "apply and broadcast",
			ref:           "fold-2",
			body:          SetBatchRequest{BatchSize: 32, MaxHoldTicks: 5, Broadcast: true},
			status:        http.StatusOK,
			wantApplied:   true,
			wantBroadcast: 1,
		},
		{
			name:          "broadcast only for remote destination",
			ref:           "remote-sink",
			body:          SetBatchRequest{BatchSize: 32, Broadcast: true},
			status:        http.StatusAccepted,
			wantBroadcast: 1,
		},
		{
			name:         "remote destination broadcast failure",
			ref:          "remote-sink",
			body:         SetBatchRequest{BatchSize: 32, Broadcast: true},
			broadcastErr: errors.New("gossip down"),
			status:       http.StatusBadGateway,
			wantError:    "Failed to broadcast batch config",
		},
		{
			name:          "broadcast without gossip",
			ref:           "fold-1",
			body:          SetBatchRequest{BatchSize: 32, Broadcast: true},
			noBroadcaster: true,
			status:        http.StatusConflict,
			wantError:     "Broadcast unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDispatcher()
			fb := &fakeBroadcaster{err: tt.broadcastErr}
			var b Broadcaster = fb
			if tt.noBroadcaster {
				b = nil
			}

			w, env := serve(t, "PUT", "/destinations/"+tt.ref+"/batch", "/destinations/:id/batch", HandleSetBatch(d, b), tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if tt.wantError != "" && env.Error != tt.wantError {
				t.Errorf("error = %q, want %q", env.Error, tt.wantError)
			}
			if len(fb.sent) != tt.wantBroadcast {
				t.Errorf("broadcasts = %d, want %d", len(fb.sent), tt.wantBroadcast)
			}
			if tt.status >= 300 {
				if len(d.applied) != 0 {
					t.Errorf("rejected request changed settings: %+v", d.applied)
				}
				return
			}

			var resp SetBatchResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatalf("Failed to parse data: %v", err)
			}
			if resp.Applied != tt.wantApplied {
				t.Errorf("applied = %v, want %v", resp.Applied, tt.wantApplied)
			}
			if tt.wantApplied && (resp.Destination == nil || resp.Destination.Config.BatchSizeThreshold != d.applied[0].BatchSize) {
				t.Errorf("response does not show the new config: %+v", resp.Destination)
			}
		})
	}
}

// TestHandleSetBatchTimeoutConversion tests the duration reaches the workers
func TestHandleSetBatchTimeoutConversion(t *testing.T) {
	d := newFakeDispatcher()
	fb := &fakeBroadcaster{}

	w, _ := serve(t, "PUT", "/destinations/fold-1/batch", "/destinations/:id/batch",
		HandleSetBatch(d, fb), SetBatchRequest{BatchSize: 16, Timeout: "1500us", Broadcast: true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if len(d.applied) != 1 || d.applied[0].Timeout != 1500*time.Microsecond {
		t.Errorf("applied settings = %+v", d.applied)
	}
	if len(fb.sent) != 1 || fb.sent[0].Timeout != 1500*time.Microsecond || fb.sent[0].Destination != "fold-1" {
		t.Errorf("broadcast = %+v", fb.sent)
	}
	if !strings.Contains(w.Body.String(), `"broadcast":true`) {
		t.Errorf("Expected broadcast flag in %s", w.Body.String())
	}
}

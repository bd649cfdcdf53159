package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/concave-dev/pfbatch/internal/admission"
	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/dispatch"
	"github.com/concave-dev/pfbatch/internal/gossip"
	"github.com/gin-gonic/gin"
)

// fakeDispatcher keeps destinations in a map and validates like a registry.
type fakeDispatcher struct {
	dests   map[string]*admission.Info
	applied []dispatch.Settings
	err     error
}

func newFakeDispatcher() *fakeDispatcher {
	d := &fakeDispatcher{dests: make(map[string]*admission.Info)}
	for id, name := range map[int]string{1: "fold-1", 2: "fold-2"} {
		d.dests[name] = &admission.Info{
			ID:     batchpool.DestinationID(id),
			Name:   name,
			Config: admission.DefaultConfig(),
		}
	}
	return d
}

func (d *fakeDispatcher) lookup(ref string) (*admission.Info, bool) {
	if info, ok := d.dests[ref]; ok {
		return info, true
	}
	for _, info := range d.dests {
		if strconv.Itoa(int(info.ID)) == ref {
			return info, true
		}
	}
	return nil, false
}

func (d *fakeDispatcher) Destinations(ctx context.Context) ([]admission.Info, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]admission.Info, 0, len(d.dests))
	for _, name := range []string{"fold-1", "fold-2"} {
		out = append(out, *d.dests[name])
	}
	return out, nil
}

func (d *fakeDispatcher) Destination(ctx context.Context, ref string) (admission.Info, error) {
	if info, ok := d.lookup(ref); ok {
		return *info, nil
	}
	return admission.Info{}, fmt.Errorf("destination %q: %w", ref, admission.ErrUnknownDestination)
}

func (d *fakeDispatcher) Apply(ctx context.Context, ref string, s dispatch.Settings) error {
	info, ok := d.lookup(ref)
	if !ok {
		return fmt.Errorf("destination %q: %w", ref, admission.ErrUnknownDestination)
	}
	cfg := admission.Config{BatchSizeThreshold: s.BatchSize, MaxHoldTicks: info.Config.MaxHoldTicks}
	if s.MaxHoldTicks > 0 {
		cfg.MaxHoldTicks = s.MaxHoldTicks
	}
	if err := admission.DefaultLimits().Check(cfg); err != nil {
		return fmt.Errorf("configure destination %s: %w", info.Name, err)
	}
	info.Config = cfg
	d.applied = append(d.applied, s)
	return nil
}

func (d *fakeDispatcher) Snapshots(ctx context.Context) ([]dispatch.Snapshot, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []dispatch.Snapshot{
		{Worker: 0, Backlog: 2, ArmedTimers: 1, Counters: dispatch.Counters{Admitted: 10, Released: 3}},
		{Worker: 1, Backlog: 1, Counters: dispatch.Counters{Admitted: 5, Released: 2, TimedOut: 1}},
	}, nil
}

// fakeBroadcaster records broadcasts.
type fakeBroadcaster struct {
	sent []gossip.BatchConfig
	err  error
}

func (b *fakeBroadcaster) BroadcastBatchConfig(cfg gossip.BatchConfig) error {
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, cfg)
	return nil
}

// envelope is the success response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
}

func serve(t *testing.T, method, path, route string, h gin.HandlerFunc, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Handle(method, route, h)

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("Failed to encode body: %v", err)
			}
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return w, env
}

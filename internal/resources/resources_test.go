package resources

import (
	"errors"
	"runtime"
	"testing"
	"time"
)

// TestGather tests the core resource gathering logic
func TestGather(t *testing.T) {
	startTime := time.Now().Add(-time.Hour)

	res := Gather("a1b2c3d4e5f6", "edge-1", startTime)

	if res.NodeID != "a1b2c3d4e5f6" || res.NodeName != "edge-1" {
		t.Errorf("Unexpected identity: %s/%s", res.NodeID, res.NodeName)
	}
	if time.Since(res.Timestamp) > time.Minute {
		t.Error("Gather().Timestamp should be recent")
	}

	diff := res.Uptime - time.Since(startTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Second {
		t.Errorf("Uptime calculation incorrect: got %v", res.Uptime)
	}

	if res.CPUCores != runtime.NumCPU() {
		t.Errorf("Gather().CPUCores = %d, want %d", res.CPUCores, runtime.NumCPU())
	}
	if res.MemoryTotal == 0 {
		t.Error("Gather().MemoryTotal should be positive")
	}
	if res.GoRoutines <= 0 {
		t.Errorf("Gather().GoRoutines = %d, should be positive", res.GoRoutines)
	}

	data, err := res.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if back.NodeName != res.NodeName || back.MemoryTotal != res.MemoryTotal {
		t.Errorf("Snapshot changed in transit: %+v", back)
	}

	if _, err := FromJSON([]byte("{")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

// TestCache tests TTL hits, refresh and stale fallback
func TestCache(t *testing.T) {
	now := time.Unix(0, 0)
	calls := 0
	fail := false

	c := NewCache(10*time.Second, func() (map[string]*HostResources, error) {
		calls++
		if fail {
			return nil, errors.New("query failed")
		}
		return map[string]*HostResources{"edge-1": {NodeName: "edge-1", CPUCores: calls}}, nil
	})
	c.now = func() time.Time { return now }

	first, err := c.Get()
	if err != nil || first["edge-1"].CPUCores != 1 {
		t.Fatalf("Unexpected first fetch: %v, %v", first, err)
	}

	now = now.Add(5 * time.Second)
	if again, _ := c.Get(); again["edge-1"].CPUCores != 1 || calls != 1 {
		t.Errorf("Expected cache hit within TTL, calls=%d", calls)
	}

	now = now.Add(10 * time.Second)
	fail = true
	stale, err := c.Get()
	if err != nil || stale["edge-1"].CPUCores != 1 {
		t.Errorf("Expected previous data on refresh failure, got %v, %v", stale, err)
	}

	fail = false
	fresh, _ := c.Get()
	if fresh["edge-1"].CPUCores != 3 {
		t.Errorf("Expected refreshed data, got %d", fresh["edge-1"].CPUCores)
	}

	c.Invalidate()
	fail = true
	if _, err := c.Get(); err == nil {
		t.Error("Expected error with nothing cached and a failing fetch")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 4 || s.Errors != 2 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

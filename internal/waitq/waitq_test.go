package waitq

import (
	"testing"

	"github.com/concave-dev/pfbatch/internal/batchpool"
	"github.com/concave-dev/pfbatch/internal/runq"
)

// markExpired returns an expiry callback that flags live batches as timed
// out and drops stale handles
func markExpired(pool *batchpool.Pool, calls *int) ExpireFunc {
	return func(expired []batchpool.Handle) []batchpool.Handle {
		*calls++
		live := expired[:0]
		for _, h := range expired {
			b, ok := pool.Lookup(h)
			if !ok {
				continue
			}
			b.TimedOut = true
			b.HasTimer = false
			live = append(live, h)
		}
		return live
	}
}

func newTestQueue(t *testing.T, pool *batchpool.Pool, calls *int) *WaitQueue {
	t.Helper()
	wq, err := New(Config{SlotsPerRing: 64, RunQueueShift: 1}, markExpired(pool, calls))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return wq
}

// TestExpiredBatchesMoveToRunQueue tests that expiry marks the batch and queues it
func TestExpiredBatchesMoveToRunQueue(t *testing.T) {
	pool := batchpool.New(8)
	calls := 0
	wq := newTestQueue(t, pool, &calls)

	var handles []batchpool.Handle
	for i := 0; i < 5; i++ {
		h := pool.Alloc(batchpool.DestinationID(i), 0)
		wq.StartTimer(h, 10)
		handles = append(handles, h)
	}

	if got := wq.Advance(9); len(got) != 0 {
		t.Fatalf("Expected nothing before deadline, got %v", got)
	}
	if calls != 0 {
		t.Errorf("Callback invoked without expirations")
	}

	expired := wq.Advance(1)
	if len(expired) != 5 {
		t.Fatalf("Expected 5 expired handles, got %d", len(expired))
	}
	if calls != 1 {
		t.Errorf("Expected exactly one callback per advance, got %d", calls)
	}
	if wq.Len() != 5 {
		t.Fatalf("Expected 5 ready handles, got %d", wq.Len())
	}
	if wq.RunQueueGrows() != 1 {
		t.Errorf("Expected bulk push to grow the run queue once, got %d", wq.RunQueueGrows())
	}

	for wq.Len() > 0 {
		h, _ := wq.Pop()
		b, ok := pool.Lookup(h)
		if !ok {
			t.Fatalf("Queued handle %s is stale", h)
		}
		if !b.TimedOut {
			t.Errorf("Batch %s not marked timed out", h)
		}
	}
}

// TestStaleHandleDropped tests that a batch recycled without stopping its
// timer is ignored at expiry
func TestStaleHandleDropped(t *testing.T) {
	pool := batchpool.New(4)
	calls := 0
	wq := newTestQueue(t, pool, &calls)

	stale := pool.Alloc(1, 0)
	wq.StartTimer(stale, 5)
	if err := pool.Recycle(stale); err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}

	reused := pool.Alloc(2, 0)
	if reused.Index() != stale.Index() {
		t.Fatalf("Expected slot reuse")
	}

	expired := wq.Advance(5)
	if len(expired) != 0 {
		t.Errorf("Expected stale handle to be dropped, got %v", expired)
	}
	if wq.Len() != 0 {
		t.Errorf("Stale handle reached the run queue")
	}

	b, _ := pool.Lookup(reused)
	if b.TimedOut {
		t.Error("Reused slot was marked timed out by a stale timer")
	}
}

// TestStoppedTimerNotQueued tests that stopping a timer keeps its batch out of the run queue
func TestStoppedTimerNotQueued(t *testing.T) {
	pool := batchpool.New(4)
	calls := 0
	wq := newTestQueue(t, pool, &calls)

	h := pool.Alloc(1, 0)
	id := wq.StartTimer(h, 3)
	if err := wq.StopTimer(id); err != nil {
		t.Fatalf("StopTimer failed: %v", err)
	}
	if err := wq.StopTimer(id); err == nil {
		t.Error("Expected duplicate stop to fail")
	}

	if expired := wq.Advance(10); len(expired) != 0 {
		t.Errorf("Stopped timer expired: %v", expired)
	}
	if wq.Armed() != 0 {
		t.Errorf("Expected no armed timers, got %d", wq.Armed())
	}
}

// TestNewRequiresCallback tests constructor validation
func TestNewRequiresCallback(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Error("Expected error without expiry callback")
	}

	cfg := DefaultConfig()
	cfg.RunQueueShift = 40
	if _, err := New(cfg, func(h []batchpool.Handle) []batchpool.Handle { return h }); err == nil {
		t.Error("Expected error for oversized run queue")
	}

	cfg = DefaultConfig()
	cfg.Backing = runq.Stack
	wq, err := New(cfg, func(h []batchpool.Handle) []batchpool.Handle { return h })
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if wq.RunQueueCap() != 256 {
		t.Errorf("Expected run queue capacity 256, got %d", wq.RunQueueCap())
	}
}

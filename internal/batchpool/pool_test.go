package batchpool

import (
	"errors"
	"testing"
)

// TestAllocLookup tests that a fresh handle resolves to an empty batch
func TestAllocLookup(t *testing.T) {
	p := New(4)
	h := p.Alloc(7, 100)

	if h == 0 {
		t.Fatal("Alloc returned the zero handle")
	}

	b, ok := p.Lookup(h)
	if !ok {
		t.Fatal("Lookup failed for fresh handle")
	}
	if b.Destination != 7 || b.CreatedAt != 100 {
		t.Errorf("Unexpected batch fields: dest=%d created=%d", b.Destination, b.CreatedAt)
	}
	if b.Count() != 0 || b.TimedOut || b.HasTimer {
		t.Errorf("Expected empty batch, got %+v", b)
	}
	if p.Len() != 1 {
		t.Errorf("Expected 1 live batch, got %d", p.Len())
	}
}

// TestRecycleInvalidatesHandle tests the generation guard on recycled slots
func TestRecycleInvalidatesHandle(t *testing.T) {
	p := New(1)
	h := p.Alloc(1, 0)

	b, _ := p.Lookup(h)
	b.Items = append(b.Items, Item{Buffer: 9, Payload: []byte{1, 2}})
	b.TimedOut = true

	if err := p.Recycle(h); err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}
	if _, ok := p.Lookup(h); ok {
		t.Error("Lookup succeeded for recycled handle")
	}

	err := p.Recycle(h)
	if !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Expected ErrStaleHandle on double recycle, got %v", err)
	}

	fresh := p.Alloc(2, 5)
	if fresh.Index() != h.Index() {
		t.Fatalf("Expected slot reuse, got %s after %s", fresh, h)
	}
	if fresh.Generation() == h.Generation() {
		t.Fatal("Reused slot kept its generation")
	}
	if _, ok := p.Lookup(h); ok {
		t.Error("Old handle resolves to the new occupant")
	}

	nb, ok := p.Lookup(fresh)
	if !ok {
		t.Fatal("Lookup failed for fresh handle")
	}
	if nb.Count() != 0 || nb.TimedOut || nb.Destination != 2 {
		t.Errorf("Recycled slot not reset: %+v", nb)
	}
}

// TestFreeSlotsReusedFIFO tests that the oldest freed slot is reused first
func TestFreeSlotsReusedFIFO(t *testing.T) {
	p := New(4)
	a := p.Alloc(0, 0)
	b := p.Alloc(0, 0)
	c := p.Alloc(0, 0)

	for _, h := range []Handle{b, a, c} {
		if err := p.Recycle(h); err != nil {
			t.Fatalf("Recycle(%s) failed: %v", h, err)
		}
	}

	want := []uint32{b.Index(), a.Index(), c.Index()}
	for i, idx := range want {
		got := p.Alloc(0, 0)
		if got.Index() != idx {
			t.Errorf("Alloc %d: expected slot %d, got %d", i, idx, got.Index())
		}
	}
	if p.Cap() != 3 {
		t.Errorf("Expected no new slots, cap=%d", p.Cap())
	}
}

// TestLookupUnknownHandle tests handles that were never issued
func TestLookupUnknownHandle(t *testing.T) {
	p := New(2)
	p.Alloc(0, 0)

	tests := []struct {
		name string
		h    Handle
	}{
		{name: "zero handle", h: 0},
		{name: "out of range", h: makeHandle(50, 1)},
		{name: "wrong generation", h: makeHandle(0, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := p.Lookup(tt.h); ok {
				t.Errorf("Lookup(%s) should fail", tt.h)
			}
		})
	}
}

// TestPointerStableAcrossGrowth tests that a looked-up batch survives later allocations
func TestPointerStableAcrossGrowth(t *testing.T) {
	p := New(1)
	h := p.Alloc(3, 0)
	b, _ := p.Lookup(h)

	for i := 0; i < 100; i++ {
		p.Alloc(0, 0)
	}
	b.Items = append(b.Items, Item{Buffer: 1})

	again, _ := p.Lookup(h)
	if again.Count() != 1 {
		t.Errorf("Expected batch mutation to be visible, count=%d", again.Count())
	}
}

package hybrid

import (
	"testing"
	"time"

	"github.com/ValentinKolb/hIndex/lib/index"
)

// quietOptions parks the background controller so tests can drive
// controllerTick deterministically by hand.
func quietOptions() *Options {
	o := testOptions()
	o.TickInterval = time.Hour
	return o
}

// tickN simulates n controller ticks against a synthetic workload mix.
func tickN(h *Index, n int, inserts, lookups uint64) {
	for i := 0; i < n; i++ {
		h.workload.inserts.Store(inserts)
		h.workload.lookups.Store(lookups)
		h.controllerTick()
	}
}

func TestThetaBackoffUnderInserts(t *testing.T) {
	h := newTestIndex(t, []int{3, 1}, quietOptions())

	start := h.Theta()

	// pure insert load: theta must rise ...
	tickN(h, 10, 1000, 0)
	if h.Theta() <= start {
		t.Errorf("Theta must rise under insert-heavy load: %v -> %v", start, h.Theta())
	}

	// ... but never past the insert-heavy cap
	tickN(h, 500, 1000, 0)
	if got := h.Theta(); got > thetaInsertHeavyCap {
		t.Errorf("Theta exceeded the insert-heavy cap: %v", got)
	}
}

func TestThetaDecayUnderLookups(t *testing.T) {
	h := newTestIndex(t, []int{5, 1}, quietOptions())

	start := h.Theta()

	tickN(h, 10, 0, 1000)
	if h.Theta() >= start {
		t.Errorf("Theta must fall under lookup-heavy load: %v -> %v", start, h.Theta())
	}

	// the floor bounds the decay
	tickN(h, 2000, 0, 1000)
	if got := h.Theta(); got < thetaMin {
		t.Errorf("Theta fell below the floor: %v", got)
	}
	if got := h.Theta(); got != thetaMin {
		t.Errorf("Theta should converge to the floor %v, got %v", thetaMin, got)
	}
}

func TestThetaMixedDrift(t *testing.T) {
	h := newTestIndex(t, []int{5, 1}, quietOptions())

	// balanced mix drifts down but never below 0.01
	tickN(h, 2000, 500, 500)
	if got := h.Theta(); got != 0.01 {
		t.Errorf("Mixed load should settle at 0.01, got %v", got)
	}
}

func TestThetaBoundsInvariant(t *testing.T) {
	h := newTestIndex(t, []int{30, 1}, quietOptions())

	mixes := []struct{ ins, lk uint64 }{
		{1000, 0}, {0, 1000}, {500, 500}, {900, 100}, {100, 900},
	}
	for _, m := range mixes {
		for i := 0; i < 200; i++ {
			h.workload.inserts.Store(m.ins)
			h.workload.lookups.Store(m.lk)
			h.controllerTick()

			if theta := h.Theta(); theta < thetaMin || theta > thetaMax {
				t.Fatalf("Theta %v escaped [%v, %v] at mix %+v", theta, thetaMin, thetaMax, m)
			}
		}
	}
}

func TestFixedThetaWhenAdaptiveOff(t *testing.T) {
	h := newTestIndex(t, []int{5, 0}, quietOptions())

	start := h.Theta()
	tickN(h, 100, 1000, 0)
	tickN(h, 100, 0, 1000)

	if got := h.Theta(); got != start {
		t.Errorf("Theta must stay fixed with adaptive_mode=0: %v -> %v", start, got)
	}
}

func TestIdleTickSkipsAdjustment(t *testing.T) {
	h := newTestIndex(t, []int{5, 1}, quietOptions())

	start := h.Theta()
	for i := 0; i < 50; i++ {
		h.controllerTick() // no workload at all
	}
	if got := h.Theta(); got != start {
		t.Errorf("Idle ticks must not move theta: %v -> %v", start, got)
	}
}

func TestBatchTargetFollowsThetaAndSize(t *testing.T) {
	h := newTestIndex(t, []int{5, 0}, quietOptions())

	// empty DPI clamps the target to 1
	tickN(h, 1, 10, 10)
	if got := h.batchTarget.Load(); got != 1 {
		t.Errorf("Empty index: expected batch target 1, got %d", got)
	}

	// 10k DPI entries at theta 0.05 => 500
	entries := make([]index.Entry, 10_000)
	for i := range entries {
		entries[i] = index.Entry{Key: uint64(i + 1), Value: 1}
	}
	if _, err := h.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tickN(h, 1, 10, 10)
	if got := h.batchTarget.Load(); got != 500 {
		t.Errorf("Expected batch target 500, got %d", got)
	}
}

func TestBatchTargetClampedToBatchMax(t *testing.T) {
	opts := quietOptions()
	opts.BatchMax = 100
	h := newTestIndex(t, []int{30, 0}, opts)

	entries := make([]index.Entry, 10_000)
	for i := range entries {
		entries[i] = index.Entry{Key: uint64(i + 1), Value: 1}
	}
	if _, err := h.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tickN(h, 1, 10, 10)
	if got := h.batchTarget.Load(); got != 100 {
		t.Errorf("Expected batch target clamped to 100, got %d", got)
	}
}

func TestWorkloadCountersResetPerTick(t *testing.T) {
	h := newTestIndex(t, []int{5, 1}, quietOptions())

	h.workload.inserts.Store(100)
	h.workload.lookups.Store(50)
	h.controllerTick()

	i, l, m := h.workload.snapshot()
	if i != 0 || l != 0 || m != 0 {
		t.Errorf("Counters must reset after a tick, got (%d,%d,%d)", i, l, m)
	}
}

func TestFlushParamsSwitchWithRatio(t *testing.T) {
	h := newTestIndex(t, nil, quietOptions())

	// insert-heavy: small batches, short deadline
	h.workload.inserts.Store(900)
	h.workload.lookups.Store(100)
	minBatch, maxWait := h.flushParams()
	if minBatch != h.opts.MinBatchInsertHeavy || maxWait != h.opts.MaxWaitInsertHeavy {
		t.Errorf("Insert-heavy flush params wrong: (%d,%v)", minBatch, maxWait)
	}

	// lookup-heavy: defaults
	h.workload.inserts.Store(100)
	h.workload.lookups.Store(900)
	minBatch, maxWait = h.flushParams()
	if minBatch != h.opts.MinBatchDefault || maxWait != h.opts.MaxWaitDefault {
		t.Errorf("Default flush params wrong: (%d,%v)", minBatch, maxWait)
	}
}

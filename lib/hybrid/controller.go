package hybrid

import (
	"time"
)

// The adaptive controller reshapes the migration threshold theta from the
// observed insert/lookup mix and ages out stale key statistics. It is the
// only component that removes keyStats entries.

// controllerLoop is the controller goroutine.
func (h *Index) controllerLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.controllerTick()
		}
	}
}

// controllerTick runs one controller iteration:
//
//  1. age out key stats whose last access is older than the stats TTL
//  2. compute r = inserts/(inserts+lookups); skip the adjustment if idle
//  3. move theta with the workload mix (bounded by [thetaMin, thetaMax])
//  4. publish the worker's batch target from theta and the DPI size
//  5. reset the workload counters
//
// Aging runs before the idle check on purpose: an idle index must still
// forget stale keys.
func (h *Index) controllerTick() {
	now := h.nowNs()

	if dropped := h.stats.age(now, h.opts.StatsTTL.Nanoseconds()); dropped > 0 {
		h.met.statsAged.Add(dropped)
	}

	r, ok := h.workload.insertRatio()
	if !ok {
		return
	}

	if h.adaptive {
		h.adjustTheta(r)
	}

	h.publishBatchTarget()

	h.workload.reset()
}

// adjustTheta applies the threshold update rule:
//
//   - insert-heavy (r > 0.7): grow theta slowly toward 0.1 — too many
//     migrations during a write storm harm throughput
//   - lookup-heavy (r < 0.3): shrink theta toward the floor — migrate more
//     aggressively to cash in on lookups
//   - mixed: drift down gently toward 0.01
func (h *Index) adjustTheta(r float64) {
	theta := h.theta()

	switch {
	case r > ratioInsertHeavy:
		theta *= 1.02
		if theta > thetaInsertHeavyCap {
			theta = thetaInsertHeavyCap
		}
	case r < ratioLookupHeavy:
		theta *= 0.98
		if theta < thetaMin {
			theta = thetaMin
		}
	default:
		theta *= 0.99
		if theta < 0.01 {
			theta = 0.01
		}
	}

	h.setTheta(theta)
}

// publishBatchTarget recomputes the worker's batch target as theta times the
// current DPI population, clamped to [1, BatchMax].
func (h *Index) publishBatchTarget() {
	h.tierMu.RLock()
	dpiSize := h.dpi.Size()
	h.tierMu.RUnlock()

	target := int(h.theta() * float64(dpiSize))
	if target < 1 {
		target = 1
	}
	if target > h.opts.BatchMax {
		target = h.opts.BatchMax
	}
	h.batchTarget.Store(int64(target))
}

package hybrid

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Per-Key Statistics
// --------------------------------------------------------------------------

// keyStats tracks the access history of one key. All fields are atomics so
// the lookup fast path can update them without taking the core lock; the
// controller is the only component that removes entries.
type keyStats struct {
	accessCount   atomic.Uint32 // monotone between aging passes
	consecutive   atomic.Uint32 // reset when accesses are not close in time
	lastAccess    atomic.Int64  // monotonic ns of the latest access
	lastMigration atomic.Int64  // monotonic ns of the latest hot declaration
	isHot         atomic.Bool
}

// statsTable is the detector's state: a concurrent map of keyStats, created
// lazily on first access and aged out by the controller.
type statsTable struct {
	m *xsync.MapOf[uint64, *keyStats]
}

func newStatsTable() *statsTable {
	return &statsTable{m: xsync.NewMapOf[uint64, *keyStats]()}
}

// accessResult is the detector's verdict for one recorded access.
type accessResult struct {
	newlyHot   bool // the key crossed a hot threshold just now
	kickWorker bool // consecutive burst long enough to wake the worker
}

// record updates the statistics for key at monotonic time nowNs and applies
// the hot classification:
//
//   - accesses closer together than window count as consecutive
//   - hot if consecutive >= hotConsecutive, or if accessCount >= hotCount
//     and the key's last migration is older than the cooldown
//
// Thread-safety: safe for concurrent use; the per-key update is not atomic
// across fields, which can cost an increment under a race but never
// decreases a counter.
func (t *statsTable) record(key uint64, nowNs int64, o *Options) accessResult {
	stats, _ := t.m.LoadOrCompute(key, func() *keyStats {
		return &keyStats{}
	})

	last := stats.lastAccess.Load()
	var consecutive uint32
	if last != 0 && nowNs-last < o.ConsecutiveWindow.Nanoseconds() {
		consecutive = stats.consecutive.Add(1)
	} else {
		stats.consecutive.Store(1)
		consecutive = 1
	}

	count := stats.accessCount.Add(1)
	stats.lastAccess.Store(nowNs)

	lastMig := stats.lastMigration.Load()
	cooldownOver := lastMig == 0 || nowNs-lastMig >= o.MigrationCooldown.Nanoseconds()
	hot := consecutive >= o.HotConsecutive ||
		(count >= o.HotCount && cooldownOver)

	res := accessResult{
		kickWorker: consecutive >= o.KickConsecutive,
	}

	if hot && stats.isHot.CompareAndSwap(false, true) {
		stats.lastMigration.Store(nowNs)
		res.newlyHot = true
	}

	return res
}

// isHot reports whether the detector currently classifies key as hot.
func (t *statsTable) isHot(key uint64) bool {
	stats, ok := t.m.Load(key)
	return ok && stats.isHot.Load()
}

// clearHot resets the hot flag for key. The worker calls this when a
// migration rolls back: without the reset the one-way latch in record would
// keep the key from ever being re-detected as newly hot, stranding it in DPI.
func (t *statsTable) clearHot(key uint64) {
	if stats, ok := t.m.Load(key); ok {
		stats.isHot.Store(false)
	}
}

// age drops every entry whose last access is older than ttlNs before nowNs.
// It returns the number of dropped entries.
func (t *statsTable) age(nowNs, ttlNs int64) int {
	dropped := 0
	t.m.Range(func(key uint64, stats *keyStats) bool {
		if nowNs-stats.lastAccess.Load() > ttlNs {
			t.m.Delete(key)
			dropped++
		}
		return true
	})
	return dropped
}

// hotCandidates calls fn for keys the detector considers hot right now,
// stopping when fn returns false. Used by the worker's second batch pass.
func (t *statsTable) hotCandidates(fn func(key uint64) bool) {
	t.m.Range(func(key uint64, stats *keyStats) bool {
		if stats.isHot.Load() {
			return fn(key)
		}
		return true
	})
}

// size returns the number of tracked keys.
func (t *statsTable) size() int {
	return t.m.Size()
}

// clear removes all entries.
func (t *statsTable) clear() {
	t.m.Clear()
}

// --------------------------------------------------------------------------
// Workload Statistics
// --------------------------------------------------------------------------

// workloadStats holds the monotone operation counters the adaptive controller
// derives the insert/lookup ratio from. The controller's reset is not atomic
// across fields; an increment lost at the tick boundary is tolerated.
type workloadStats struct {
	inserts    atomic.Uint64
	lookups    atomic.Uint64
	migrations atomic.Uint64
}

// snapshot returns the current counter values.
func (w *workloadStats) snapshot() (inserts, lookups, migrations uint64) {
	return w.inserts.Load(), w.lookups.Load(), w.migrations.Load()
}

// reset zeroes all counters.
func (w *workloadStats) reset() {
	w.inserts.Store(0)
	w.lookups.Store(0)
	w.migrations.Store(0)
}

// insertRatio computes inserts/(inserts+lookups); ok is false when no
// operations were observed.
func (w *workloadStats) insertRatio() (r float64, ok bool) {
	i := w.inserts.Load()
	l := w.lookups.Load()
	total := i + l
	if total == 0 {
		return 0, false
	}
	return float64(i) / float64(total), true
}

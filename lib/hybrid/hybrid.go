package hybrid

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/hIndex/lib/index"
	"github.com/ValentinKolb/hIndex/lib/index/engines/dpgm"
	"github.com/ValentinKolb/hIndex/lib/index/engines/litree"
	"github.com/ValentinKolb/hIndex/lib/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Composite Structure
// --------------------------------------------------------------------------

// Index is the composite ordered-key index. See the package documentation
// for the tier protocol and the locking discipline.
//
// Thread-safety: the public API is single-writer — at most one foreground
// goroutine may call the mutating operations. The background worker and
// controller goroutines are owned by the Index and joined on Close.
type Index struct {
	opts     Options
	adaptive bool

	dpi     index.OrderedIndex
	lit     index.OrderedIndex
	litBulk index.BulkLoadable

	// tierMu guards the two engines, which are not internally synchronized.
	// Foreground reads take the read side; foreground writes and the worker's
	// BULKLOAD/EVICT phases take the write side.
	tierMu sync.RWMutex

	// mu is the core lock: migration queue and flush bookkeeping.
	mu          sync.Mutex
	queue       *migrationQueue
	lastFlushNs int64 // guarded by mu

	stats  *statsTable
	hotSet *xsync.MapOf[uint64, struct{}]

	workload workloadStats

	thetaBits   atomic.Uint64 // float64 bits of the migration threshold
	batchTarget atomic.Int64

	insertsSince int // single foreground writer, no synchronization needed

	inProgress atomic.Bool // one migration at a time, CAS-transitioned
	stopped    atomic.Bool

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	base time.Time // origin of the monotonic timestamps
	log  *logger.Logger
	met  *indexMetrics
}

// New creates a composite index from the positional parameter vector
// ([migration_threshold_pct, adaptive_mode], both optional) and the named
// options. The background worker and controller start immediately.
func New(paramVec []int, opts *Options) (*Index, error) {
	p, err := parseParams(paramVec)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	o.normalize()

	h := &Index{
		opts:     o,
		adaptive: p.adaptive,
		dpi: dpgm.NewDPGM(&dpgm.Options{
			Epsilon: o.Epsilon,
			Search:  o.Search,
		}),
		lit:    litree.NewLITree(nil),
		queue:  newMigrationQueue(),
		stats:  newStatsTable(),
		hotSet: xsync.NewMapOf[uint64, struct{}](),
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		base:   time.Now(),
		log:    logger.New(o.Name),
		met:    newIndexMetrics(o.Name),
	}
	h.litBulk = h.lit.(index.BulkLoadable)

	h.setTheta(p.theta)
	h.batchTarget.Store(1)

	h.wg.Add(2)
	go h.workerLoop()
	go h.controllerLoop()

	return h, nil
}

// nowNs returns a steady monotonic timestamp in nanoseconds.
func (h *Index) nowNs() int64 {
	return time.Since(h.base).Nanoseconds()
}

func (h *Index) theta() float64 {
	return math.Float64frombits(h.thetaBits.Load())
}

func (h *Index) setTheta(v float64) {
	if v < thetaMin {
		v = thetaMin
	}
	if v > thetaMax {
		v = thetaMax
	}
	h.thetaBits.Store(math.Float64bits(v))
}

// --------------------------------------------------------------------------
// Public Operations
// --------------------------------------------------------------------------

// Build bulk-initializes both tiers from the entry set, replacing any prior
// contents, and resets all migration state. With the default policy the DPI
// side takes the full set and LIT is pre-warmed with a contiguous sample from
// the middle of the sorted input; BuildPolicyFullLIT loads LIT fully and
// leaves DPI empty. Returns the elapsed wall time.
func (h *Index) Build(entries []index.Entry, parallelism int) (time.Duration, error) {
	if h.stopped.Load() {
		return 0, index.NewError(index.RetCShutdown, "index is shut down")
	}

	start := time.Now()

	h.mu.Lock()
	h.queue.clear()
	h.mu.Unlock()

	// a migration drained before the clear must not replay into the fresh
	// contents; wait it out before resetting the shared state
	for h.inProgress.Load() {
		time.Sleep(time.Millisecond)
	}

	h.stats.clear()
	h.hotSet.Clear()

	h.tierMu.Lock()
	defer h.tierMu.Unlock()

	switch h.opts.BuildPolicy {
	case BuildPolicyFullLIT:
		if _, err := h.lit.Build(entries, parallelism); err != nil {
			return 0, err
		}
		if _, err := h.dpi.Build(nil, parallelism); err != nil {
			return 0, err
		}

	default:
		if _, err := h.dpi.Build(entries, parallelism); err != nil {
			return 0, err
		}

		// pre-warm LIT with a contiguous slice from the middle of the sorted
		// input; the middle of the keyspace is where range scans and zipfian
		// hot sets concentrate
		sample := make([]index.Entry, len(entries))
		copy(sample, entries)
		sort.Slice(sample, func(i, j int) bool { return sample[i].Key < sample[j].Key })
		if len(sample) > h.opts.PrewarmLimit {
			off := (len(sample) - h.opts.PrewarmLimit) / 2
			sample = sample[off : off+h.opts.PrewarmLimit]
		}
		if _, err := h.lit.Build(sample, parallelism); err != nil {
			return 0, err
		}
	}

	return time.Since(start), nil
}

// PointLookup returns the value for key. LIT is consulted first (hot keys
// dominate the lookup mix), DPI is the fallback. Every hit feeds the hot-key
// detector; a DPI hit may enqueue the key for migration.
func (h *Index) PointLookup(key uint64) (uint64, bool) {
	if h.stopped.Load() {
		return 0, false
	}
	h.workload.lookups.Add(1)

	h.tierMu.RLock()
	if v, ok := h.lit.Lookup(key); ok {
		h.tierMu.RUnlock()
		h.met.lookupsLIT.Inc()
		h.recordAccess(key)
		return v, true
	}
	v, ok := h.dpi.Lookup(key)
	h.tierMu.RUnlock()

	if ok {
		h.met.lookupsDPI.Inc()
		h.recordAccess(key)
		return v, true
	}

	h.met.lookupMisses.Inc()
	return 0, false
}

// RangeQuery returns the sum of values for keys in [lo, hi]. LIT is scanned
// first while collecting its keys in a scratch set; DPI values are added only
// for keys LIT did not serve, so a key resident in both tiers is counted once
// (with its LIT value, which shadows the DPI copy).
func (h *Index) RangeQuery(lo, hi uint64) uint64 {
	if h.stopped.Load() || lo > hi {
		return 0
	}

	h.tierMu.RLock()
	defer h.tierMu.RUnlock()

	var sum uint64
	seen := make(map[uint64]struct{})

	h.lit.AscendRange(lo, hi, func(e index.Entry) bool {
		sum += e.Value
		seen[e.Key] = struct{}{}
		return true
	})
	h.dpi.AscendRange(lo, hi, func(e index.Entry) bool {
		if _, dup := seen[e.Key]; !dup {
			sum += e.Value
		}
		return true
	})

	return sum
}

// Insert stores or overwrites the value for key. Keys known hot (or already
// resident in LIT) are written to LIT so readers never observe a stale LIT
// copy shadowing the new value; everything else lands in DPI. Every
// InsertsPerCheck inserts the flush predicate is evaluated and the worker
// woken if a migration is due.
func (h *Index) Insert(key, value uint64) error {
	if h.stopped.Load() {
		return index.NewError(index.RetCShutdown, "index is shut down")
	}
	h.workload.inserts.Add(1)

	_, resident := h.hotSet.Load(key)
	hot := resident || h.stats.isHot(key)

	h.tierMu.Lock()
	if !hot {
		_, hot = h.lit.Lookup(key)
	}
	var err error
	if hot {
		err = h.lit.Insert(key, value)
	} else {
		err = h.dpi.Insert(key, value)
	}
	h.tierMu.Unlock()
	if err != nil {
		return err
	}

	if hot {
		h.met.insertsLIT.Inc()
	} else {
		h.met.insertsDPI.Inc()
	}

	h.recordAccess(key)

	h.insertsSince++
	if h.insertsSince >= h.opts.InsertsPerCheck {
		h.insertsSince = 0
		if !h.inProgress.Load() && h.flushReady(h.nowNs()) {
			h.requestMigration()
		}
	}

	return nil
}

// Size returns the combined entry count of both tiers. Keys in the transient
// both-resident state are counted twice, matching the per-tier accounting.
func (h *Index) Size() int {
	h.tierMu.RLock()
	defer h.tierMu.RUnlock()
	return h.dpi.Size() + h.lit.Size()
}

// Name returns the composite's index name.
func (h *Index) Name() string { return "HybridDPILIT" }

// Variant reports the DPI model error bound the instance was built with.
func (h *Index) Variant() string { return strconv.Itoa(h.opts.Epsilon) }

// Applicable reports whether this index can run the described workload. The
// AVX search kernel has no implementation here, and the composite is
// single-writer, so multithreaded workloads are rejected.
func (h *Index) Applicable(unique, rangeQuery, insert, multithread bool, workloadName string) bool {
	_, _, _, _ = unique, rangeQuery, insert, workloadName
	return h.opts.Search.Supported() && !multithread
}

// Close shuts the composite down: stops the background goroutines, waits out
// any in-flight migration, and clears all shared state. Subsequent operations
// are rejected.
func (h *Index) Close() error {
	if !h.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(h.stopCh)
	h.wg.Wait()

	// the goroutines are joined; this mirrors the documented shutdown order
	// and guards against a migration still draining on another path
	for h.inProgress.Load() {
		time.Sleep(time.Millisecond)
	}

	h.mu.Lock()
	h.queue.clear()
	h.mu.Unlock()
	h.stats.clear()
	h.hotSet.Clear()

	if err := h.dpi.Close(); err != nil {
		return err
	}
	return h.lit.Close()
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// InHotSet reports whether key was migrated into LIT and is tracked as
// hot-resident.
func (h *Index) InHotSet(key uint64) bool {
	_, ok := h.hotSet.Load(key)
	return ok
}

// Theta returns the current migration size threshold.
func (h *Index) Theta() float64 { return h.theta() }

// QueueLen returns the number of keys awaiting migration.
func (h *Index) QueueLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queue.len()
}

// Migrations returns the number of committed migration batches since the
// last controller reset.
func (h *Index) Migrations() uint64 {
	_, _, m := h.workload.snapshot()
	return m
}

// Metrics exposes the instance's metric set for scraping.
func (h *Index) Metrics() *indexMetrics { return h.met }

// GetInfo returns composite metadata including both tiers' diagnostics.
func (h *Index) GetInfo() index.IndexInfo {
	h.tierMu.RLock()
	dpiInfo := h.dpi.GetInfo()
	litInfo := h.lit.GetInfo()
	h.tierMu.RUnlock()

	meta := &struct {
		Theta       float64         `json:"theta"`
		Adaptive    bool            `json:"adaptive"`
		TrackedKeys int             `json:"tracked_keys"`
		HotKeys     int             `json:"hot_keys"`
		QueueLen    int             `json:"queue_len"`
		DPI         index.IndexInfo `json:"dpi"`
		LIT         index.IndexInfo `json:"lit"`
	}{
		Theta:       h.theta(),
		Adaptive:    h.adaptive,
		TrackedKeys: h.stats.size(),
		HotKeys:     h.hotSet.Size(),
		QueueLen:    h.QueueLen(),
		DPI:         dpiInfo,
		LIT:         litInfo,
	}

	return index.IndexInfo{
		SizeBytes: dpiInfo.SizeBytes + litInfo.SizeBytes,
		IndexType: index.ImplHybrid,
		SupportedFeatures: []index.Feature{
			index.FeatureInsert, index.FeatureRange, index.FeatureBulkLoad,
		},
		Metadata: meta,
	}
}

// --------------------------------------------------------------------------
// Detector Integration
// --------------------------------------------------------------------------

// recordAccess feeds the detector and, for newly hot keys, enqueues them for
// migration. The worker is kicked when the queue reaches the current batch
// target or the key is in a long consecutive burst.
func (h *Index) recordAccess(key uint64) {
	res := h.stats.record(key, h.nowNs(), &h.opts)

	if res.newlyHot {
		h.mu.Lock()
		h.queue.enqueue(key)
		qlen := h.queue.len()
		h.mu.Unlock()

		if int64(qlen) >= h.batchTarget.Load() {
			res.kickWorker = true
		}
	}

	if res.kickWorker {
		h.requestMigration()
	}
}

// flushParams derives the flush predicate's parameters from the current
// insert/lookup mix: under insert-heavy load the worker flushes smaller
// batches sooner to keep the queue from growing mid write storm.
func (h *Index) flushParams() (minBatch int, maxWait time.Duration) {
	if r, ok := h.workload.insertRatio(); ok && r > ratioInsertHeavy {
		return h.opts.MinBatchInsertHeavy, h.opts.MaxWaitInsertHeavy
	}
	return h.opts.MinBatchDefault, h.opts.MaxWaitDefault
}

// flushReady evaluates the flush predicate: enough queued keys, or the flush
// deadline has passed with at least one key waiting.
func (h *Index) flushReady(nowNs int64) bool {
	minBatch, maxWait := h.flushParams()

	h.mu.Lock()
	qlen := h.queue.len()
	lastFlush := h.lastFlushNs
	h.mu.Unlock()

	if qlen == 0 {
		return false
	}
	return qlen >= minBatch || nowNs-lastFlush >= maxWait.Nanoseconds()
}

package dpgm

import (
	"sort"
	"time"

	"github.com/ValentinKolb/hIndex/lib/index"
	"github.com/ValentinKolb/hIndex/lib/index/engines/dpgm/internal"
	"github.com/ValentinKolb/hIndex/lib/index/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants and Options
// --------------------------------------------------------------------------

const (
	defaultEpsilon        = 64   // Default model error bound
	defaultFlushThreshold = 4096 // Buffer entries before a merge into the run
	btreeDegree           = 32   // Degree of the write-buffer B-tree
	errorSampleLimit      = 4096 // Model error samples kept for diagnostics
)

// Options configures the engine during initialization.
type Options struct {
	Epsilon        int               // Model error bound (0 = default)
	FlushThreshold int               // Buffer size triggering a merge (0 = default)
	Search         util.SearchKernel // Last-mile search kernel ("" = binary)
}

// DefaultOptions returns the default engine options.
func DefaultOptions() *Options {
	return &Options{
		Epsilon:        defaultEpsilon,
		FlushThreshold: defaultFlushThreshold,
		Search:         util.SearchBinary,
	}
}

// --------------------------------------------------------------------------
// Engine Structure
// --------------------------------------------------------------------------

// bufEntry is a buffered mutation. A tombstone shadows a key that lives in
// the compiled run until the next merge.
type bufEntry struct {
	key       uint64
	value     uint64
	tombstone bool
}

func bufLess(a, b bufEntry) bool { return a.key < b.key }

type dpgmImpl struct {
	opts   Options
	search util.SearchFunc

	buffer *btree.BTreeG[bufEntry]
	run    *internal.Run
	size   int
}

// NewDPGM creates a new dynamic piecewise-geometric index with the specified
// options (optional).
//
// Thread-safety: the returned engine is not synchronized; see the package
// documentation.
func NewDPGM(opts *Options) index.OrderedIndex {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = defaultEpsilon
	}
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = defaultFlushThreshold
	}
	if opts.Search == "" {
		opts.Search = util.SearchBinary
	}

	return &dpgmImpl{
		opts:   *opts,
		search: opts.Search.KernelFunc(),
		buffer: btree.NewG[bufEntry](btreeDegree, bufLess),
		run:    internal.NewRun(nil, opts.Epsilon),
	}
}

// --------------------------------------------------------------------------
// OrderedIndex Interface - Construction
// --------------------------------------------------------------------------

// Build bulk-initializes the engine, replacing any prior contents. Entries
// are sorted and deduplicated (last occurrence wins). parallelism is accepted
// for interface compatibility; segment construction is a single linear pass
// and does not split.
func (d *dpgmImpl) Build(entries []index.Entry, parallelism int) (time.Duration, error) {
	_ = parallelism

	start := time.Now()

	sorted := make([]index.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	// dedupe in place, last occurrence wins
	deduped := sorted[:0]
	for i := 0; i < len(sorted); i++ {
		if len(deduped) > 0 && deduped[len(deduped)-1].Key == sorted[i].Key {
			deduped[len(deduped)-1] = sorted[i]
			continue
		}
		deduped = append(deduped, sorted[i])
	}

	d.run = internal.NewRun(deduped, d.opts.Epsilon)
	d.buffer.Clear(false)
	d.size = len(deduped)

	return time.Since(start), nil
}

// --------------------------------------------------------------------------
// OrderedIndex Interface - Queries
// --------------------------------------------------------------------------

// Lookup retrieves the value for an exact key. The write buffer shadows the
// compiled run, so fresh inserts and tombstones take effect immediately.
func (d *dpgmImpl) Lookup(key uint64) (uint64, bool) {
	if be, ok := d.buffer.Get(bufEntry{key: key}); ok {
		if be.tombstone {
			return 0, false
		}
		return be.value, true
	}
	return d.run.Lookup(key, d.search)
}

// RangeSum returns the sum of all values for keys in [lo, hi].
func (d *dpgmImpl) RangeSum(lo, hi uint64) uint64 {
	var sum uint64
	d.AscendRange(lo, hi, func(e index.Entry) bool {
		sum += e.Value
		return true
	})
	return sum
}

// AscendRange merges the buffer and the run in ascending key order. Buffered
// mutations win over run entries for the same key.
func (d *dpgmImpl) AscendRange(lo, hi uint64, fn func(index.Entry) bool) {
	if lo > hi {
		return
	}

	// collect the buffered window; bounded by the buffer flush threshold
	var buffered []bufEntry
	d.buffer.AscendGreaterOrEqual(bufEntry{key: lo}, func(be bufEntry) bool {
		if be.key > hi {
			return false
		}
		buffered = append(buffered, be)
		return true
	})

	runEntries := d.run.Entries
	ri := d.run.LowerBound(lo)
	bi := 0

	for ri < len(runEntries) || bi < len(buffered) {
		useBuffer := false
		switch {
		case ri >= len(runEntries) || runEntries[ri].Key > hi:
			if bi >= len(buffered) {
				return
			}
			useBuffer = true
		case bi >= len(buffered):
			useBuffer = false
		case buffered[bi].key <= runEntries[ri].Key:
			useBuffer = true
			if buffered[bi].key == runEntries[ri].Key {
				ri++ // shadowed by the buffer
			}
		}

		if useBuffer {
			be := buffered[bi]
			bi++
			if be.tombstone {
				continue
			}
			if !fn(index.Entry{Key: be.key, Value: be.value}) {
				return
			}
		} else {
			e := runEntries[ri]
			ri++
			if e.Key > hi {
				return
			}
			if !fn(e) {
				return
			}
		}
	}
}

// Size returns the number of live keys.
func (d *dpgmImpl) Size() int { return d.size }

// --------------------------------------------------------------------------
// OrderedIndex Interface - Mutation
// --------------------------------------------------------------------------

// Insert stores or overwrites the value for a key. Amortized cost is one
// B-tree insert; every FlushThreshold mutations the buffer merges into the
// run and the model is rebuilt.
func (d *dpgmImpl) Insert(key, value uint64) error {
	_, present := d.Lookup(key)
	d.buffer.ReplaceOrInsert(bufEntry{key: key, value: value})
	if !present {
		d.size++
	}
	d.maybeFlush()
	return nil
}

// Erase removes a key. Keys living in the compiled run are shadowed by a
// tombstone until the next merge.
func (d *dpgmImpl) Erase(key uint64) bool {
	_, present := d.Lookup(key)
	if !present {
		return false
	}

	if _, inRun := d.run.Lookup(key, d.search); inRun {
		d.buffer.ReplaceOrInsert(bufEntry{key: key, tombstone: true})
	} else {
		d.buffer.Delete(bufEntry{key: key})
	}
	d.size--
	d.maybeFlush()
	return true
}

// maybeFlush merges the buffer into the run once it crosses the threshold.
func (d *dpgmImpl) maybeFlush() {
	if d.buffer.Len() < d.opts.FlushThreshold {
		return
	}

	merged := make([]index.Entry, 0, d.size)
	d.AscendRange(0, ^uint64(0), func(e index.Entry) bool {
		merged = append(merged, e)
		return true
	})

	d.run = internal.NewRun(merged, d.opts.Epsilon)
	d.buffer.Clear(false)
	d.size = len(merged)
}

// --------------------------------------------------------------------------
// OrderedIndex Interface - Metadata
// --------------------------------------------------------------------------

func (d *dpgmImpl) Name() string { return string(index.ImplDPGM) }

// SupportsFeature checks if this engine supports a specific feature.
func (d *dpgmImpl) SupportsFeature(feature index.Feature) bool {
	supported := index.FeatureInsert | index.FeatureErase | index.FeatureRange
	return supported&feature == feature
}

// GetInfo returns model diagnostics: segment counts, the per-segment entry
// distribution, and sampled prediction-error percentiles.
func (d *dpgmImpl) GetInfo() index.IndexInfo {
	hist := util.NewErrorHistogram()
	d.run.SampleErrors(hist, errorSampleLimit)

	meta := &struct {
		Epsilon             int                    `json:"epsilon"`
		SearchKernel        string                 `json:"search_kernel"`
		SegmentCount        int                    `json:"segment_count"`
		BufferedMutations   int                    `json:"buffered_mutations"`
		SegmentDistribution util.DistributionStats `json:"segment_distribution"`
		ErrP50              int                    `json:"model_error_p50"`
		ErrP99              int                    `json:"model_error_p99"`
	}{
		Epsilon:             d.opts.Epsilon,
		SearchKernel:        string(d.opts.Search),
		SegmentCount:        len(d.run.Segments),
		BufferedMutations:   d.buffer.Len(),
		SegmentDistribution: util.NewDistributionStats(d.run.SegmentSizes()),
		ErrP50:              hist.PercentileEstimate(50),
		ErrP99:              hist.PercentileEstimate(99),
	}

	// 16 bytes per entry plus the segment table
	sizeBytes := d.size*16 + len(d.run.Segments)*24

	return index.IndexInfo{
		SizeBytes: sizeBytes,
		IndexType: index.ImplDPGM,
		SupportedFeatures: []index.Feature{
			index.FeatureInsert, index.FeatureErase, index.FeatureRange,
		},
		Metadata: meta,
	}
}

// Close releases nothing; the engine is fully in-memory.
func (d *dpgmImpl) Close() error { return nil }

package internal

import (
	"github.com/ValentinKolb/hIndex/lib/index"
	"github.com/ValentinKolb/hIndex/lib/index/util"
)

// --------------------------------------------------------------------------
// Segment Type (one linear model over a contiguous key span)
// --------------------------------------------------------------------------

// Segment is a linear approximation of the key->position mapping for a
// contiguous span of the run. The segmentation algorithm guarantees that for
// every key in the span the true position differs from the prediction by at
// most the epsilon the segment was built with.
type Segment struct {
	FirstKey uint64  // Smallest key covered by this segment
	Start    int     // Position of FirstKey in the run
	Slope    float64 // Positions per key unit
}

// Predict returns the estimated position of key within the run.
func (s Segment) Predict(key uint64) int {
	if key <= s.FirstKey {
		return s.Start
	}
	return s.Start + int(s.Slope*float64(key-s.FirstKey))
}

// --------------------------------------------------------------------------
// Segmentation (shrinking cone)
// --------------------------------------------------------------------------

// BuildSegments computes an epsilon-bounded piecewise-linear model over the
// sorted key slice. It keeps a feasible slope interval (the "cone") while
// extending the current segment; when a new point empties the interval the
// segment is closed and a new one starts at that point.
func BuildSegments(keys []uint64, epsilon int) []Segment {
	if len(keys) == 0 {
		return nil
	}
	if epsilon < 1 {
		epsilon = 1
	}

	segments := make([]Segment, 0, len(keys)/(2*epsilon)+1)

	start := 0
	slopeLo, slopeHi := 0.0, maxSlope

	// closeSegment picks the middle of the feasible cone, which satisfies
	// every point's +-epsilon constraint within the segment
	closeSegment := func(lo, hi float64) {
		slope := (lo + hi) / 2
		if hi >= maxSlope {
			// single-point segment: only FirstKey itself maps here
			slope = 0
		}
		segments = append(segments, Segment{
			FirstKey: keys[start],
			Start:    start,
			Slope:    slope,
		})
	}

	for i := 1; i < len(keys); i++ {
		dx := float64(keys[i] - keys[start])
		dy := float64(i - start)

		// slope interval induced by point i with +-epsilon slack
		lo := (dy - float64(epsilon)) / dx
		hi := (dy + float64(epsilon)) / dx
		if lo < 0 {
			lo = 0
		}

		newLo, newHi := slopeLo, slopeHi
		if lo > newLo {
			newLo = lo
		}
		if hi < newHi {
			newHi = hi
		}

		if newLo > newHi {
			// cone collapsed: close the segment before point i
			closeSegment(slopeLo, slopeHi)
			start = i
			slopeLo, slopeHi = 0.0, maxSlope
			continue
		}

		slopeLo, slopeHi = newLo, newHi
	}

	closeSegment(slopeLo, slopeHi)

	return segments
}

const maxSlope = 1e18

// --------------------------------------------------------------------------
// Run Type (immutable sorted entries + model)
// --------------------------------------------------------------------------

// Run is an immutable sorted array of entries indexed by a piecewise-linear
// model. Lookups predict a position from the covering segment and finish with
// a bounded last-mile search over the verified error window.
type Run struct {
	Entries  []index.Entry
	Keys     []uint64 // Keys[i] == Entries[i].Key, kept separate for search locality
	Segments []Segment
	Epsilon  int

	// MinErr/MaxErr bound (actual - predicted) over every key of the run,
	// measured after segmentation. Using measured bounds instead of the
	// nominal epsilon keeps lookups correct independent of float rounding
	// in the slope arithmetic.
	MinErr int
	MaxErr int
}

// NewRun builds a run (and its model) over sorted, deduplicated entries.
func NewRun(sorted []index.Entry, epsilon int) *Run {
	keys := make([]uint64, len(sorted))
	for i, e := range sorted {
		keys[i] = e.Key
	}

	r := &Run{
		Entries:  sorted,
		Keys:     keys,
		Segments: BuildSegments(keys, epsilon),
		Epsilon:  epsilon,
	}

	// verification pass: measure the real prediction error bounds
	for i, key := range keys {
		err := i - r.segmentFor(key).Predict(key)
		if err < r.MinErr {
			r.MinErr = err
		}
		if err > r.MaxErr {
			r.MaxErr = err
		}
	}

	return r
}

// segmentFor locates the segment covering key (the last segment whose
// FirstKey is <= key) by binary search over the segment table.
func (r *Run) segmentFor(key uint64) Segment {
	lo, hi := 0, len(r.Segments)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.Segments[mid].FirstKey <= key {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return r.Segments[lo]
}

// Lookup finds the value for key using the given search kernel.
func (r *Run) Lookup(key uint64, search util.SearchFunc) (uint64, bool) {
	if len(r.Entries) == 0 {
		return 0, false
	}
	if key < r.Keys[0] || key > r.Keys[len(r.Keys)-1] {
		return 0, false
	}

	pred := r.segmentFor(key).Predict(key)

	pos, ok := search(r.Keys, pred+r.MinErr, pred+r.MaxErr, key)
	if !ok {
		return 0, false
	}
	return r.Entries[pos].Value, true
}

// LowerBound returns the position of the first entry with key >= lo.
func (r *Run) LowerBound(lo uint64) int {
	if len(r.Entries) == 0 {
		return 0
	}
	if lo <= r.Keys[0] {
		return 0
	}
	if lo > r.Keys[len(r.Keys)-1] {
		return len(r.Entries)
	}

	pred := r.segmentFor(lo).Predict(lo)

	start := pred + r.MinErr
	end := pred + r.MaxErr
	if start < 0 {
		start = 0
	}
	if start >= len(r.Keys) {
		start = len(r.Keys) - 1
	}
	if end >= len(r.Keys) {
		end = len(r.Keys) - 1
	}

	// lo itself may be absent, so its prediction carries no error guarantee;
	// widen until the window brackets the boundary
	for start > 0 && r.Keys[start] >= lo {
		start--
	}
	for end < len(r.Keys)-1 && r.Keys[end] < lo {
		end++
	}

	return util.LowerBound(r.Keys, start, end, lo)
}

// SegmentSizes returns the number of entries covered by each segment,
// used for distribution diagnostics.
func (r *Run) SegmentSizes() []float64 {
	if len(r.Segments) == 0 {
		return nil
	}
	sizes := make([]float64, len(r.Segments))
	for i := range r.Segments {
		end := len(r.Entries)
		if i+1 < len(r.Segments) {
			end = r.Segments[i+1].Start
		}
		sizes[i] = float64(end - r.Segments[i].Start)
	}
	return sizes
}

// SampleErrors feeds the model's prediction error for up to limit evenly
// sampled keys into the histogram.
func (r *Run) SampleErrors(h *util.ErrorHistogram, limit int) {
	if len(r.Keys) == 0 || limit <= 0 {
		return
	}
	step := len(r.Keys) / limit
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(r.Keys); i += step {
		seg := r.segmentFor(r.Keys[i])
		h.AddSample(seg.Predict(r.Keys[i]) - i)
	}
}

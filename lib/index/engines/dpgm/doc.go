// Package dpgm implements the insert-optimized ordered index engine: a
// dynamic piecewise-geometric index. It provides a complete implementation of
// the index.OrderedIndex interface with a focus on cheap amortized inserts
// and bounded-error model lookups.
//
// The engine is split into two layers:
//
//   - Write buffer: a B-tree absorbing Insert and Erase calls. Erases of keys
//     that live in the compiled run are recorded as tombstones so the run can
//     stay immutable. When the buffer reaches the flush threshold it is
//     merged into the run and the model is rebuilt, which keeps the per-insert
//     cost amortized logarithmic.
//
//   - Compiled run: an immutable sorted entry array indexed by a
//     piecewise-linear model. Segments are built with a shrinking-cone
//     algorithm under a configurable error bound epsilon, and a verification
//     pass then measures the model's real error bounds over the run. A
//     lookup degenerates to one segment-table binary search plus a last-mile
//     search over the measured error window (at most ~2*epsilon+1 slots).
//
// The last-mile search kernel is configurable (binary, linear, interpolation,
// exponential); tight epsilons favor linear, wide epsilons favor binary or
// interpolation. Epsilon trades model size against window size the usual way:
// doubling epsilon roughly halves the segment count and doubles the search
// window.
//
// Thread-safety: the engine itself is not synchronized; the composite index
// serializes access (it is single-writer by design). Lookups and mutations
// must not run concurrently.
package dpgm

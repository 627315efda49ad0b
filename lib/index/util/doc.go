// Package util provides the small data structures shared by the index
// engines and the composite:
//
//   - KeyHeap: a deduplicated, key-ordered set of uint64 keys combining a
//     binary min-heap with a hash map. It backs the composite's migration
//     queue, where membership checks must be O(1) (enqueue is idempotent)
//     and draining must yield keys in ascending order.
//
//   - ErrorHistogram / Stats / DistributionStats: bucketed tracking of
//     model prediction errors and summary statistics over value sets,
//     used by the engines' GetInfo diagnostics.
//
//   - Search kernels: the last-mile search variants (binary, linear,
//     interpolation, exponential) that engines run inside a model's
//     predicted error window.
package util

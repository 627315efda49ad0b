// Package hybrid implements the composite ordered-key index: two learned
// index engines with opposite read/write trade-offs composed behind a single
// key-value surface, with a background migration pipeline moving hot entries
// from the write-optimized side to the read-optimized side.
//
// The two tiers:
//
//   - DPI (engines/dpgm): a dynamic piecewise-geometric index that absorbs
//     inserts cheaply. All cold writes land here.
//
//   - LIT (engines/litree): a learned interpolation tree with faster point
//     lookups but expensive mutation. Hot entries are bulk-migrated here in
//     the background.
//
// Key Components:
//
//   - Index: the facade. PointLookup consults LIT first and falls back to
//     DPI; Insert routes to DPI unless the key is known hot or already
//     LIT-resident; RangeQuery sums across both tiers without double
//     counting; Build bulk-loads both sides. Every lookup and insert feeds
//     the hot-key detector.
//
//   - Detector (stats.go): per-key access statistics in a concurrent map.
//     A key turns hot when it is accessed back-to-back inside the
//     consecutive window, or when its total count crosses the hot threshold
//     outside the migration cooldown. Newly hot keys enter the migration
//     queue (idempotently).
//
//   - Migration queue (queue.go): a deduplicated, key-ordered set of keys
//     awaiting migration. The worker snapshots and clears it under the core
//     lock, so draining is atomic with respect to enqueues.
//
//   - Migration worker (worker.go): a background goroutine running the
//     DRAINING -> LOOKUP -> BULKLOAD -> EVICT -> COMMIT state machine, with
//     ROLLBACK on engine failure. Exactly one migration can be active; the
//     in-progress flag transitions only via compare-and-swap.
//
//   - Adaptive controller (controller.go): a periodic goroutine that moves
//     the migration threshold with the observed insert/lookup mix (backs off
//     during write storms, migrates aggressively under read-heavy load),
//     ages out stale key statistics, and publishes the worker's batch target.
//
// Locking discipline:
//
//   - The core mutex guards the migration queue and the last-flush bookkeeping.
//   - The tier lock (an RWMutex) guards the two engines, which are not
//     internally synchronized: foreground reads take the read side, while
//     foreground writes and the worker's BULKLOAD/EVICT phases take the
//     write side. The worker performs its expensive phases outside the core
//     mutex, so lookups that do not touch the queue never wait on migration
//     bookkeeping.
//   - Key statistics and the hot-key set live in lock-free concurrent maps;
//     the lookup fast path never blocks on a mutex.
//
// The public API is single-writer: one foreground goroutine may call the
// mutating operations. The two background goroutines (worker, controller)
// are owned by the Index and joined on Close.
package hybrid

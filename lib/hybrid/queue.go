package hybrid

import (
	"github.com/ValentinKolb/hIndex/lib/index/util"
)

// migrationQueue is the deduplicated, key-ordered set of keys awaiting
// migration from DPI to LIT. Enqueueing an already-queued key is a no-op, and
// draining yields keys in ascending order, which is exactly the order the
// worker's bulk load wants.
//
// Thread-safety: not synchronized; every access happens under the composite's
// core mutex.
type migrationQueue struct {
	keys *util.KeyHeap
}

func newMigrationQueue() *migrationQueue {
	return &migrationQueue{keys: util.NewKeyHeap()}
}

// enqueue adds a key; it returns whether the key was newly queued.
func (q *migrationQueue) enqueue(key uint64) bool {
	return q.keys.Add(key)
}

// len returns the number of queued keys.
func (q *migrationQueue) len() int {
	return q.keys.Len()
}

// contains reports whether key is queued.
func (q *migrationQueue) contains(key uint64) bool {
	return q.keys.Contains(key)
}

// drainN removes up to n keys in ascending order, leaving the rest queued.
func (q *migrationQueue) drainN(n int) []uint64 {
	return q.keys.DrainN(n)
}

// clear empties the queue.
func (q *migrationQueue) clear() {
	q.keys.Drain()
}

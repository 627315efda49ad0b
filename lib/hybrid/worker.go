package hybrid

import (
	"fmt"
	"sort"
	"time"

	"github.com/ValentinKolb/hIndex/lib/index"
)

// The migration worker moves hot entries from DPI to LIT in batches:
//
//	IDLE -> DRAINING -> LOOKUP -> BULKLOAD -> EVICT -> COMMIT -> IDLE
//	                                 \________ on error ________/
//	                                          ROLLBACK
//
// Exactly one migration can be active; the inProgress flag transitions only
// via compare-and-swap. DRAINING and the final part of COMMIT run under the
// core lock; LOOKUP, the sort, BULKLOAD and EVICT do not.

// requestMigration claims the migration slot and wakes the worker. It is a
// no-op when a migration is already in progress or the index is stopping.
func (h *Index) requestMigration() {
	if h.stopped.Load() {
		return
	}
	if !h.inProgress.CompareAndSwap(false, true) {
		return
	}

	select {
	case h.wakeCh <- struct{}{}:
	default:
		// a wake signal is already pending; the worker pass it triggers will
		// serve this request too and release the claim
	}
}

// workerLoop is the migration worker goroutine. It reacts to explicit wake
// requests and additionally polls the flush deadline, so a short queue still
// migrates once its max-wait expires (migration progress does not depend on
// further foreground traffic).
func (h *Index) workerLoop() {
	defer h.wg.Done()

	// poll at the finer of the two flush deadlines
	ticker := time.NewTicker(h.opts.MaxWaitInsertHeavy)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return

		case <-h.wakeCh:
			h.runMigration()

		case <-ticker.C:
			if h.stopped.Load() {
				continue
			}
			if h.flushReady(h.nowNs()) && h.inProgress.CompareAndSwap(false, true) {
				h.runMigration()
			}
		}
	}
}

// runMigration executes one pass of the state machine. The caller must hold
// the migration claim (inProgress == true); the claim is released on every
// path out.
func (h *Index) runMigration() {
	defer h.inProgress.Store(false)

	start := time.Now()

	// DRAINING: snapshot the queue under the core lock. The queue drains in
	// ascending key order, so the batch arrives pre-sorted.
	h.mu.Lock()
	batch := h.queue.drainN(h.opts.BatchMax)
	h.mu.Unlock()

	// second pass: top the batch up with keys the detector still classifies
	// as hot but that never made it into the queue (e.g. re-heated after a
	// drain); "definitely hot" keys from the queue keep priority
	if len(batch) < h.opts.BatchMax {
		queued := make(map[uint64]struct{}, len(batch))
		for _, k := range batch {
			queued[k] = struct{}{}
		}
		h.stats.hotCandidates(func(key uint64) bool {
			if len(batch) >= h.opts.BatchMax {
				return false
			}
			if _, dup := queued[key]; dup {
				return true
			}
			if _, resident := h.hotSet.Load(key); resident {
				return true
			}
			batch = append(batch, key)
			return true
		})
	}

	if len(batch) == 0 {
		// nothing to do; running on an empty queue is a no-op
		return
	}

	// LOOKUP: fetch the values from DPI outside the core lock. Keys that
	// vanished from DPI (evicted earlier, or never there) are dropped.
	h.tierMu.RLock()
	entries := make([]index.Entry, 0, len(batch))
	for _, key := range batch {
		if v, ok := h.dpi.Lookup(key); ok {
			entries = append(entries, index.Entry{Key: key, Value: v})
		}
	}
	h.tierMu.RUnlock()

	if len(entries) == 0 {
		h.finishFlush()
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	// BULKLOAD: merge the batch into LIT.
	if err := h.bulkLoad(entries); err != nil {
		h.rollback(entries, err)
		return
	}

	// EVICT: remove the migrated keys from DPI. An erase that finds the key
	// already gone from DPI is logged and tolerated.
	if err := h.evict(entries); err != nil {
		h.rollback(entries, err)
		return
	}

	// COMMIT: publish the migrated keys and the flush timestamp.
	for _, e := range entries {
		h.hotSet.Store(e.Key, struct{}{})
	}
	h.workload.migrations.Add(1)
	h.finishFlush()

	h.met.migrations.Inc()
	h.met.migratedKeys.Add(len(entries))
	h.met.migrationDuration.UpdateDuration(start)

	h.log.Debugf("migrated %d keys in %s", len(entries), time.Since(start))
}

// bulkLoad merges the batch into LIT, converting a panicking engine into an
// error so the worker can roll back. Keys that became LIT-resident since the
// LOOKUP phase (a foreground insert beat the migration) are dropped under the
// tier lock: their LIT value is fresher than the DPI copy the worker read,
// and it must win.
func (h *Index) bulkLoad(entries []index.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lit bulk load: %v", r)
		}
	}()

	h.tierMu.Lock()
	defer h.tierMu.Unlock()

	load := make([]index.Entry, 0, len(entries))
	for _, e := range entries {
		if _, resident := h.lit.Lookup(e.Key); !resident {
			load = append(load, e)
		}
	}
	if len(load) == 0 {
		return nil
	}
	return h.litBulk.BulkLoad(load)
}

// evict removes the migrated keys from DPI.
func (h *Index) evict(entries []index.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dpi evict: %v", r)
		}
	}()

	h.tierMu.Lock()
	defer h.tierMu.Unlock()
	for _, e := range entries {
		if !h.dpi.Erase(e.Key) {
			h.log.Warningf("evict: key %d not found in dpi", e.Key)
		}
	}
	return nil
}

// finishFlush records the flush timestamp under the core lock.
func (h *Index) finishFlush() {
	h.mu.Lock()
	h.lastFlushNs = h.nowNs()
	h.mu.Unlock()
}

// rollback aborts a failed migration: the affected keys leave the hot set
// and their hot classification is reset, the error goes to the diagnostic
// sink, and the keys are NOT re-enqueued — the detector re-discovers them
// naturally on their next accesses. Data is safe either way: anything not
// evicted from DPI is still served from there.
func (h *Index) rollback(entries []index.Entry, err error) {
	for _, e := range entries {
		h.hotSet.Delete(e.Key)
		h.stats.clearHot(e.Key)
	}
	h.met.rollbacks.Inc()
	h.log.Errorf("migration rolled back (%d keys): %v", len(entries), err)
}

package hybrid

import (
	"testing"
)

func TestQueueDedup(t *testing.T) {
	q := newMigrationQueue()

	if !q.enqueue(5) {
		t.Errorf("First enqueue should report newly queued")
	}
	if q.enqueue(5) {
		t.Errorf("Duplicate enqueue must be a no-op")
	}
	if q.len() != 1 {
		t.Errorf("Expected length 1, got %d", q.len())
	}
	if !q.contains(5) {
		t.Errorf("contains(5) should be true")
	}
}

func TestQueueDrainOrdered(t *testing.T) {
	q := newMigrationQueue()
	for _, k := range []uint64{9, 2, 7, 4, 2, 9} {
		q.enqueue(k)
	}

	got := q.drainN(10)
	want := []uint64{2, 4, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("Drain returned %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if q.len() != 0 {
		t.Errorf("Queue should be empty after drain")
	}

	// a drained key can be re-enqueued
	if !q.enqueue(2) {
		t.Errorf("Re-enqueue after drain should succeed")
	}
}

func TestQueuePartialDrain(t *testing.T) {
	q := newMigrationQueue()
	for k := uint64(1); k <= 10; k++ {
		q.enqueue(k)
	}

	got := q.drainN(4)
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("drainN(4): expected [1..4], got %v", got)
	}
	if q.len() != 6 {
		t.Errorf("Expected 6 keys left, got %d", q.len())
	}

	q.clear()
	if q.len() != 0 {
		t.Errorf("clear must empty the queue")
	}
}

// The queue length stays bounded: the detector enqueues at most once per key
// between drains, and each worker pass takes up to BatchMax keys.
func TestQueueBoundUnderChurn(t *testing.T) {
	q := newMigrationQueue()

	const batchMax = 100
	maxSeen := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 150; i++ {
			q.enqueue(uint64(round*150 + i))
		}
		if q.len() > maxSeen {
			maxSeen = q.len()
		}
		q.drainN(batchMax)
	}

	// 150 fresh keys per round against a 100-key drain: the backlog grows by
	// at most 50 per round and the length never exceeds enqueued - drained
	if maxSeen > 150+50*50 {
		t.Errorf("Queue grew past the expected bound: %d", maxSeen)
	}
}

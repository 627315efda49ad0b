package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/hIndex/lib/index"
)

// IndexFactory is a function that creates a new instance of an OrderedIndex
// implementation.
type IndexFactory func() index.OrderedIndex

// RunOrderedIndexTests runs the conformance test suite for an OrderedIndex
// implementation.
func RunOrderedIndexTests(t *testing.T, name string, factory IndexFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("BuildAndLookup", func(t *testing.T) {
			testBuildAndLookup(t, factory())
		})

		t.Run("InsertAndLookup", func(t *testing.T) {
			testInsertAndLookup(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("Erase", func(t *testing.T) {
			testErase(t, factory())
		})

		t.Run("RangeSum", func(t *testing.T) {
			testRangeSum(t, factory())
		})

		t.Run("AscendRange", func(t *testing.T) {
			testAscendRange(t, factory())
		})

		t.Run("BulkLoadMerge", func(t *testing.T) {
			testBulkLoadMerge(t, factory())
		})

		t.Run("RandomizedMirror", func(t *testing.T) {
			testRandomizedMirror(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature.
// Skip the test if it is not supported.
func requireFeature(t testing.TB, idx index.OrderedIndex, feature index.Feature) {
	if !idx.SupportsFeature(feature) {
		t.Skip()
	}
}

// sequentialEntries returns n entries with keys k0, k0+step, ... and
// value = key * 10.
func sequentialEntries(n int, k0, step uint64) []index.Entry {
	entries := make([]index.Entry, n)
	for i := 0; i < n; i++ {
		key := k0 + uint64(i)*step
		entries[i] = index.Entry{Key: key, Value: key * 10}
	}
	return entries
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testBuildAndLookup(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	entries := sequentialEntries(10_000, 100, 7)

	// shuffle to make sure Build sorts
	shuffled := make([]index.Entry, len(entries))
	copy(shuffled, entries)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if _, err := idx.Build(shuffled, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Size() != len(entries) {
		t.Errorf("Expected size %d, got %d", len(entries), idx.Size())
	}

	for _, e := range entries {
		v, ok := idx.Lookup(e.Key)
		if !ok {
			t.Fatalf("Key %d not found after Build", e.Key)
		}
		if v != e.Value {
			t.Fatalf("Key %d: expected value %d, got %d", e.Key, e.Value, v)
		}
	}

	// keys between the built keys must miss
	if _, ok := idx.Lookup(101); ok {
		t.Errorf("Expected gap key 101 to be absent")
	}
	if _, ok := idx.Lookup(0); ok {
		t.Errorf("Expected key below the key range to be absent")
	}
	if _, ok := idx.Lookup(1 << 62); ok {
		t.Errorf("Expected key above the key range to be absent")
	}
}

func testInsertAndLookup(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureInsert)

	for i := uint64(0); i < 5000; i++ {
		key := i*13 + 1
		if err := idx.Insert(key, key+1); err != nil {
			t.Fatalf("Insert(%d) failed: %v", key, err)
		}
	}

	if idx.Size() != 5000 {
		t.Errorf("Expected size 5000, got %d", idx.Size())
	}

	for i := uint64(0); i < 5000; i++ {
		key := i*13 + 1
		v, ok := idx.Lookup(key)
		if !ok {
			t.Fatalf("Key %d not found after Insert", key)
		}
		if v != key+1 {
			t.Fatalf("Key %d: expected value %d, got %d", key, key+1, v)
		}
	}
}

func testOverwrite(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureInsert)

	if _, err := idx.Build(sequentialEntries(100, 1, 1), 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if err := idx.Insert(50, 9999); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v, ok := idx.Lookup(50)
	if !ok {
		t.Fatalf("Key 50 not found after overwrite")
	}
	if v != 9999 {
		t.Errorf("Expected overwritten value 9999, got %d", v)
	}

	if idx.Size() != 100 {
		t.Errorf("Overwrite must not change the size: expected 100, got %d", idx.Size())
	}
}

func testErase(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureInsert)
	requireFeature(t, idx, index.FeatureErase)

	if _, err := idx.Build(sequentialEntries(1000, 1, 2), 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// erase every second built key
	for i := uint64(0); i < 1000; i += 2 {
		key := 1 + i*2
		if !idx.Erase(key) {
			t.Fatalf("Erase(%d) reported key absent", key)
		}
	}

	if idx.Size() != 500 {
		t.Errorf("Expected size 500 after erases, got %d", idx.Size())
	}

	for i := uint64(0); i < 1000; i++ {
		key := 1 + i*2
		_, ok := idx.Lookup(key)
		if i%2 == 0 && ok {
			t.Errorf("Key %d should be erased", key)
		}
		if i%2 == 1 && !ok {
			t.Errorf("Key %d should still exist", key)
		}
	}

	// erasing a missing key reports false
	if idx.Erase(2) {
		t.Errorf("Erase of a never-inserted key should report false")
	}

	// erased keys can be re-inserted
	if err := idx.Insert(1, 42); err != nil {
		t.Fatalf("Re-insert after erase failed: %v", err)
	}
	if v, ok := idx.Lookup(1); !ok || v != 42 {
		t.Errorf("Re-inserted key 1: expected (42,true), got (%d,%v)", v, ok)
	}
}

func testRangeSum(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureRange)

	// keys 1..10, value = key
	entries := make([]index.Entry, 10)
	for i := 0; i < 10; i++ {
		entries[i] = index.Entry{Key: uint64(i + 1), Value: uint64(i + 1)}
	}
	if _, err := idx.Build(entries, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if sum := idx.RangeSum(1, 10); sum != 55 {
		t.Errorf("RangeSum(1,10): expected 55, got %d", sum)
	}
	if sum := idx.RangeSum(3, 5); sum != 12 {
		t.Errorf("RangeSum(3,5): expected 12, got %d", sum)
	}
	if sum := idx.RangeSum(11, 100); sum != 0 {
		t.Errorf("RangeSum(11,100): expected 0, got %d", sum)
	}
	if sum := idx.RangeSum(5, 5); sum != 5 {
		t.Errorf("RangeSum(5,5): expected 5, got %d", sum)
	}
}

func testAscendRange(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureRange)

	if _, err := idx.Build(sequentialEntries(1000, 10, 10), 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var got []uint64
	idx.AscendRange(100, 200, func(e index.Entry) bool {
		got = append(got, e.Key)
		return true
	})

	want := []uint64{100, 110, 120, 130, 140, 150, 160, 170, 180, 190, 200}
	if len(got) != len(want) {
		t.Fatalf("AscendRange(100,200): expected %d keys, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AscendRange position %d: expected key %d, got %d", i, want[i], got[i])
		}
	}

	// early termination
	count := 0
	idx.AscendRange(0, ^uint64(0), func(e index.Entry) bool {
		count++
		return count < 5
	})
	if count != 5 {
		t.Errorf("AscendRange should stop when fn returns false; visited %d", count)
	}
}

func testBulkLoadMerge(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureBulkLoad)

	bulk, ok := idx.(index.BulkLoadable)
	if !ok {
		t.Fatalf("Engine reports FeatureBulkLoad but does not implement BulkLoadable")
	}

	if _, err := idx.Build([]index.Entry{{Key: 1, Value: 10}, {Key: 3, Value: 30}, {Key: 5, Value: 50}}, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// merge a batch overlapping key 3 and adding keys 2 and 4
	batch := []index.Entry{{Key: 2, Value: 20}, {Key: 3, Value: 33}, {Key: 4, Value: 40}}
	if err := bulk.BulkLoad(batch); err != nil {
		t.Fatalf("BulkLoad failed: %v", err)
	}

	// prior contents for keys not in the batch are preserved
	expect := map[uint64]uint64{1: 10, 2: 20, 3: 33, 4: 40, 5: 50}
	for key, value := range expect {
		v, ok := idx.Lookup(key)
		if !ok {
			t.Errorf("Key %d missing after merge", key)
			continue
		}
		if v != value {
			t.Errorf("Key %d: expected %d after merge, got %d", key, value, v)
		}
	}

	if idx.Size() != 5 {
		t.Errorf("Expected size 5 after merge, got %d", idx.Size())
	}

	// an empty batch is a no-op
	if err := bulk.BulkLoad(nil); err != nil {
		t.Errorf("Empty BulkLoad failed: %v", err)
	}
	if idx.Size() != 5 {
		t.Errorf("Empty BulkLoad changed the size to %d", idx.Size())
	}
}

// testRandomizedMirror drives a random operation mix against the engine and
// a plain map and checks they agree.
func testRandomizedMirror(t *testing.T, idx index.OrderedIndex) {
	defer idx.Close()

	requireFeature(t, idx, index.FeatureInsert)
	requireFeature(t, idx, index.FeatureErase)

	rnd := rand.New(rand.NewSource(7))
	mirror := make(map[uint64]uint64)

	if _, err := idx.Build(nil, 1); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	const keySpace = 2000
	for i := 0; i < 20_000; i++ {
		key := uint64(rnd.Intn(keySpace))*3 + 1
		switch rnd.Intn(10) {
		case 0, 1, 2, 3, 4, 5: // insert
			value := uint64(rnd.Intn(1 << 30))
			if err := idx.Insert(key, value); err != nil {
				t.Fatalf("Insert(%d) failed: %v", key, err)
			}
			mirror[key] = value
		case 6, 7: // lookup
			v, ok := idx.Lookup(key)
			mv, mok := mirror[key]
			if ok != mok {
				t.Fatalf("Lookup(%d): presence %v, mirror says %v", key, ok, mok)
			}
			if ok && v != mv {
				t.Fatalf("Lookup(%d): value %d, mirror says %d", key, v, mv)
			}
		case 8: // erase
			got := idx.Erase(key)
			_, mok := mirror[key]
			if got != mok {
				t.Fatalf("Erase(%d): reported %v, mirror says %v", key, got, mok)
			}
			delete(mirror, key)
		case 9: // size check
			if idx.Size() != len(mirror) {
				t.Fatalf("Size: %d, mirror has %d", idx.Size(), len(mirror))
			}
		}
	}

	// final sweep
	for key, value := range mirror {
		v, ok := idx.Lookup(key)
		if !ok {
			t.Errorf("Key %d missing in final sweep", key)
			continue
		}
		if v != value {
			t.Errorf("Key %d: expected %d, got %d", key, value, v)
		}
	}
}

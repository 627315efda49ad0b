package util

import (
	"math/rand"
	"sort"
	"testing"
)

var kernels = []SearchKernel{
	SearchBinary, SearchLinear, SearchInterpolation, SearchExponential,
}

func TestKernelsAgainstSort(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))

	keys := make([]uint64, 5000)
	seen := make(map[uint64]struct{})
	for i := range keys {
		for {
			k := uint64(rnd.Int63())
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys[i] = k
				break
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, kernel := range kernels {
		fn := kernel.KernelFunc()

		// every present key must be found at its true position
		for i, k := range keys {
			pos, ok := fn(keys, 0, len(keys)-1, k)
			if !ok {
				t.Fatalf("%s: key at position %d not found", kernel, i)
			}
			if pos != i {
				t.Fatalf("%s: key at position %d reported at %d", kernel, i, pos)
			}
		}

		// absent keys must miss
		for i := 0; i < 1000; i++ {
			k := uint64(rnd.Int63())
			if _, dup := seen[k]; dup {
				continue
			}
			if _, ok := fn(keys, 0, len(keys)-1, k); ok {
				t.Fatalf("%s: absent key %d reported found", kernel, k)
			}
		}
	}
}

func TestKernelsBoundedWindow(t *testing.T) {
	keys := []uint64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	for _, kernel := range kernels {
		fn := kernel.KernelFunc()

		// key inside the window
		if pos, ok := fn(keys, 2, 6, 50); !ok || pos != 4 {
			t.Errorf("%s: expected (4,true) for key 50 in [2,6], got (%d,%v)", kernel, pos, ok)
		}

		// key outside the window must miss even though it is in the slice
		if _, ok := fn(keys, 2, 6, 90); ok {
			t.Errorf("%s: key 90 outside window [2,6] reported found", kernel)
		}

		// out-of-range bounds are clamped
		if pos, ok := fn(keys, -5, 100, 10); !ok || pos != 0 {
			t.Errorf("%s: expected (0,true) with clamped bounds, got (%d,%v)", kernel, pos, ok)
		}

		// inverted window
		if _, ok := fn(keys, 6, 2, 50); ok {
			t.Errorf("%s: inverted window reported a hit", kernel)
		}
	}
}

func TestParseSearchKernel(t *testing.T) {
	for _, name := range []string{"binary", "linear", "interpolation", "exponential", "avx"} {
		if _, ok := ParseSearchKernel(name); !ok {
			t.Errorf("ParseSearchKernel(%q) should succeed", name)
		}
	}
	if _, ok := ParseSearchKernel("quantum"); ok {
		t.Errorf("ParseSearchKernel should reject unknown names")
	}

	if SearchAVX.Supported() {
		t.Errorf("avx kernel must report unsupported")
	}
	if !SearchBinary.Supported() {
		t.Errorf("binary kernel must report supported")
	}
}

func TestLowerBound(t *testing.T) {
	keys := []uint64{10, 20, 30, 40, 50}

	cases := []struct {
		key  uint64
		want int
	}{
		{5, 0}, {10, 0}, {15, 1}, {30, 2}, {50, 4}, {55, 5},
	}
	for _, c := range cases {
		if got := LowerBound(keys, 0, len(keys)-1, c.key); got != c.want {
			t.Errorf("LowerBound(%d): expected %d, got %d", c.key, c.want, got)
		}
	}
}

package fastmap

import (
	"math/rand"
	"testing"
)

// dummy is a placeholder struct for creating real pointers
type dummy struct {
	x int
}

// Test basic functionality
func TestMap(t *testing.T) {
	m := &Map[*dummy]{}

	// Test empty map
	if _, ok := m.Get(1); ok {
		t.Error("Expected miss for empty map")
	}

	d1 := &dummy{100}
	d2 := &dummy{200}

	m.Set(1, d1)
	m.Set(2, d2)

	if v, _ := m.Get(1); v != d1 {
		t.Error("Get(1) failed")
	}
	if v, _ := m.Get(2); v != d2 {
		t.Error("Get(2) failed")
	}

	// Test update
	d3 := &dummy{300}
	m.Set(1, d3)
	if v, _ := m.Get(1); v != d3 {
		t.Error("Update failed")
	}

	// Test len
	if m.Len() != 2 {
		t.Errorf("Expected len=2, got %d", m.Len())
	}

	// Test clear
	m.Clear()
	if m.Len() != 0 {
		t.Error("Clear failed")
	}
	if m.Has(1) {
		t.Error("Get after clear should miss")
	}
}

// Test with many entries to trigger growth
func TestMapGrowth(t *testing.T) {
	m := &Map[int]{}

	n := 10000
	for i := 0; i < n; i++ {
		m.Set(uint32(i), i*10)
	}

	if m.Len() != n {
		t.Errorf("Expected len=%d, got %d", n, m.Len())
	}

	for i := 0; i < n; i++ {
		if v, ok := m.Get(uint32(i)); !ok || v != i*10 {
			t.Errorf("Get(%d) failed", i)
		}
	}
}

// Test with key=0
func TestMapZeroKey(t *testing.T) {
	m := &Map[string]{}

	m.Set(0, "zero")

	if v, ok := m.Get(0); !ok || v != "zero" {
		t.Error("Zero key failed")
	}
	if m.Len() != 1 {
		t.Error("Len should be 1")
	}
}

func TestMapDelete(t *testing.T) {
	m := &Map[int]{}
	if m.Delete(7) {
		t.Fatal("Delete on empty map reported a hit")
	}

	n := 5000
	for i := 1; i <= n; i++ {
		m.Set(uint32(i), i)
	}
	// Remove every third key; the probe chains of the survivors must stay intact.
	for i := 1; i <= n; i += 3 {
		if !m.Delete(uint32(i)) {
			t.Fatalf("Delete(%d) missed", i)
		}
	}
	for i := 1; i <= n; i++ {
		v, ok := m.Get(uint32(i))
		if (i-1)%3 == 0 {
			if ok {
				t.Fatalf("key %d still present after delete", i)
			}
			continue
		}
		if !ok || v != i {
			t.Fatalf("Get(%d) = %d, %v", i, v, ok)
		}
	}
	if want := n - (n+2)/3; m.Len() != want {
		t.Errorf("Expected len=%d, got %d", want, m.Len())
	}
}

func TestMapDeleteRandom(t *testing.T) {
	m := &Map[uint32]{}
	ref := make(map[uint32]uint32)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 20000; i++ {
		k := uint32(rng.Intn(512))
		if rng.Intn(3) == 0 {
			_, want := ref[k]
			if got := m.Delete(k); got != want {
				t.Fatalf("Delete(%d) = %v, want %v", k, got, want)
			}
			delete(ref, k)
			continue
		}
		m.Set(k, k+1)
		ref[k] = k + 1
	}

	if m.Len() != len(ref) {
		t.Fatalf("len mismatch: %d vs %d", m.Len(), len(ref))
	}
	for k, want := range ref {
		if v, ok := m.Get(k); !ok || v != want {
			t.Fatalf("Get(%d) = %d, %v", k, v, ok)
		}
	}
	seen := 0
	m.ForEach(func(k, v uint32) {
		seen++
		if ref[k] != v {
			t.Errorf("ForEach yielded %d=%d", k, v)
		}
	})
	if seen != len(ref) {
		t.Errorf("ForEach visited %d entries, want %d", seen, len(ref))
	}
}

// Pre-allocate values for benchmarks
var benchDummies []*dummy

func init() {
	benchDummies = make([]*dummy, 200000)
	for i := range benchDummies {
		benchDummies[i] = &dummy{i}
	}
}

// Benchmark: Sequential writes - FastMap
func BenchmarkFastMapSeqWrite(b *testing.B) {
	m := &Map[*dummy]{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(uint32(i), benchDummies[i%len(benchDummies)])
	}
}

// Benchmark: Sequential writes - Go map
func BenchmarkGoMapSeqWrite(b *testing.B) {
	m := make(map[uint32]*dummy)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m[uint32(i)] = benchDummies[i%len(benchDummies)]
	}
}

// Benchmark: Sequential reads (after populating) - FastMap
func BenchmarkFastMapSeqRead(b *testing.B) {
	m := &Map[*dummy]{}
	for i := 0; i < 100000; i++ {
		m.Set(uint32(i), benchDummies[i])
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(uint32(i % 100000))
	}
}

// Benchmark: Set/Delete churn, the handle allocation pattern.
func BenchmarkFastMapChurn(b *testing.B) {
	m := &Map[*dummy]{}
	for i := 0; i < b.N; i++ {
		k := uint32(i)
		m.Set(k, benchDummies[i%len(benchDummies)])
		if i >= 64 {
			m.Delete(k - 64)
		}
	}
}

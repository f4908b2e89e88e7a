package benchmarks

import (
	"fmt"
	"math/rand"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/hamgo"
)

// BenchmarkReadOps measures point lookups and full scans.
func BenchmarkReadOps(b *testing.B) {
	for _, size := range []int{10_000, 100_000} {
		name := formatSize(size)
		b.Run(fmt.Sprintf("RandGet_%s/hamgo", name), func(b *testing.B) { benchRandGetHamgo(b, size) })
		b.Run(fmt.Sprintf("RandGet_%s/bolt", name), func(b *testing.B) { benchRandGetBolt(b, size) })
		b.Run(fmt.Sprintf("Scan_%s/hamgo", name), func(b *testing.B) { benchScanHamgo(b, size) })
		b.Run(fmt.Sprintf("Scan_%s/bolt", name), func(b *testing.B) { benchScanBolt(b, size) })
	}
}

func benchRandGetHamgo(b *testing.B, size int) {
	_, db := openHamgo(b, size)
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := db.Find(nil, benchKey(rng.Intn(size))); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRandGetBolt(b *testing.B, size int) {
	db := openBolt(b, size)
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		err := db.View(func(tx *bolt.Tx) error {
			if tx.Bucket(benchBucket).Get(benchKey(rng.Intn(size))) == nil {
				return fmt.Errorf("missing key")
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func benchScanHamgo(b *testing.B, size int) {
	_, db := openHamgo(b, size)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		n := 0
		err := db.WithCursor(nil, func(c *hamgo.Cursor) error {
			for err := c.MoveFirst(); err == nil; err = c.MoveNext() {
				n++
			}
			return nil
		})
		if err != nil || n != size {
			b.Fatalf("scanned %d of %d: %v", n, size, err)
		}
	}
}

func benchScanBolt(b *testing.B, size int) {
	db := openBolt(b, size)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		n := 0
		err := db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(benchBucket).Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				n++
			}
			return nil
		})
		if err != nil || n != size {
			b.Fatalf("scanned %d of %d: %v", n, size, err)
		}
	}
}

// Package benchmarks compares hamgo with raw bbolt on the same workloads.
package benchmarks

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/hamgo"
)

var benchBucket = []byte("bench")

func benchKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func benchValue(i int) []byte {
	v := make([]byte, 32)
	binary.BigEndian.PutUint64(v, uint64(i)*2654435761)
	return v
}

func formatSize(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%dM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dk", n/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// openHamgo returns a populated transactional environment with database 1.
func openHamgo(b *testing.B, size int) (*hamgo.Environment, *hamgo.Database) {
	b.Helper()
	env := hamgo.NewEnvironment(hamgo.NewContext())
	path := filepath.Join(b.TempDir(), "bench.db")
	if err := env.Create(path, hamgo.EnableTransactions, 0o644, nil); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = env.Close() })
	db, err := env.CreateDatabase(1, 0, nil)
	if err != nil {
		b.Fatal(err)
	}
	err = env.Update(func(txn *hamgo.Transaction) error {
		for i := 0; i < size; i++ {
			if err := db.Insert(txn, benchKey(i), benchValue(i), 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return env, db
}

// openBolt returns a populated bolt file with the same contents as openHamgo.
func openBolt(b *testing.B, size int) *bolt.DB {
	b.Helper()
	db, err := bolt.Open(filepath.Join(b.TempDir(), "bench.bolt"), 0o644, &bolt.Options{NoSync: true})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })
	err = db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(benchBucket)
		if err != nil {
			return err
		}
		for i := 0; i < size; i++ {
			if err := bk.Put(benchKey(i), benchValue(i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	return db
}

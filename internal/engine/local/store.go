package local

import (
	"encoding/binary"
	"errors"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Giulio2002/hamgo/internal/engine"
)

var (
	metaBucket = []byte("meta")
	metaKey    = []byte("env")
)

var errNoMeta = errors.New("missing environment meta")

// store persists an environment in a bolt file. Keys carry a one byte prefix
// because bolt refuses empty keys.
type store struct {
	db *bolt.DB
}

// change is one key rewritten by a commit; nil recs deletes the key.
type change struct {
	key  []byte
	recs [][]byte
}

func bucketName(name uint16) []byte {
	b := []byte{'d', 'b', 0, 0}
	binary.BigEndian.PutUint16(b[2:], name)
	return b
}

func storedKey(key []byte) []byte {
	k := make([]byte, len(key)+1)
	copy(k[1:], key)
	return k
}

func openStore(path string, flags uint32, mode os.FileMode, timeout time.Duration) (*store, error) {
	db, err := bolt.Open(path, mode, &bolt.Options{
		Timeout:        timeout,
		NoSync:         flags&engine.WriteThrough == 0,
		NoFreelistSync: true,
		ReadOnly:       flags&engine.ReadOnly != 0,
		MmapFlags:      mmapFlags(flags),
	})
	if err != nil {
		return nil, err
	}
	return &store{db: db}, nil
}

// boltStatus maps bolt and file system errors to engine statuses.
func boltStatus(err error) engine.Status {
	switch {
	case err == nil:
		return engine.StatusSuccess
	case errors.Is(err, bolt.ErrTimeout):
		return engine.StatusWouldBlock
	case errors.Is(err, bolt.ErrInvalid), errors.Is(err, bolt.ErrChecksum), errors.Is(err, errNoMeta):
		return engine.StatusInvFileHeader
	case errors.Is(err, bolt.ErrVersionMismatch):
		return engine.StatusInvFileVersion
	case errors.Is(err, bolt.ErrDatabaseReadOnly), errors.Is(err, bolt.ErrTxNotWritable):
		return engine.StatusWriteProtected
	case errors.Is(err, os.ErrNotExist):
		return engine.StatusFileNotFound
	case errors.Is(err, os.ErrPermission):
		return engine.StatusAccessDenied
	case errors.Is(err, errUnsupportedCompressor):
		return engine.StatusNotImplemented
	}
	return engine.StatusIOError
}

func (s *store) readMeta() (*envMeta, error) {
	var m envMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return errNoMeta
		}
		v := b.Get(metaKey)
		if v == nil {
			return errNoMeta
		}
		return bson.Unmarshal(v, &m)
	})
	if err != nil {
		return nil, err
	}
	if m.Version > formatVersion {
		return nil, bolt.ErrVersionMismatch
	}
	return &m, nil
}

func putMeta(tx *bolt.Tx, m *envMeta) error {
	b, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return err
	}
	data, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return b.Put(metaKey, data)
}

func (s *store) writeMeta(m *envMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error { return putMeta(tx, m) })
}

// createDB adds the bucket of a new database and records its config.
func (s *store) createDB(m *envMeta) error {
	cfg := m.Databases[len(m.Databases)-1]
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucket(bucketName(cfg.Name)); err != nil {
			return err
		}
		return putMeta(tx, m)
	})
}

func (s *store) eraseDB(m *envMeta, name uint16) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		return putMeta(tx, m)
	})
}

// renameDB copies the bucket of oldName to newName and drops the old one.
func (s *store) renameDB(m *envMeta, oldName, newName uint16) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		src := tx.Bucket(bucketName(oldName))
		dst, err := tx.CreateBucket(bucketName(newName))
		if err != nil {
			return err
		}
		if src != nil {
			if err := src.ForEach(func(k, v []byte) error { return dst.Put(k, v) }); err != nil {
				return err
			}
			if err := tx.DeleteBucket(bucketName(oldName)); err != nil {
				return err
			}
		}
		return putMeta(tx, m)
	})
}

// load reads every key of a database in bolt (byte) order.
func (s *store) load(cfg *dbConfig) (*table, error) {
	t := &table{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(cfg.Name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			recs, err := decodeRecords(cfg.RecordCompression, v)
			if err != nil {
				return err
			}
			key := make([]byte, len(k)-1)
			copy(key, k[1:])
			t.entries = append(t.entries, &entry{key: key, recs: recs})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// write applies changes to one database in a single bolt transaction.
func (s *store) write(cfg *dbConfig, changes []change) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return writeChanges(tx, cfg, changes)
	})
}

// writeAll applies the changes of several databases atomically.
func (s *store) writeAll(batches map[*dbConfig][]change) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for cfg, changes := range batches {
			if err := writeChanges(tx, cfg, changes); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeChanges(tx *bolt.Tx, cfg *dbConfig, changes []change) error {
	b, err := tx.CreateBucketIfNotExists(bucketName(cfg.Name))
	if err != nil {
		return err
	}
	for _, c := range changes {
		k := storedKey(c.key)
		if c.recs == nil {
			if err := b.Delete(k); err != nil {
				return err
			}
			continue
		}
		v, err := encodeRecords(cfg.RecordCompression, c.recs)
		if err != nil {
			return err
		}
		if err := b.Put(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) sync() error {
	return s.db.Sync()
}

func (s *store) close() error {
	return s.db.Close()
}

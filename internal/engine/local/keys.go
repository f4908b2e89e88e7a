package local

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// prefixLen is how much of a key the prefix comparator sees before it can
// ask for the full key.
const prefixLen = 32

// keyWidth returns the fixed key width of numeric key types, 0 otherwise.
func keyWidth(keyType uint32) int {
	switch keyType {
	case engine.TypeUint8:
		return 1
	case engine.TypeUint16:
		return 2
	case engine.TypeUint32, engine.TypeReal32:
		return 4
	case engine.TypeUint64, engine.TypeReal64:
		return 8
	}
	return 0
}

func validKeyType(keyType uint32) bool {
	switch keyType {
	case engine.TypeBinary, engine.TypeCustom:
		return true
	}
	return keyWidth(keyType) != 0
}

// numericCompare returns the ordering for numeric key types. Keys are little
// endian and already validated to the type's width.
func numericCompare(keyType uint32) compareFunc {
	switch keyType {
	case engine.TypeUint8:
		return func(a, b []byte) int { return cmp.Compare(a[0], b[0]) }
	case engine.TypeUint16:
		return func(a, b []byte) int {
			return cmp.Compare(binary.LittleEndian.Uint16(a), binary.LittleEndian.Uint16(b))
		}
	case engine.TypeUint32:
		return func(a, b []byte) int {
			return cmp.Compare(binary.LittleEndian.Uint32(a), binary.LittleEndian.Uint32(b))
		}
	case engine.TypeUint64:
		return func(a, b []byte) int {
			return cmp.Compare(binary.LittleEndian.Uint64(a), binary.LittleEndian.Uint64(b))
		}
	case engine.TypeReal32:
		return func(a, b []byte) int {
			return cmp.Compare(math.Float32frombits(binary.LittleEndian.Uint32(a)),
				math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	case engine.TypeReal64:
		return func(a, b []byte) int {
			return cmp.Compare(math.Float64frombits(binary.LittleEndian.Uint64(a)),
				math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}
	return bytes.Compare
}

// compare orders keys of d. An installed comparator replaces the key type's
// built-in order; the prefix comparator is consulted first for long keys.
func (d *database) compare(a, b []byte) int {
	if d.prefixCmp != nil && (len(a) > prefixLen || len(b) > prefixLen) {
		r := d.prefixCmp(a[:min(len(a), prefixLen)], len(a), b[:min(len(b), prefixLen)], len(b))
		if r != int(engine.StatusPrefixRequestFullKey) {
			return r
		}
	}
	if d.cmp != nil {
		return d.cmp(a, b)
	}
	return d.order(a, b)
}

// checkKey validates key against the fixed-width and fixed-size constraints.
func (d *database) checkKey(key []byte) engine.Status {
	if w := keyWidth(d.cfg.KeyType); w != 0 && len(key) != w {
		return engine.StatusInvKeySize
	}
	if d.cfg.KeySize != engine.KeySizeUnlimited && d.cfg.KeySize != 0 && len(key) != int(d.cfg.KeySize) {
		return engine.StatusInvKeySize
	}
	return engine.StatusSuccess
}

func (d *database) checkRecord(rec []byte) engine.Status {
	if d.cfg.RecordSize != engine.RecordSizeUnlimited && len(rec) != int(d.cfg.RecordSize) {
		return engine.StatusInvRecordSize
	}
	return engine.StatusSuccess
}

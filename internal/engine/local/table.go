package local

import "slices"

// entry is one key with its ordered duplicate list. Entries are immutable once
// published in a table; writers build a replacement and swap it in, which is
// what lets a transaction view share entries with the base table.
type entry struct {
	key  []byte
	recs [][]byte
}

func (e *entry) withRecords(recs [][]byte) *entry {
	return &entry{key: e.key, recs: recs}
}

// table is an ordered sequence of entries under a comparator.
type table struct {
	entries []*entry
}

type compareFunc func(a, b []byte) int

func (t *table) len() int { return len(t.entries) }

// search returns the position of key, or the insertion point when missing.
func (t *table) search(key []byte, cmp compareFunc) (int, bool) {
	return slices.BinarySearchFunc(t.entries, key, func(e *entry, k []byte) int {
		return cmp(e.key, k)
	})
}

func (t *table) get(key []byte, cmp compareFunc) *entry {
	if i, ok := t.search(key, cmp); ok {
		return t.entries[i]
	}
	return nil
}

// put stores e, replacing an entry with an equal key.
func (t *table) put(e *entry, cmp compareFunc) {
	i, ok := t.search(e.key, cmp)
	if ok {
		t.entries[i] = e
		return
	}
	t.entries = slices.Insert(t.entries, i, e)
}

func (t *table) remove(key []byte, cmp compareFunc) bool {
	i, ok := t.search(key, cmp)
	if !ok {
		return false
	}
	t.entries = slices.Delete(t.entries, i, i+1)
	return true
}

// clone copies the entry index. Entries themselves are shared.
func (t *table) clone() *table {
	return &table{entries: slices.Clone(t.entries)}
}

// resort reorders the table after a comparator change.
func (t *table) resort(cmp compareFunc) {
	slices.SortStableFunc(t.entries, func(a, b *entry) int {
		return cmp(a.key, b.key)
	})
}

// count returns the number of records, or of distinct keys when distinct is set.
func (t *table) count(distinct bool) uint64 {
	if distinct {
		return uint64(len(t.entries))
	}
	var n uint64
	for _, e := range t.entries {
		n += uint64(len(e.recs))
	}
	return n
}

// nearest resolves an approximate lookup. lt and gt select the neighbours
// that are acceptable when no exact match exists (or when eq is unset).
func (t *table) nearest(key []byte, cmp compareFunc, eq, lt, gt bool) (int, bool) {
	i, found := t.search(key, cmp)
	if found && eq {
		return i, true
	}
	if lt {
		if i > 0 {
			return i - 1, true
		}
	}
	if gt {
		next := i
		if found {
			next = i + 1
		}
		if next < len(t.entries) {
			return next, true
		}
	}
	return 0, false
}

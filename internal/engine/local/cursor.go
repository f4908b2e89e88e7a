package local

import (
	"bytes"
	"math/bits"
	"slices"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// cursor remembers its position as (key, duplicate index) and re-seeks on
// every call, so it stays valid across writes to the table it walks.
type cursor struct {
	h   engine.Handle
	db  *database
	txn *txn
	key []byte // nil while the cursor points to nothing
	dup int
}

func (c *cursor) set(key []byte, dup int) {
	c.key = key
	c.dup = dup
}

// current resolves the item under the cursor.
func (c *cursor) current() (*entry, int, engine.Status) {
	if c.key == nil {
		return nil, 0, engine.StatusCursorIsNil
	}
	ent := c.db.read(c.txn).get(c.key, c.db.compare)
	if ent == nil {
		return nil, 0, engine.StatusCursorIsNil
	}
	c.dup = min(c.dup, len(ent.recs)-1)
	return ent, c.dup, engine.StatusSuccess
}

func (e *Engine) CursorCreate(dbH, txnH engine.Handle, flags uint32) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, t, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return 0
	}
	return e.registerCursor(&cursor{db: d, txn: t})
}

func (e *Engine) registerCursor(c *cursor) engine.Handle {
	c.h = e.alloc()
	c.db.cursors[c.h] = c
	if c.txn != nil {
		c.txn.cursors[c.h] = c
	}
	e.cursors.Set(uint32(c.h), c)
	return c.h
}

// dropCursor unregisters c everywhere.
func (e *Engine) dropCursor(c *cursor) {
	delete(c.db.cursors, c.h)
	if c.txn != nil {
		delete(c.txn.cursors, c.h)
	}
	e.cursors.Delete(uint32(c.h))
}

func (e *Engine) CursorClone(h engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cursors.Get(uint32(h))
	if !ok {
		return 0
	}
	return e.registerCursor(&cursor{db: c.db, txn: c.txn, key: c.key, dup: c.dup})
}

func (e *Engine) CursorClose(h engine.Handle) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cursors.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	e.dropCursor(c)
	return engine.StatusSuccess
}

func (e *Engine) lookupCursor(h engine.Handle) (*cursor, engine.Status) {
	c, ok := e.cursors.Get(uint32(h))
	if !ok {
		return nil, engine.StatusInvParameter
	}
	return c, c.db.ready()
}

func (e *Engine) CursorMove(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return st
	}
	return c.move(flags)
}

func (c *cursor) move(flags uint32) engine.Status {
	dir := flags & engine.CursorDirection
	if bits.OnesCount32(dir) > 1 {
		return engine.StatusInvParameter
	}
	skip := flags&engine.SkipDuplicates != 0
	only := flags&engine.OnlyDuplicates != 0
	if skip && only {
		return engine.StatusInvParameter
	}
	if dir == 0 {
		_, _, st := c.current()
		return st
	}
	if c.key == nil {
		switch dir {
		case engine.CursorNext:
			dir = engine.CursorFirst
		case engine.CursorPrevious:
			dir = engine.CursorLast
		}
	}

	view := c.db.read(c.txn)
	if view.len() == 0 {
		return engine.StatusKeyNotFound
	}
	if only && c.key != nil && (dir == engine.CursorFirst || dir == engine.CursorLast) {
		ent, _, st := c.current()
		if st != engine.StatusSuccess {
			return st
		}
		if dir == engine.CursorFirst {
			c.dup = 0
		} else {
			c.dup = len(ent.recs) - 1
		}
		return engine.StatusSuccess
	}

	switch dir {
	case engine.CursorFirst:
		c.set(view.entries[0].key, 0)
	case engine.CursorLast:
		last := view.entries[view.len()-1]
		c.set(last.key, len(last.recs)-1)
	case engine.CursorNext:
		i, found := view.search(c.key, c.db.compare)
		if found {
			if !skip && c.dup+1 < len(view.entries[i].recs) {
				c.dup++
				return engine.StatusSuccess
			}
			i++
		}
		if only || i >= view.len() {
			return engine.StatusKeyNotFound
		}
		c.set(view.entries[i].key, 0)
	case engine.CursorPrevious:
		i, found := view.search(c.key, c.db.compare)
		if found && !skip {
			if dup := min(c.dup, len(view.entries[i].recs)-1); dup > 0 {
				c.dup = dup - 1
				return engine.StatusSuccess
			}
		}
		if only || i == 0 {
			return engine.StatusKeyNotFound
		}
		prev := view.entries[i-1]
		if skip {
			c.set(prev.key, 0)
		} else {
			c.set(prev.key, len(prev.recs)-1)
		}
	}
	return engine.StatusSuccess
}

func (e *Engine) CursorKey(h engine.Handle) ([]byte, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	ent, _, st := c.current()
	if st != engine.StatusSuccess {
		return nil, st
	}
	return bytes.Clone(ent.key), engine.StatusSuccess
}

func (e *Engine) CursorRecord(h engine.Handle) ([]byte, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	ent, dup, st := c.current()
	if st != engine.StatusSuccess {
		return nil, st
	}
	rec := bytes.Clone(ent.recs[dup])
	if rec == nil {
		rec = []byte{}
	}
	return rec, engine.StatusSuccess
}

func (e *Engine) CursorRecordSize(h engine.Handle) (uint64, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	ent, dup, st := c.current()
	if st != engine.StatusSuccess {
		return 0, st
	}
	return uint64(len(ent.recs[dup])), engine.StatusSuccess
}

func (e *Engine) CursorDuplicateCount(h engine.Handle, flags uint32) (uint32, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	ent, _, st := c.current()
	if st != engine.StatusSuccess {
		return 0, st
	}
	return uint32(len(ent.recs)), engine.StatusSuccess
}

func (e *Engine) CursorFind(h engine.Handle, key []byte, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := c.db.checkKey(key); st != engine.StatusSuccess {
		return st
	}
	view := c.db.read(c.txn)
	approx := flags & (engine.FindLTMatch | engine.FindGTMatch)
	i, ok := view.nearest(key, c.db.compare, approx == 0 || flags&engine.FindEQMatch != 0,
		flags&engine.FindLTMatch != 0, flags&engine.FindGTMatch != 0)
	if !ok {
		return engine.StatusKeyNotFound
	}
	c.set(view.entries[i].key, 0)
	return engine.StatusSuccess
}

func (e *Engine) CursorInsert(h engine.Handle, key, record []byte, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return st
	}
	dup, st := c.db.insert(c.txn, key, record, flags, c)
	if st != engine.StatusSuccess {
		return st
	}
	ent := c.db.read(c.txn).get(key, c.db.compare)
	c.set(ent.key, dup)
	return engine.StatusSuccess
}

func (e *Engine) CursorOverwrite(h engine.Handle, record []byte, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return st
	}
	if flags != 0 {
		return engine.StatusInvParameter
	}
	ent, dup, st := c.current()
	if st != engine.StatusSuccess {
		return st
	}
	d := c.db
	if st := d.writable(c.txn); st != engine.StatusSuccess {
		return st
	}
	if st := d.checkRecord(record); st != engine.StatusSuccess {
		return st
	}
	if st := d.conflict(c.txn, ent.key); st != engine.StatusSuccess {
		return st
	}
	recs := slices.Clone(ent.recs)
	recs[dup] = bytes.Clone(record)
	if recs[dup] == nil {
		recs[dup] = []byte{}
	}
	return d.apply(c.txn, d.write(c.txn), ent.key, ent.withRecords(recs))
}

func (e *Engine) CursorErase(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, st := e.lookupCursor(h)
	if st != engine.StatusSuccess {
		return st
	}
	ent, dup, st := c.current()
	if st != engine.StatusSuccess {
		return st
	}
	d := c.db
	if st := d.writable(c.txn); st != engine.StatusSuccess {
		return st
	}
	if st := d.conflict(c.txn, ent.key); st != engine.StatusSuccess {
		return st
	}
	var next *entry
	if len(ent.recs) > 1 {
		next = ent.withRecords(slices.Delete(slices.Clone(ent.recs), dup, dup+1))
	}
	if st := d.apply(c.txn, d.write(c.txn), ent.key, next); st != engine.StatusSuccess {
		return st
	}
	c.set(nil, 0)
	return engine.StatusSuccess
}

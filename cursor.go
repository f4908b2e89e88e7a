package hamgo

import (
	"math/bits"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// Cursor walks the items of a Database in key order, duplicates in
// insertion order. A new cursor points to nothing; the operations that read
// or modify the current item fail with ErrCursorIsNil until it is moved or
// positioned by Find or Insert.
//
// A Cursor is closed explicitly, or by closing its Database or Environment.
// Any call on a closed cursor fails with ErrClosed.
type Cursor struct {
	handle engine.Handle
	db     *Database
	txn    *Transaction
}

// Database returns the database the cursor walks.
func (c *Cursor) Database() *Database {
	return c.db
}

// Transaction returns the transaction the cursor was created in, or nil.
func (c *Cursor) Transaction() *Transaction {
	return c.txn
}

func (c *Cursor) eng() engine.Engine {
	return c.db.eng()
}

// do runs fn with the owner's lock held and the cursor known to be open.
func (c *Cursor) do(fn func(eng engine.Engine, h engine.Handle) engine.Status) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.handle == 0 {
		return errClosed()
	}
	return statusError(fn(c.eng(), c.handle))
}

// Move moves the cursor. flags holds at most one of CursorFirst, CursorLast,
// CursorNext and CursorPrevious, optionally with SkipDuplicates or
// OnlyDuplicates. With no direction Move only checks that the cursor points
// to an item. ErrKeyNotFound leaves the position unchanged.
func (c *Cursor) Move(flags uint32) error {
	if bits.OnesCount32(flags&engine.CursorDirection) > 1 {
		return invalidArgument("more than one direction in flags 0x%x", flags)
	}
	if flags&SkipDuplicates != 0 && flags&OnlyDuplicates != 0 {
		return invalidArgument("SkipDuplicates and OnlyDuplicates are exclusive")
	}
	return c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		return eng.CursorMove(h, flags)
	})
}

// MoveFirst positions the cursor on the first item.
func (c *Cursor) MoveFirst() error { return c.Move(CursorFirst) }

// MoveLast positions the cursor on the last item.
func (c *Cursor) MoveLast() error { return c.Move(CursorLast) }

// MoveNext advances the cursor; on a nil cursor it acts as MoveFirst.
func (c *Cursor) MoveNext() error { return c.Move(CursorNext) }

// MovePrevious steps the cursor back; on a nil cursor it acts as MoveLast.
func (c *Cursor) MovePrevious() error { return c.Move(CursorPrevious) }

// Find positions the cursor on the first duplicate of key.
func (c *Cursor) Find(key []byte) error {
	return c.FindNear(key, 0)
}

// FindNear is Find with approximate matching: FindLTMatch, FindGTMatch and
// FindEQMatch select which of the nearest smaller key, the nearest greater
// key and key itself are acceptable.
func (c *Cursor) FindNear(key []byte, flags uint32) error {
	if key == nil {
		return invalidArgument("nil key")
	}
	return c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		return eng.CursorFind(h, key, flags)
	})
}

// Key returns a copy of the current key.
func (c *Cursor) Key() ([]byte, error) {
	var key []byte
	err := c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		var st engine.Status
		key, st = eng.CursorKey(h)
		return st
	})
	if err != nil {
		return nil, err
	}
	if key == nil {
		key = []byte{}
	}
	return key, nil
}

// Record returns a copy of the current record.
func (c *Cursor) Record() ([]byte, error) {
	var rec []byte
	err := c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		var st engine.Status
		rec, st = eng.CursorRecord(h)
		return st
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = []byte{}
	}
	return rec, nil
}

// Overwrite replaces the current record.
func (c *Cursor) Overwrite(record []byte) error {
	if record == nil {
		return invalidArgument("nil record")
	}
	return c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		return eng.CursorOverwrite(h, record, 0)
	})
}

// Insert stores record under key and moves the cursor onto it. The
// DuplicateInsert flags place a duplicate relative to the current one.
func (c *Cursor) Insert(key, record []byte, flags uint32) error {
	if key == nil {
		return invalidArgument("nil key")
	}
	if record == nil {
		return invalidArgument("nil record")
	}
	return c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		return eng.CursorInsert(h, key, record, flags)
	})
}

// Erase deletes the current item. The cursor then points to nothing.
func (c *Cursor) Erase() error {
	return c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		return eng.CursorErase(h, 0)
	})
}

// DuplicateCount returns the number of records of the current key.
func (c *Cursor) DuplicateCount() (uint32, error) {
	var n uint32
	err := c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		var st engine.Status
		n, st = eng.CursorDuplicateCount(h, 0)
		return st
	})
	return n, err
}

// RecordSize returns the size of the current record.
func (c *Cursor) RecordSize() (uint64, error) {
	var n uint64
	err := c.do(func(eng engine.Engine, h engine.Handle) engine.Status {
		var st engine.Status
		n, st = eng.CursorRecordSize(h)
		return st
	})
	return n, err
}

// Clone returns a new cursor on the same item.
func (c *Cursor) Clone() (*Cursor, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.handle == 0 {
		return nil, errClosed()
	}
	h := c.eng().CursorClone(c.handle)
	if h == 0 {
		return nil, NewError(ErrInternal)
	}
	clone := &Cursor{handle: h, db: c.db, txn: c.txn}
	c.db.cursors.add(clone)
	return clone, nil
}

// Close closes the cursor. Closing a closed cursor does nothing.
func (c *Cursor) Close() error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.handle == 0 {
		return nil
	}
	if err := statusError(c.eng().CursorClose(c.handle)); err != nil {
		return err
	}
	c.handle = 0
	c.db.cursors.remove(c)
	return nil
}

// closeForced closes the cursor on behalf of its owner, which has already
// taken it out of the registry. Caller holds the owner's lock.
func (c *Cursor) closeForced() {
	if c.handle == 0 {
		return
	}
	c.db.logForced("cursor", c.handle, c.eng().CursorClose(c.handle))
	c.handle = 0
}

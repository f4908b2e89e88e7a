package hamgo

import (
	"sync"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// Database is an ordered key/value table. It is either opened from an
// Environment, sharing its lock, or standalone, owning a private
// environment file and its own lock.
type Database struct {
	lock sync.Mutex
	owner
	env     *Environment
	cursors registry[*Cursor]
	cb      callbacks
}

// NewDatabase creates a closed standalone Database. A nil ctx uses
// DefaultContext.
func NewDatabase(ctx *Context) *Database {
	d := &Database{}
	d.ctx = orDefault(ctx)
	d.mu = &d.lock
	return d
}

// Create creates a standalone database file, replacing an existing one.
func (d *Database) Create(filename string, flags, mode uint32, params []*Parameter) error {
	return d.standalone(params, func(eng engine.Engine, h engine.Handle, p []engine.Param) engine.Status {
		return eng.DBCreate(h, filename, flags, mode, p)
	})
}

// Open opens a standalone database file.
func (d *Database) Open(filename string, flags uint32, params []*Parameter) error {
	return d.standalone(params, func(eng engine.Engine, h engine.Handle, p []engine.Param) engine.Status {
		return eng.DBOpen(h, filename, flags, p)
	})
}

func (d *Database) standalone(params []*Parameter, open func(engine.Engine, engine.Handle, []engine.Param) engine.Status) error {
	if d.env != nil {
		return invalidArgument("database belongs to an environment")
	}
	p, err := toEngine(params)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle != 0 {
		return NewError(ErrDatabaseAlreadyOpen)
	}
	eng := d.eng()
	return d.acquire(eng.DBNew, eng.DBDelete, func(h engine.Handle) engine.Status {
		return open(eng, h, p)
	})
}

// Environment returns the environment d was opened from, or nil for a
// standalone database.
func (d *Database) Environment() *Environment {
	return d.env
}

// Find returns the record of key, or its first duplicate.
func (d *Database) Find(txn *Transaction, key []byte) ([]byte, error) {
	if key == nil {
		return nil, invalidArgument("nil key")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	th, err := txnHandle(txn)
	if err != nil {
		return nil, err
	}
	rec, st := d.eng().DBFind(d.handle, th, key, 0)
	if err := statusError(st); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = []byte{}
	}
	return rec, nil
}

// Insert stores record under key. Without Overwrite or Duplicate an
// existing key fails with ErrDuplicateKey.
func (d *Database) Insert(txn *Transaction, key, record []byte, flags uint32) error {
	if key == nil {
		return invalidArgument("nil key")
	}
	if record == nil {
		return invalidArgument("nil record")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	th, err := txnHandle(txn)
	if err != nil {
		return err
	}
	return statusError(d.eng().DBInsert(d.handle, th, key, record, flags))
}

// Erase deletes key with all its duplicates.
func (d *Database) Erase(txn *Transaction, key []byte) error {
	if key == nil {
		return invalidArgument("nil key")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	th, err := txnHandle(txn)
	if err != nil {
		return err
	}
	return statusError(d.eng().DBErase(d.handle, th, key, 0))
}

// KeyCount counts items; with SkipDuplicates it counts distinct keys.
func (d *Database) KeyCount(txn *Transaction, flags uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	th, err := txnHandle(txn)
	if err != nil {
		return 0, err
	}
	n, st := d.eng().DBKeyCount(d.handle, th, flags)
	return n, statusError(st)
}

// GetParameters fills the Value (or String) of each parameter.
func (d *Database) GetParameters(params []*Parameter) error {
	p, err := toEngine(params)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if err := statusError(d.eng().DBGetParameters(d.handle, p)); err != nil {
		return err
	}
	fromEngine(params, p)
	return nil
}

// Flush writes the database's pending changes to disk.
func (d *Database) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return statusError(d.eng().DBFlush(d.handle))
}

// LastError returns the status of the last database operation as an error,
// nil if it succeeded.
func (d *Database) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	return statusError(d.eng().DBGetError(d.handle))
}

// SetComparator installs c as the key order; nil restores the key type's
// built-in order. The database keeps c until it closes.
func (d *Database) SetComparator(c Comparator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	prev := d.cb.compare
	d.cb.compare = c
	if err := statusError(d.eng().DBSetCompare(d.handle, d.cb.compareFunc())); err != nil {
		d.cb.compare = prev
		return err
	}
	return nil
}

// SetPrefixComparator installs c to order keys by their first bytes before
// falling back to a full comparison.
func (d *Database) SetPrefixComparator(c PrefixComparator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	prev := d.cb.prefix
	d.cb.prefix = c
	if err := statusError(d.eng().DBSetPrefixCompare(d.handle, d.cb.prefixFunc())); err != nil {
		d.cb.prefix = prev
		return err
	}
	return nil
}

// NewCursor creates an unpositioned cursor, inside txn if it is not nil.
func (d *Database) NewCursor(txn *Transaction) (*Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	th, err := txnHandle(txn)
	if err != nil {
		return nil, err
	}
	h := d.eng().CursorCreate(d.handle, th, 0)
	if h == 0 {
		return nil, NewError(ErrInternal)
	}
	c := &Cursor{handle: h, db: d, txn: txn}
	d.cursors.add(c)
	return c, nil
}

// closeCursors force-closes every cursor of d. Caller holds d.mu.
func (d *Database) closeCursors() {
	for _, c := range d.cursors.drain() {
		c.closeForced()
	}
}

// closeForced closes d during its environment's close, ignoring failures.
// Caller holds d.mu.
func (d *Database) closeForced() {
	if d.handle == 0 {
		return
	}
	d.closeCursors()
	eng := d.eng()
	d.logForced("database", d.handle, eng.DBClose(d.handle, AutoCleanup))
	eng.DBDelete(d.handle)
	d.handle = 0
	d.cb.clear()
}

// Close closes the database with no flags.
func (d *Database) Close() error {
	return d.CloseWithFlags(0)
}

// CloseWithFlags closes every cursor of the database, then the database.
// The engine is told to clean up whatever a failed cursor close left behind.
// A failure closing the database is returned and leaves it open. Closing a
// closed database does nothing.
func (d *Database) CloseWithFlags(flags uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return nil
	}
	d.closeCursors()
	eng := d.eng()
	if err := statusError(eng.DBClose(d.handle, flags|AutoCleanup)); err != nil {
		return err
	}
	eng.DBDelete(d.handle)
	d.handle = 0
	d.cb.clear()
	if d.env != nil {
		d.env.dbs.remove(d)
	}
	return nil
}

package hamgo

import (
	"sync"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// Environment is a file holding up to MaxDatabases named databases.
// Databases opened from it share its lock.
type Environment struct {
	lock sync.Mutex
	owner
	dbs  registry[*Database]
	txns registry[*Transaction]
}

// NewEnvironment creates a closed Environment. A nil ctx uses
// DefaultContext.
func NewEnvironment(ctx *Context) *Environment {
	e := &Environment{}
	e.ctx = orDefault(ctx)
	e.mu = &e.lock
	return e
}

// Create creates the environment file, replacing an existing one. mode 0
// uses 0644.
func (e *Environment) Create(filename string, flags, mode uint32, params []*Parameter) error {
	p, err := toEngine(params)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle != 0 {
		return NewError(ErrEnvironmentAlreadyOpen)
	}
	eng := e.eng()
	return e.acquire(eng.EnvNew, eng.EnvDelete, func(h engine.Handle) engine.Status {
		return eng.EnvCreate(h, filename, flags, mode, p)
	})
}

// Open opens an existing environment file.
func (e *Environment) Open(filename string, flags uint32, params []*Parameter) error {
	p, err := toEngine(params)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle != 0 {
		return NewError(ErrEnvironmentAlreadyOpen)
	}
	eng := e.eng()
	return e.acquire(eng.EnvNew, eng.EnvDelete, func(h engine.Handle) engine.Status {
		return eng.EnvOpen(h, filename, flags, p)
	})
}

// CreateDatabase creates database name and opens it.
func (e *Environment) CreateDatabase(name uint16, flags uint32, params []*Parameter) (*Database, error) {
	return e.database(name, flags, params, e.eng().EnvCreateDB)
}

// OpenDatabase opens the existing database name.
func (e *Environment) OpenDatabase(name uint16, flags uint32, params []*Parameter) (*Database, error) {
	return e.database(name, flags, params, e.eng().EnvOpenDB)
}

func (e *Environment) database(name uint16, flags uint32, params []*Parameter,
	open func(env, db engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status) (*Database, error) {
	p, err := toEngine(params)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	d := &Database{env: e}
	d.ctx = e.ctx
	d.mu = e.mu
	eng := e.eng()
	if err := d.acquire(eng.DBNew, eng.DBDelete, func(h engine.Handle) engine.Status {
		return open(e.handle, h, name, flags, p)
	}); err != nil {
		return nil, err
	}
	e.dbs.add(d)
	return d, nil
}

// RenameDatabase renames a database that is not open.
func (e *Environment) RenameDatabase(oldName, newName uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	return statusError(e.eng().EnvRenameDB(e.handle, oldName, newName, 0))
}

// EraseDatabase deletes a database that is not open, with all its items.
func (e *Environment) EraseDatabase(name uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	return statusError(e.eng().EnvEraseDB(e.handle, name, 0))
}

// DatabaseNames returns the names of all databases in ascending order.
func (e *Environment) DatabaseNames() ([]uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	names, st := e.eng().EnvDatabaseNames(e.handle)
	if err := statusError(st); err != nil {
		return nil, err
	}
	return names, nil
}

// GetParameters fills the Value (or String, for ParamFilename) of each
// parameter.
func (e *Environment) GetParameters(params []*Parameter) error {
	p, err := toEngine(params)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	if err := statusError(e.eng().EnvGetParameters(e.handle, p)); err != nil {
		return err
	}
	fromEngine(params, p)
	return nil
}

// Flush writes pending changes to disk.
func (e *Environment) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	return statusError(e.eng().EnvFlush(e.handle))
}

// Begin starts a transaction. The environment must have been created or
// opened with EnableTransactions.
func (e *Environment) Begin(flags uint32) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return nil, err
	}
	h, st := e.eng().TxnBegin(e.handle, flags)
	if err := statusError(st); err != nil {
		return nil, err
	}
	t := &Transaction{handle: h, env: e}
	e.txns.add(t)
	return t, nil
}

// Close closes the environment with no flags.
func (e *Environment) Close() error {
	return e.CloseWithFlags(0)
}

// CloseWithFlags closes every cursor, transaction and database derived from
// the environment, then the environment itself. Open transactions are
// aborted unless flags has TxnAutoCommit. Failures closing derived objects
// are logged and ignored; a failure closing the environment is returned and
// leaves it open. Closing a closed environment does nothing.
func (e *Environment) CloseWithFlags(flags uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == 0 {
		return nil
	}
	for _, d := range e.dbs.items {
		d.closeCursors()
	}
	commit := flags&TxnAutoCommit != 0
	for _, t := range e.txns.drain() {
		t.finishForced(commit)
	}
	for _, d := range e.dbs.drain() {
		d.closeForced()
	}
	if !commit {
		flags |= TxnAutoAbort
	}
	eng := e.eng()
	if err := statusError(eng.EnvClose(e.handle, flags)); err != nil {
		return err
	}
	eng.EnvDelete(e.handle)
	e.handle = 0
	return nil
}

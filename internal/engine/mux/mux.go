// Package mux routes engine calls to one of several engines by filename.
//
// Environments and standalone databases are bound to an engine when they are
// created or opened; everything derived from them (databases, cursors,
// transactions) follows that binding. Handles returned by the mux are its
// own and never collide across the routed engines.
package mux

import (
	"strings"
	"sync"

	"github.com/Giulio2002/hamgo/internal/engine"
	"github.com/Giulio2002/hamgo/internal/fastmap"
)

// Route sends filenames starting with Prefix to Engine.
type Route struct {
	Prefix string
	Engine engine.Engine
}

// binding maps a mux handle to a handle of the engine that owns it. eng is
// nil until the environment or database is created or opened. parent is the
// mux handle the resource was derived from; leaf marks cursors and
// transactions, which the engine releases when their parent closes.
type binding struct {
	eng    engine.Engine
	h      engine.Handle
	parent engine.Handle
	leaf   bool
}

// Engine implements engine.Engine over a default engine and routes.
type Engine struct {
	def    engine.Engine
	routes []Route

	mu      sync.Mutex
	next    uint32
	handles fastmap.Map[binding]
}

var _ engine.Engine = (*Engine)(nil)

// New creates a mux. Filenames matching no route go to def.
func New(def engine.Engine, routes ...Route) *Engine {
	return &Engine{def: def, routes: routes}
}

func (m *Engine) route(filename string) engine.Engine {
	for _, r := range m.routes {
		if strings.HasPrefix(filename, r.Prefix) {
			return r.Engine
		}
	}
	return m.def
}

func (m *Engine) get(h engine.Handle) (binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles.Get(uint32(h))
}

// bound resolves a handle that must already be bound to an engine.
func (m *Engine) bound(h engine.Handle) (binding, engine.Status) {
	b, ok := m.get(h)
	if !ok {
		return b, engine.StatusInvParameter
	}
	if b.eng == nil {
		return b, engine.StatusNotInitialized
	}
	return b, engine.StatusSuccess
}

func (m *Engine) set(h engine.Handle, b binding) {
	m.mu.Lock()
	m.handles.Set(uint32(h), b)
	m.mu.Unlock()
}

func (m *Engine) drop(h engine.Handle) {
	m.mu.Lock()
	m.handles.Delete(uint32(h))
	m.mu.Unlock()
}

// sweep drops the cursor and transaction bindings below a closed environment
// or database.
func (m *Engine) sweep(h engine.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := map[engine.Handle]bool{h: true}
	m.handles.ForEach(func(k uint32, b binding) {
		if !b.leaf && b.parent == h {
			owners[engine.Handle(k)] = true
		}
	})
	var dead []uint32
	m.handles.ForEach(func(k uint32, b binding) {
		if b.leaf && owners[b.parent] {
			dead = append(dead, k)
		}
	})
	for _, k := range dead {
		m.handles.Delete(k)
	}
}

func (m *Engine) wrap(b binding) engine.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		m.next++
		if m.next != 0 && !m.handles.Has(m.next) {
			break
		}
	}
	m.handles.Set(m.next, b)
	return engine.Handle(m.next)
}

// txnOn resolves an optional transaction handle that must live on eng.
func (m *Engine) txnOn(eng engine.Engine, h engine.Handle) (engine.Handle, engine.Status) {
	if h == 0 {
		return 0, engine.StatusSuccess
	}
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	if b.eng != eng {
		return 0, engine.StatusInvParameter
	}
	return b.h, engine.StatusSuccess
}

func (m *Engine) Version() (major, minor, revision uint32) { return m.def.Version() }

func (m *Engine) License() (licensee, product string) { return m.def.License() }

func (m *Engine) SetErrorHandler(fn engine.ErrorHandlerFunc) {
	m.def.SetErrorHandler(fn)
	for _, r := range m.routes {
		r.Engine.SetErrorHandler(fn)
	}
}

func (m *Engine) EnvNew() engine.Handle {
	return m.wrap(binding{})
}

func (m *Engine) EnvDelete(h engine.Handle) {
	b, ok := m.get(h)
	if !ok {
		return
	}
	if b.eng != nil {
		b.eng.EnvDelete(b.h)
	}
	m.drop(h)
}

// bind attaches an unbound handle to the engine serving filename. newFn
// allocates the inner handle.
func (m *Engine) bind(h engine.Handle, filename string, newFn func(engine.Engine) engine.Handle) (binding, engine.Status) {
	b, ok := m.get(h)
	if !ok {
		return b, engine.StatusInvParameter
	}
	if b.eng != nil {
		return b, engine.StatusSuccess
	}
	eng := m.route(filename)
	inner := newFn(eng)
	if inner == 0 {
		return b, engine.StatusOutOfMemory
	}
	b = binding{eng: eng, h: inner}
	m.set(h, b)
	return b, engine.StatusSuccess
}

func envNew(eng engine.Engine) engine.Handle { return eng.EnvNew() }
func dbNew(eng engine.Engine) engine.Handle  { return eng.DBNew() }

func (m *Engine) EnvCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	b, st := m.bind(h, filename, envNew)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvCreate(b.h, filename, flags, mode, params)
}

func (m *Engine) EnvOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	b, st := m.bind(h, filename, envNew)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvOpen(b.h, filename, flags, params)
}

// envDB binds db to the engine of env.
func (m *Engine) envDB(envH, dbH engine.Handle) (env, db binding, st engine.Status) {
	env, st = m.bound(envH)
	if st != engine.StatusSuccess {
		return
	}
	db, ok := m.get(dbH)
	if !ok {
		return env, db, engine.StatusInvParameter
	}
	if db.eng == nil {
		db = binding{eng: env.eng, h: env.eng.DBNew(), parent: envH}
		m.set(dbH, db)
	}
	if db.eng != env.eng {
		return env, db, engine.StatusInvParameter
	}
	return env, db, engine.StatusSuccess
}

func (m *Engine) EnvCreateDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	env, db, st := m.envDB(envH, dbH)
	if st != engine.StatusSuccess {
		return st
	}
	return env.eng.EnvCreateDB(env.h, db.h, name, flags, params)
}

func (m *Engine) EnvOpenDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	env, db, st := m.envDB(envH, dbH)
	if st != engine.StatusSuccess {
		return st
	}
	return env.eng.EnvOpenDB(env.h, db.h, name, flags, params)
}

func (m *Engine) EnvRenameDB(h engine.Handle, oldName, newName uint16, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvRenameDB(b.h, oldName, newName, flags)
}

func (m *Engine) EnvEraseDB(h engine.Handle, name uint16, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvEraseDB(b.h, name, flags)
}

func (m *Engine) EnvDatabaseNames(h engine.Handle) ([]uint16, engine.Status) {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	return b.eng.EnvDatabaseNames(b.h)
}

func (m *Engine) EnvGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvGetParameters(b.h, params)
}

func (m *Engine) EnvFlush(h engine.Handle) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.EnvFlush(b.h)
}

func (m *Engine) EnvClose(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := b.eng.EnvClose(b.h, flags); st != engine.StatusSuccess {
		return st
	}
	m.sweep(h)
	return engine.StatusSuccess
}

func (m *Engine) DBNew() engine.Handle {
	return m.wrap(binding{})
}

func (m *Engine) DBDelete(h engine.Handle) {
	b, ok := m.get(h)
	if !ok {
		return
	}
	if b.eng != nil {
		b.eng.DBDelete(b.h)
	}
	m.drop(h)
}

func (m *Engine) DBCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	b, st := m.bind(h, filename, dbNew)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBCreate(b.h, filename, flags, mode, params)
}

func (m *Engine) DBOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	b, st := m.bind(h, filename, dbNew)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBOpen(b.h, filename, flags, params)
}

func (m *Engine) DBGetError(h engine.Handle) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBGetError(b.h)
}

func (m *Engine) DBSetCompare(h engine.Handle, fn engine.CompareFunc) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBSetCompare(b.h, fn)
}

func (m *Engine) DBSetPrefixCompare(h engine.Handle, fn engine.PrefixCompareFunc) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBSetPrefixCompare(b.h, fn)
}

func (m *Engine) DBGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBGetParameters(b.h, params)
}

// dbTxn resolves a database and an optional transaction on the same engine.
func (m *Engine) dbTxn(dbH, txnH engine.Handle) (binding, engine.Handle, engine.Status) {
	b, st := m.bound(dbH)
	if st != engine.StatusSuccess {
		return b, 0, st
	}
	t, st := m.txnOn(b.eng, txnH)
	return b, t, st
}

func (m *Engine) DBInsert(dbH, txnH engine.Handle, key, record []byte, flags uint32) engine.Status {
	b, t, st := m.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBInsert(b.h, t, key, record, flags)
}

func (m *Engine) DBFind(dbH, txnH engine.Handle, key []byte, flags uint32) ([]byte, engine.Status) {
	b, t, st := m.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return nil, st
	}
	return b.eng.DBFind(b.h, t, key, flags)
}

func (m *Engine) DBErase(dbH, txnH engine.Handle, key []byte, flags uint32) engine.Status {
	b, t, st := m.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBErase(b.h, t, key, flags)
}

func (m *Engine) DBKeyCount(dbH, txnH engine.Handle, flags uint32) (uint64, engine.Status) {
	b, t, st := m.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	return b.eng.DBKeyCount(b.h, t, flags)
}

func (m *Engine) DBFlush(h engine.Handle) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.DBFlush(b.h)
}

func (m *Engine) DBClose(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := b.eng.DBClose(b.h, flags); st != engine.StatusSuccess {
		return st
	}
	m.sweep(h)
	return engine.StatusSuccess
}

func (m *Engine) CursorCreate(dbH, txnH engine.Handle, flags uint32) engine.Handle {
	b, t, st := m.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return 0
	}
	inner := b.eng.CursorCreate(b.h, t, flags)
	if inner == 0 {
		return 0
	}
	return m.wrap(binding{eng: b.eng, h: inner, parent: dbH, leaf: true})
}

func (m *Engine) CursorClone(h engine.Handle) engine.Handle {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return 0
	}
	inner := b.eng.CursorClone(b.h)
	if inner == 0 {
		return 0
	}
	return m.wrap(binding{eng: b.eng, h: inner, parent: b.parent, leaf: true})
}

func (m *Engine) CursorMove(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.CursorMove(b.h, flags)
}

func (m *Engine) CursorKey(h engine.Handle) ([]byte, engine.Status) {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	return b.eng.CursorKey(b.h)
}

func (m *Engine) CursorRecord(h engine.Handle) ([]byte, engine.Status) {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	return b.eng.CursorRecord(b.h)
}

func (m *Engine) CursorOverwrite(h engine.Handle, record []byte, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.CursorOverwrite(b.h, record, flags)
}

func (m *Engine) CursorFind(h engine.Handle, key []byte, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.CursorFind(b.h, key, flags)
}

func (m *Engine) CursorInsert(h engine.Handle, key, record []byte, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.CursorInsert(b.h, key, record, flags)
}

func (m *Engine) CursorErase(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	return b.eng.CursorErase(b.h, flags)
}

func (m *Engine) CursorDuplicateCount(h engine.Handle, flags uint32) (uint32, engine.Status) {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	return b.eng.CursorDuplicateCount(b.h, flags)
}

func (m *Engine) CursorRecordSize(h engine.Handle) (uint64, engine.Status) {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	return b.eng.CursorRecordSize(b.h)
}

func (m *Engine) CursorClose(h engine.Handle) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := b.eng.CursorClose(b.h); st != engine.StatusSuccess {
		return st
	}
	m.drop(h)
	return engine.StatusSuccess
}

func (m *Engine) TxnBegin(envH engine.Handle, flags uint32) (engine.Handle, engine.Status) {
	b, st := m.bound(envH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	inner, st := b.eng.TxnBegin(b.h, flags)
	if st != engine.StatusSuccess {
		return 0, st
	}
	return m.wrap(binding{eng: b.eng, h: inner, parent: envH, leaf: true}), engine.StatusSuccess
}

func (m *Engine) TxnCommit(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := b.eng.TxnCommit(b.h, flags); st != engine.StatusSuccess {
		return st
	}
	m.drop(h)
	return engine.StatusSuccess
}

func (m *Engine) TxnAbort(h engine.Handle, flags uint32) engine.Status {
	b, st := m.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if st := b.eng.TxnAbort(b.h, flags); st != engine.StatusSuccess {
		return st
	}
	m.drop(h)
	return engine.StatusSuccess
}

package local

import (
	"github.com/Giulio2002/hamgo/internal/engine"
)

// txn is a transaction. Writes go to per-database views cloned from the base
// tables on first touch; every written key is locked against other
// transactions until commit or abort.
type txn struct {
	h       engine.Handle
	env     *environment
	flags   uint32
	views   map[*database]*table
	touched map[*database]map[string][]byte
	cursors map[engine.Handle]*cursor
}

// claim locks key for t and records it for the commit.
func (t *txn) claim(d *database, key []byte) {
	k := string(key)
	t.env.locks[lockKey{d.cfg.Name, k}] = t
	keys := t.touched[d]
	if keys == nil {
		keys = make(map[string][]byte)
		t.touched[d] = keys
	}
	if _, ok := keys[k]; !ok {
		keys[k] = []byte(k)
	}
}

func (t *txn) release() {
	for d, keys := range t.touched {
		for k := range keys {
			delete(t.env.locks, lockKey{d.cfg.Name, k})
		}
	}
	delete(t.env.txns, t.h)
	t.views = nil
	t.touched = nil
}

func (e *Engine) TxnBegin(envH engine.Handle, flags uint32) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(envH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	if !env.transactional() {
		return 0, e.fail(engine.StatusInvParameter, "transactions are not enabled")
	}
	if flags&^(engine.TxnReadOnly|engine.TxnTemporary) != 0 {
		return 0, e.fail(engine.StatusInvParameter, "invalid flags 0x%x for transaction begin", flags)
	}
	h := e.alloc()
	t := &txn{
		h:       h,
		env:     env,
		flags:   flags,
		views:   make(map[*database]*table),
		touched: make(map[*database]map[string][]byte),
		cursors: make(map[engine.Handle]*cursor),
	}
	env.txns[h] = t
	e.txns.Set(uint32(h), t)
	return h, engine.StatusSuccess
}

func (e *Engine) TxnCommit(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.txns.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if len(t.cursors) > 0 {
		return engine.StatusCursorStillOpen
	}
	return e.commitTxn(t)
}

// commitTxn merges the touched keys of every view into the base tables.
func (e *Engine) commitTxn(t *txn) engine.Status {
	type merge struct {
		d       *database
		view    *table
		changes []change
	}
	var merges []merge
	batches := make(map[*dbConfig][]change)
	for d, keys := range t.touched {
		view := t.views[d]
		m := merge{d: d, view: view}
		for _, key := range keys {
			c := change{key: key}
			if ent := view.get(key, d.compare); ent != nil {
				c.key = ent.key
				c.recs = ent.recs
			}
			m.changes = append(m.changes, c)
		}
		merges = append(merges, m)
		batches[&d.cfg] = m.changes
	}
	if t.env.store != nil && len(batches) > 0 {
		if err := t.env.store.writeAll(batches); err != nil {
			return e.fail(boltStatus(err), "cannot commit transaction: %v", err)
		}
	}
	for _, m := range merges {
		base := m.d.base()
		for _, c := range m.changes {
			if c.recs == nil {
				base.remove(c.key, m.d.compare)
				continue
			}
			base.put(m.view.get(c.key, m.d.compare), m.d.compare)
		}
	}
	t.release()
	e.txns.Delete(uint32(t.h))
	return engine.StatusSuccess
}

func (e *Engine) TxnAbort(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.txns.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if len(t.cursors) > 0 {
		return engine.StatusCursorStillOpen
	}
	e.abortTxn(t)
	return engine.StatusSuccess
}

func (e *Engine) abortTxn(t *txn) {
	t.release()
	e.txns.Delete(uint32(t.h))
}

// closeTxnCursors drops the cursors of t during an environment close.
func (e *Engine) closeTxnCursors(t *txn) {
	for _, c := range t.cursors {
		e.dropCursor(c)
	}
}

package local

import (
	"bytes"
	"slices"

	"github.com/Giulio2002/hamgo/internal/engine"
)

type database struct {
	h       engine.Handle
	env     *environment // nil while closed
	cfg     dbConfig
	flags   uint32
	last    engine.Status
	private bool

	order     compareFunc
	cmp       engine.CompareFunc
	prefixCmp engine.PrefixCompareFunc
	cursors   map[engine.Handle]*cursor
}

func (d *database) attach(env *environment, cfg dbConfig, flags uint32) {
	d.env = env
	d.cfg = cfg
	d.flags = cfg.Flags | flags
	d.order = numericCompare(cfg.KeyType)
	d.cursors = make(map[engine.Handle]*cursor)
	env.dbs[cfg.Name] = d
}

func (d *database) base() *table { return d.env.tables[d.cfg.Name] }

// ready reports NotReady for custom-typed databases without a comparator.
func (d *database) ready() engine.Status {
	if d.cfg.KeyType == engine.TypeCustom && d.cmp == nil {
		return engine.StatusNotReady
	}
	return engine.StatusSuccess
}

// read returns the table visible to t.
func (d *database) read(t *txn) *table {
	if t != nil {
		if v, ok := t.views[d]; ok {
			return v
		}
	}
	return d.base()
}

// write returns the table t writes to, cloning the base on first touch.
func (d *database) write(t *txn) *table {
	if t == nil {
		return d.base()
	}
	if v, ok := t.views[d]; ok {
		return v
	}
	v := d.base().clone()
	t.views[d] = v
	return v
}

func (d *database) writable(t *txn) engine.Status {
	if d.flags&engine.ReadOnly != 0 || d.env.readOnly() {
		return engine.StatusWriteProtected
	}
	if t != nil && t.flags&engine.TxnReadOnly != 0 {
		return engine.StatusWriteProtected
	}
	return d.ready()
}

// conflict reports whether another transaction holds key.
func (d *database) conflict(t *txn, key []byte) engine.Status {
	if owner := d.env.locks[lockKey{d.cfg.Name, string(key)}]; owner != nil && owner != t {
		return engine.StatusTxnConflict
	}
	return engine.StatusSuccess
}

// apply publishes next (nil erases key) in view. Writes outside a transaction
// go to the store first; transactional writes claim the key instead.
func (d *database) apply(t *txn, view *table, key []byte, next *entry) engine.Status {
	if t == nil && d.env.store != nil {
		c := change{key: key}
		if next != nil {
			c.recs = next.recs
		}
		if err := d.env.store.write(&d.cfg, []change{c}); err != nil {
			return boltStatus(err)
		}
	}
	if t != nil {
		t.claim(d, key)
	}
	if next == nil {
		view.remove(key, d.compare)
	} else {
		view.put(next, d.compare)
	}
	return engine.StatusSuccess
}

// dbParams validates creation parameters into a config.
func dbParams(name uint16, flags uint32, params []engine.Param) (dbConfig, engine.Status) {
	cfg := dbConfig{
		Name:       name,
		Flags:      flags,
		KeyType:    engine.TypeBinary,
		KeySize:    engine.KeySizeUnlimited,
		RecordSize: engine.RecordSizeUnlimited,
	}
	keySizeSet := false
	for _, p := range params {
		switch p.Name {
		case engine.ParamKeyType:
			if p.Value > 0xff || !validKeyType(uint32(p.Value)) {
				return cfg, engine.StatusInvParameter
			}
			cfg.KeyType = uint32(p.Value)
		case engine.ParamKeySize:
			if p.Value == 0 || p.Value > engine.KeySizeUnlimited {
				return cfg, engine.StatusInvKeySize
			}
			cfg.KeySize = uint32(p.Value)
			keySizeSet = true
		case engine.ParamRecordSize:
			if p.Value > engine.RecordSizeUnlimited {
				return cfg, engine.StatusInvRecordSize
			}
			cfg.RecordSize = uint32(p.Value)
		case engine.ParamRecordCompression:
			if st := checkCompressor(uint32(p.Value)); st != engine.StatusSuccess {
				return cfg, st
			}
			cfg.RecordCompression = uint32(p.Value)
		case engine.ParamKeyCompression:
			if p.Value != engine.CompressorNone {
				return cfg, engine.StatusInvParameter
			}
		default:
			return cfg, engine.StatusInvParameter
		}
	}
	if w := keyWidth(cfg.KeyType); w != 0 {
		if keySizeSet && cfg.KeySize != uint32(w) {
			return cfg, engine.StatusInvKeySize
		}
		cfg.KeySize = uint32(w)
	}
	return cfg, engine.StatusSuccess
}

func (e *Engine) DBNew() engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc()
	e.dbs.Set(uint32(h), &database{h: h})
	return h
}

func (e *Engine) DBDelete(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return
	}
	if d.env != nil {
		e.closeDB(d, engine.AutoCleanup)
	}
	e.dbs.Delete(uint32(h))
}

const (
	standaloneDBFlags = engine.EnableDuplicateKeys
)

// splitParams separates standalone database parameters into the environment
// and database sets.
func splitParams(params []engine.Param) (envPs, dbPs []engine.Param) {
	for _, p := range params {
		switch p.Name {
		case engine.ParamCacheSize, engine.ParamPageSize, engine.ParamMaxDatabases, engine.ParamNetworkTimeoutSec:
			envPs = append(envPs, p)
		default:
			dbPs = append(dbPs, p)
		}
	}
	return envPs, dbPs
}

func (e *Engine) DBCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if d.env != nil {
		return engine.StatusDatabaseAlreadyOpen
	}
	envPs, dbPs := splitParams(params)
	env := &environment{private: true}
	if st := e.createEnv(env, filename, flags&^standaloneDBFlags, mode, envPs); st != engine.StatusSuccess {
		return d.result(st)
	}
	if st := e.createDB(env, d, engine.PrivateDBName, flags&standaloneDBFlags, dbPs); st != engine.StatusSuccess {
		e.closeEnv(env, engine.AutoCleanup)
		return d.result(st)
	}
	d.private = true
	return d.result(engine.StatusSuccess)
}

func (e *Engine) DBOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if d.env != nil {
		return engine.StatusDatabaseAlreadyOpen
	}
	env := &environment{private: true}
	if st := e.openEnvFile(env, filename, flags, params); st != engine.StatusSuccess {
		return d.result(st)
	}
	// A file written through the environment API opens its first database.
	name := uint16(engine.PrivateDBName)
	if _, ok := env.meta.lookup(name); !ok {
		if len(env.meta.Databases) == 0 {
			e.closeEnv(env, engine.AutoCleanup)
			return d.result(engine.StatusDatabaseNotFound)
		}
		name = env.meta.Databases[0].Name
	}
	if st := e.openDBByName(env, d, name, flags&engine.ReadOnly, nil); st != engine.StatusSuccess {
		e.closeEnv(env, engine.AutoCleanup)
		return d.result(st)
	}
	d.private = true
	return d.result(engine.StatusSuccess)
}

// result records st as the last status of d.
func (d *database) result(st engine.Status) engine.Status {
	d.last = st
	return st
}

func (e *Engine) DBGetError(h engine.Handle) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	return d.last
}

func (e *Engine) DBSetCompare(h engine.Handle, fn engine.CompareFunc) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, st := e.openDB(h)
	if st != engine.StatusSuccess {
		return st
	}
	if keyWidth(d.cfg.KeyType) != 0 {
		return d.result(e.fail(engine.StatusInvParameter, "numeric key types use a built-in comparator"))
	}
	d.cmp = fn
	d.resort()
	return d.result(engine.StatusSuccess)
}

func (e *Engine) DBSetPrefixCompare(h engine.Handle, fn engine.PrefixCompareFunc) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, st := e.openDB(h)
	if st != engine.StatusSuccess {
		return st
	}
	if keyWidth(d.cfg.KeyType) != 0 {
		return d.result(e.fail(engine.StatusInvParameter, "numeric key types use a built-in comparator"))
	}
	d.prefixCmp = fn
	d.resort()
	return d.result(engine.StatusSuccess)
}

// resort reorders the base table and every transaction view of d.
func (d *database) resort() {
	if d.ready() != engine.StatusSuccess {
		return
	}
	d.base().resort(d.compare)
	for _, t := range d.env.txns {
		if v, ok := t.views[d]; ok {
			v.resort(d.compare)
		}
	}
}

func (e *Engine) DBGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, st := e.openDB(h)
	if st != engine.StatusSuccess {
		return st
	}
	for i := range params {
		p := &params[i]
		switch p.Name {
		case engine.ParamKeySize:
			p.Value = uint64(d.cfg.KeySize)
		case engine.ParamKeyType:
			p.Value = uint64(d.cfg.KeyType)
		case engine.ParamRecordSize:
			p.Value = uint64(d.cfg.RecordSize)
		case engine.ParamFlags:
			p.Value = uint64(d.flags | d.env.flags)
		case engine.ParamDatabaseName:
			p.Value = uint64(d.cfg.Name)
		case engine.ParamMaxKeysPerPage:
			p.Value = d.maxKeysPerPage()
		case engine.ParamRecordCompression:
			p.Value = uint64(d.cfg.RecordCompression)
		case engine.ParamKeyCompression:
			p.Value = engine.CompressorNone
		default:
			if st := d.env.param(p); st != engine.StatusSuccess {
				return d.result(st)
			}
		}
	}
	return d.result(engine.StatusSuccess)
}

// maxKeysPerPage estimates the fan-out of a page holding keys of this
// database, the figure page-based engines report.
func (d *database) maxKeysPerPage() uint64 {
	const pageOverhead, slotOverhead, defaultKeySize = 32, 9, 21
	keySize := uint64(d.cfg.KeySize)
	if d.cfg.KeySize == engine.KeySizeUnlimited {
		keySize = defaultKeySize
	}
	return (uint64(d.env.meta.PageSize) - pageOverhead) / (keySize + slotOverhead)
}

func (e *Engine) DBInsert(h, txnH engine.Handle, key, record []byte, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, t, st := e.dbTxn(h, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	_, st = d.insert(t, key, record, flags, nil)
	return d.result(st)
}

// dbTxn resolves a database and an optional transaction of its environment.
func (e *Engine) dbTxn(h, txnH engine.Handle) (*database, *txn, engine.Status) {
	d, st := e.openDB(h)
	if st != engine.StatusSuccess {
		return nil, nil, st
	}
	t, st := e.lookupTxn(txnH)
	if st != engine.StatusSuccess {
		return nil, nil, d.result(st)
	}
	if t != nil && t.env != d.env {
		return nil, nil, d.result(engine.StatusInvParameter)
	}
	return d, t, engine.StatusSuccess
}

// insert writes key/record into d and returns the duplicate index the record
// landed on. at is the cursor the insert is relative to, if any.
func (d *database) insert(t *txn, key, record []byte, flags uint32, at *cursor) (int, engine.Status) {
	if flags&engine.Partial != 0 {
		return 0, engine.StatusNotImplemented
	}
	if flags&engine.DirectAccess != 0 && d.env.flags&engine.InMemory == 0 {
		return 0, engine.StatusInvParameter
	}
	if flags&engine.DuplicatePositionMask != 0 {
		flags |= engine.Duplicate
	}
	if flags&engine.Overwrite != 0 && flags&engine.Duplicate != 0 {
		return 0, engine.StatusInvParameter
	}
	if flags&engine.Duplicate != 0 && d.cfg.Flags&engine.EnableDuplicateKeys == 0 {
		return 0, engine.StatusInvParameter
	}
	if st := d.writable(t); st != engine.StatusSuccess {
		return 0, st
	}
	if st := d.checkKey(key); st != engine.StatusSuccess {
		return 0, st
	}
	if st := d.checkRecord(record); st != engine.StatusSuccess {
		return 0, st
	}
	if st := d.conflict(t, key); st != engine.StatusSuccess {
		return 0, st
	}

	view := d.write(t)
	cur := view.get(key, d.compare)
	record = bytes.Clone(record)
	if record == nil {
		record = []byte{}
	}
	// Position of at within the duplicates of key, or -1.
	atDup := -1
	if at != nil && at.key != nil && cur != nil && d.compare(at.key, key) == 0 {
		atDup = min(at.dup, len(cur.recs)-1)
	}

	var next *entry
	pos := 0
	switch {
	case cur == nil:
		next = &entry{key: bytes.Clone(key), recs: [][]byte{record}}
	case flags&engine.Overwrite != 0:
		pos = max(atDup, 0)
		recs := slices.Clone(cur.recs)
		recs[pos] = record
		next = cur.withRecords(recs)
	case flags&engine.Duplicate != 0:
		pos = len(cur.recs)
		switch {
		case flags&engine.DuplicateInsertFirst != 0:
			pos = 0
		case flags&engine.DuplicateInsertBefore != 0:
			pos = max(atDup, 0)
		case flags&engine.DuplicateInsertAfter != 0 && atDup >= 0:
			pos = atDup + 1
		}
		next = cur.withRecords(slices.Insert(slices.Clone(cur.recs), pos, record))
	default:
		return 0, engine.StatusDuplicateKey
	}
	if next.key == nil {
		next.key = []byte{}
	}
	return pos, d.apply(t, view, next.key, next)
}

func (e *Engine) DBFind(h, txnH engine.Handle, key []byte, flags uint32) ([]byte, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, t, st := e.dbTxn(h, txnH)
	if st != engine.StatusSuccess {
		return nil, st
	}
	if st := d.ready(); st != engine.StatusSuccess {
		return nil, d.result(st)
	}
	if st := d.checkKey(key); st != engine.StatusSuccess {
		return nil, d.result(st)
	}
	view := d.read(t)
	i, ok := view.nearest(key, d.compare, flags&(engine.FindLTMatch|engine.FindGTMatch) == 0 || flags&engine.FindEQMatch != 0,
		flags&engine.FindLTMatch != 0, flags&engine.FindGTMatch != 0)
	if !ok {
		return nil, d.result(engine.StatusKeyNotFound)
	}
	return bytes.Clone(view.entries[i].recs[0]), d.result(engine.StatusSuccess)
}

func (e *Engine) DBErase(h, txnH engine.Handle, key []byte, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, t, st := e.dbTxn(h, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	if st := d.writable(t); st != engine.StatusSuccess {
		return d.result(st)
	}
	if st := d.checkKey(key); st != engine.StatusSuccess {
		return d.result(st)
	}
	if st := d.conflict(t, key); st != engine.StatusSuccess {
		return d.result(st)
	}
	cur := d.read(t).get(key, d.compare)
	if cur == nil {
		return d.result(engine.StatusKeyNotFound)
	}
	return d.result(d.apply(t, d.write(t), cur.key, nil))
}

func (e *Engine) DBKeyCount(h, txnH engine.Handle, flags uint32) (uint64, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, t, st := e.dbTxn(h, txnH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	return d.read(t).count(flags&engine.SkipDuplicates != 0), d.result(engine.StatusSuccess)
}

func (e *Engine) DBFlush(h engine.Handle) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, st := e.openDB(h)
	if st != engine.StatusSuccess {
		return st
	}
	return d.result(e.flushEnv(d.env))
}

func (e *Engine) DBClose(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if d.env == nil {
		return engine.StatusSuccess
	}
	return e.closeDB(d, flags)
}

func (e *Engine) closeDB(d *database, flags uint32) engine.Status {
	if len(d.cursors) > 0 && flags&engine.AutoCleanup == 0 {
		return d.result(engine.StatusCursorStillOpen)
	}
	for _, t := range d.env.txns {
		if _, ok := t.views[d]; ok {
			return d.result(e.fail(engine.StatusTxnStillOpen, "database is modified by an open transaction"))
		}
	}
	env := d.env
	e.detachDB(d)
	if d.private {
		d.private = false
		return d.result(e.closeEnv(env, flags|engine.TxnAutoAbort))
	}
	return d.result(engine.StatusSuccess)
}

// detachDB closes the cursors of d and unlinks it from its environment.
func (e *Engine) detachDB(d *database) {
	for _, c := range d.cursors {
		e.dropCursor(c)
	}
	delete(d.env.dbs, d.cfg.Name)
	d.env = nil
	d.cursors = nil
	d.cmp = nil
	d.prefixCmp = nil
}

package local

import (
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/Giulio2002/hamgo/internal/engine"
)

const (
	envCreateFlags = engine.WriteThrough | engine.InMemory | engine.DisableMmap |
		engine.CacheStrict | engine.CacheUnlimited | engine.EnableRecovery |
		engine.EnableTransactions
	envOpenFlags = engine.WriteThrough | engine.ReadOnly | engine.DisableMmap |
		engine.CacheStrict | engine.CacheUnlimited | engine.EnableRecovery |
		engine.EnableTransactions | engine.AutoRecovery

	// persistentFlags survive in the meta document.
	persistentFlags = engine.EnableTransactions | engine.EnableRecovery
)

type lockKey struct {
	name uint16
	key  string
}

type environment struct {
	h         engine.Handle
	open      bool
	private   bool
	filename  string
	flags     uint32
	mode      uint32
	cacheSize uint64

	meta   *envMeta
	store  *store
	tables map[uint16]*table
	dbs    map[uint16]*database
	txns   map[engine.Handle]*txn
	locks  map[lockKey]*txn
}

func (env *environment) readOnly() bool { return env.flags&engine.ReadOnly != 0 }

func (env *environment) transactional() bool { return env.flags&persistentFlags != 0 }

func (env *environment) reset() {
	*env = environment{h: env.h, private: env.private}
}

func (env *environment) attach(meta *envMeta, st *store) {
	env.meta = meta
	env.store = st
	env.tables = make(map[uint16]*table)
	env.dbs = make(map[uint16]*database)
	env.txns = make(map[engine.Handle]*txn)
	env.locks = make(map[lockKey]*txn)
	env.open = true
}

func (e *Engine) EnvNew() engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc()
	e.envs.Set(uint32(h), &environment{h: h})
	return h
}

func (e *Engine) EnvDelete(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.envs.Get(uint32(h))
	if !ok {
		return
	}
	if env.open {
		e.closeEnv(env, engine.AutoCleanup|engine.TxnAutoAbort)
	}
	e.envs.Delete(uint32(h))
}

type envSettings struct {
	cacheSize    uint64
	pageSize     uint32
	maxDatabases uint32
}

// envParams applies environment parameters. create selects the set that is
// legal at creation time.
func envParams(params []engine.Param, create bool) (envSettings, engine.Status) {
	s := envSettings{cacheSize: defaultCacheSize, pageSize: defaultPageSize}
	for _, p := range params {
		switch p.Name {
		case engine.ParamCacheSize:
			s.cacheSize = p.Value
		case engine.ParamNetworkTimeoutSec:
		case engine.ParamPageSize:
			if !create {
				return s, engine.StatusInvParameter
			}
			if p.Value < 1024 || p.Value%1024 != 0 || p.Value > 1<<20 {
				return s, engine.StatusInvPageSize
			}
			s.pageSize = uint32(p.Value)
		case engine.ParamMaxDatabases:
			if !create || p.Value == 0 || p.Value >= engine.FirstReservedName {
				return s, engine.StatusInvParameter
			}
			s.maxDatabases = uint32(p.Value)
		default:
			return s, engine.StatusInvParameter
		}
	}
	if s.maxDatabases == 0 {
		s.maxDatabases = s.pageSize / 32
	}
	return s, engine.StatusSuccess
}

func (e *Engine) EnvCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.envs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	return e.createEnv(env, filename, flags, mode, params)
}

func (e *Engine) createEnv(env *environment, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	if env.open {
		return engine.StatusAlreadyInitialized
	}
	if flags&^envCreateFlags != 0 {
		return e.fail(engine.StatusInvParameter, "invalid flags 0x%x for environment create", flags)
	}
	if flags&engine.CacheStrict != 0 && flags&engine.CacheUnlimited != 0 {
		return e.fail(engine.StatusInvParameter, "combination of CACHE_STRICT and CACHE_UNLIMITED not allowed")
	}
	inMemory := flags&engine.InMemory != 0
	if filename == "" && !inMemory {
		return e.fail(engine.StatusInvParameter, "filename is missing")
	}
	settings, st := envParams(params, true)
	if st != engine.StatusSuccess {
		return e.fail(st, "invalid parameter for environment create")
	}
	if mode == 0 {
		mode = 0o644
	}

	meta := &envMeta{
		Version:      formatVersion,
		Flags:        flags & persistentFlags,
		PageSize:     settings.pageSize,
		MaxDatabases: settings.maxDatabases,
	}
	var s *store
	if !inMemory {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return e.fail(boltStatus(err), "cannot replace %s: %v", filename, err)
		}
		var err error
		if s, err = openStore(filename, flags, fs.FileMode(mode), e.lockTimeout); err != nil {
			return e.fail(boltStatus(err), "cannot create %s: %v", filename, err)
		}
		meta.Dirty = flags&persistentFlags != 0
		if err := s.writeMeta(meta); err != nil {
			_ = s.close()
			return e.fail(boltStatus(err), "cannot write header of %s: %v", filename, err)
		}
	}

	env.attach(meta, s)
	env.filename = filename
	env.flags = flags
	env.mode = mode
	env.cacheSize = settings.cacheSize
	return engine.StatusSuccess
}

func (e *Engine) EnvOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.envs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	return e.openEnvFile(env, filename, flags, params)
}

func (e *Engine) openEnvFile(env *environment, filename string, flags uint32, params []engine.Param) engine.Status {
	if env.open {
		return engine.StatusAlreadyInitialized
	}
	if flags&engine.InMemory != 0 {
		return e.fail(engine.StatusInvParameter, "cannot open an in-memory environment")
	}
	if flags&^envOpenFlags != 0 {
		return e.fail(engine.StatusInvParameter, "invalid flags 0x%x for environment open", flags)
	}
	if filename == "" {
		return e.fail(engine.StatusInvParameter, "filename is missing")
	}
	settings, st := envParams(params, false)
	if st != engine.StatusSuccess {
		return e.fail(st, "invalid parameter for environment open")
	}

	info, err := os.Stat(filename)
	if err != nil {
		return e.fail(boltStatus(err), "cannot open %s: %v", filename, err)
	}
	if flags&engine.ReadOnly == 0 {
		if err := checkWritable(filename); err != nil {
			return e.fail(engine.StatusAccessDenied, "%s is not writable: %v", filename, err)
		}
	}
	s, err := openStore(filename, flags, info.Mode().Perm(), e.lockTimeout)
	if err != nil {
		return e.fail(boltStatus(err), "cannot open %s: %v", filename, err)
	}
	meta, err := s.readMeta()
	if err != nil {
		_ = s.close()
		return e.fail(boltStatus(err), "invalid header in %s: %v", filename, err)
	}
	if meta.Dirty {
		if flags&engine.AutoRecovery == 0 {
			_ = s.close()
			return e.fail(engine.StatusNeedRecovery, "%s was not closed cleanly and needs recovery", filename)
		}
		e.trace(engine.LevelDebug, "recovered %s", filename)
		meta.Dirty = false
	}
	if flags&engine.ReadOnly == 0 {
		meta.Dirty = flags&persistentFlags != 0
		if err := s.writeMeta(meta); err != nil {
			_ = s.close()
			return e.fail(boltStatus(err), "cannot write header of %s: %v", filename, err)
		}
	}

	env.attach(meta, s)
	env.filename = filename
	env.flags = flags
	env.mode = uint32(info.Mode().Perm())
	env.cacheSize = settings.cacheSize
	return engine.StatusSuccess
}

func (e *Engine) EnvClose(h engine.Handle, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, ok := e.envs.Get(uint32(h))
	if !ok {
		return engine.StatusInvParameter
	}
	if !env.open {
		return engine.StatusSuccess
	}
	return e.closeEnv(env, flags)
}

func (e *Engine) closeEnv(env *environment, flags uint32) engine.Status {
	if len(env.txns) > 0 {
		switch {
		case flags&engine.TxnAutoCommit != 0:
			for _, t := range sortedTxns(env) {
				e.closeTxnCursors(t)
				if st := e.commitTxn(t); st != engine.StatusSuccess {
					return st
				}
			}
		case flags&engine.TxnAutoAbort != 0:
			for _, t := range sortedTxns(env) {
				e.closeTxnCursors(t)
				e.abortTxn(t)
			}
		default:
			return e.fail(engine.StatusTxnStillOpen, "environment has open transactions")
		}
	}
	for _, d := range env.dbs {
		e.detachDB(d)
	}

	var st engine.Status
	if env.store != nil {
		if !env.readOnly() {
			if env.transactional() {
				env.meta.Dirty = false
				if err := env.store.writeMeta(env.meta); err != nil {
					st = e.fail(boltStatus(err), "cannot write header of %s: %v", env.filename, err)
				}
			}
			if err := env.store.sync(); err != nil && st == engine.StatusSuccess {
				st = e.fail(engine.StatusIOError, "cannot sync %s: %v", env.filename, err)
			}
		}
		if err := env.store.close(); err != nil && st == engine.StatusSuccess {
			st = e.fail(engine.StatusIOError, "cannot close %s: %v", env.filename, err)
		}
	}
	env.reset()
	return st
}

func sortedTxns(env *environment) []*txn {
	txns := make([]*txn, 0, len(env.txns))
	for _, t := range env.txns {
		txns = append(txns, t)
	}
	slices.SortFunc(txns, func(a, b *txn) int { return int(a.h) - int(b.h) })
	return txns
}

// checkName rejects the reserved database names.
func (env *environment) checkName(name uint16) bool {
	if env.private && name == engine.PrivateDBName {
		return true
	}
	return name != 0 && name < engine.FirstReservedName
}

func (e *Engine) EnvCreateDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(envH)
	if st != engine.StatusSuccess {
		return st
	}
	d, ok := e.dbs.Get(uint32(dbH))
	if !ok {
		return engine.StatusInvParameter
	}
	return e.createDB(env, d, name, flags, params)
}

func (e *Engine) createDB(env *environment, d *database, name uint16, flags uint32, params []engine.Param) engine.Status {
	if d.env != nil {
		return engine.StatusDatabaseAlreadyOpen
	}
	if !env.checkName(name) {
		return e.fail(engine.StatusInvParameter, "invalid database name 0x%x", name)
	}
	if env.readOnly() {
		return engine.StatusWriteProtected
	}
	if flags&^engine.EnableDuplicateKeys != 0 {
		return e.fail(engine.StatusInvParameter, "invalid flags 0x%x for database create", flags)
	}
	cfg, st := dbParams(name, flags, params)
	if st != engine.StatusSuccess {
		return e.fail(st, "invalid parameter for database create")
	}
	if _, exists := env.meta.lookup(name); exists {
		return engine.StatusDatabaseAlreadyExists
	}
	if uint32(len(env.meta.Databases)) >= env.meta.MaxDatabases {
		return e.fail(engine.StatusLimitsReached, "maximum number of databases reached")
	}

	env.meta.Databases = append(env.meta.Databases, cfg)
	if env.store != nil {
		if err := env.store.createDB(env.meta); err != nil {
			env.meta.Databases = env.meta.Databases[:len(env.meta.Databases)-1]
			return e.fail(boltStatus(err), "cannot create database 0x%x: %v", name, err)
		}
	}
	env.tables[name] = &table{}
	d.attach(env, cfg, 0)
	return engine.StatusSuccess
}

func (e *Engine) EnvOpenDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(envH)
	if st != engine.StatusSuccess {
		return st
	}
	d, ok := e.dbs.Get(uint32(dbH))
	if !ok {
		return engine.StatusInvParameter
	}
	return e.openDBByName(env, d, name, flags, params)
}

func (e *Engine) openDBByName(env *environment, d *database, name uint16, flags uint32, params []engine.Param) engine.Status {
	if d.env != nil {
		return engine.StatusDatabaseAlreadyOpen
	}
	if !env.checkName(name) {
		return e.fail(engine.StatusInvParameter, "invalid database name 0x%x", name)
	}
	if flags&^engine.ReadOnly != 0 || len(params) > 0 {
		return e.fail(engine.StatusInvParameter, "invalid flags or parameters for database open")
	}
	i, exists := env.meta.lookup(name)
	if !exists {
		return engine.StatusDatabaseNotFound
	}
	if _, open := env.dbs[name]; open {
		return engine.StatusDatabaseAlreadyOpen
	}
	cfg := env.meta.Databases[i]
	if _, loaded := env.tables[name]; !loaded {
		t := &table{}
		if env.store != nil {
			var err error
			if t, err = env.store.load(&cfg); err != nil {
				return e.fail(boltStatus(err), "cannot load database 0x%x: %v", name, err)
			}
		}
		env.tables[name] = t
		if keyWidth(cfg.KeyType) != 0 {
			t.resort(numericCompare(cfg.KeyType))
		}
	}
	d.attach(env, cfg, flags)
	return engine.StatusSuccess
}

func (e *Engine) EnvRenameDB(h engine.Handle, oldName, newName uint16, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(h)
	if st != engine.StatusSuccess {
		return st
	}
	if !env.checkName(oldName) || !env.checkName(newName) {
		return e.fail(engine.StatusInvParameter, "invalid database name")
	}
	if env.readOnly() {
		return engine.StatusWriteProtected
	}
	i, exists := env.meta.lookup(oldName)
	if !exists {
		return engine.StatusDatabaseNotFound
	}
	if oldName == newName {
		return engine.StatusSuccess
	}
	if _, taken := env.meta.lookup(newName); taken {
		return engine.StatusDatabaseAlreadyExists
	}
	if _, open := env.dbs[oldName]; open {
		return engine.StatusDatabaseAlreadyOpen
	}
	env.meta.Databases[i].Name = newName
	if env.store != nil {
		if err := env.store.renameDB(env.meta, oldName, newName); err != nil {
			env.meta.Databases[i].Name = oldName
			return e.fail(boltStatus(err), "cannot rename database 0x%x: %v", oldName, err)
		}
	}
	if t, ok := env.tables[oldName]; ok {
		env.tables[newName] = t
		delete(env.tables, oldName)
	}
	return engine.StatusSuccess
}

func (e *Engine) EnvEraseDB(h engine.Handle, name uint16, flags uint32) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(h)
	if st != engine.StatusSuccess {
		return st
	}
	if !env.checkName(name) {
		return e.fail(engine.StatusInvParameter, "invalid database name 0x%x", name)
	}
	if env.readOnly() {
		return engine.StatusWriteProtected
	}
	i, exists := env.meta.lookup(name)
	if !exists {
		return engine.StatusDatabaseNotFound
	}
	if _, open := env.dbs[name]; open {
		return engine.StatusDatabaseAlreadyOpen
	}
	removed := env.meta.Databases[i]
	env.meta.Databases = slices.Delete(env.meta.Databases, i, i+1)
	if env.store != nil {
		if err := env.store.eraseDB(env.meta, name); err != nil {
			env.meta.Databases = slices.Insert(env.meta.Databases, i, removed)
			return e.fail(boltStatus(err), "cannot erase database 0x%x: %v", name, err)
		}
	}
	delete(env.tables, name)
	return engine.StatusSuccess
}

func (e *Engine) EnvDatabaseNames(h engine.Handle) ([]uint16, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	names := make([]uint16, 0, len(env.meta.Databases))
	for _, cfg := range env.meta.Databases {
		if cfg.Name < engine.FirstReservedName {
			names = append(names, cfg.Name)
		}
	}
	slices.Sort(names)
	return names, engine.StatusSuccess
}

func (e *Engine) EnvGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(h)
	if st != engine.StatusSuccess {
		return st
	}
	for i := range params {
		if st := env.param(&params[i]); st != engine.StatusSuccess {
			return st
		}
	}
	return engine.StatusSuccess
}

func (env *environment) param(p *engine.Param) engine.Status {
	switch p.Name {
	case engine.ParamCacheSize:
		p.Value = env.cacheSize
	case engine.ParamPageSize:
		p.Value = uint64(env.meta.PageSize)
	case engine.ParamMaxDatabases:
		p.Value = uint64(env.meta.MaxDatabases)
	case engine.ParamFlags:
		p.Value = uint64(env.flags)
	case engine.ParamFileMode:
		p.Value = uint64(env.mode)
	case engine.ParamFilename:
		p.String = env.filename
	case engine.ParamNetworkTimeoutSec:
		p.Value = 0
	default:
		return engine.StatusInvParameter
	}
	return engine.StatusSuccess
}

func (e *Engine) EnvFlush(h engine.Handle) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	env, st := e.openEnv(h)
	if st != engine.StatusSuccess {
		return st
	}
	return e.flushEnv(env)
}

func (e *Engine) flushEnv(env *environment) engine.Status {
	if env.store == nil || env.readOnly() {
		return engine.StatusSuccess
	}
	if err := env.store.sync(); err != nil {
		return e.fail(engine.StatusIOError, "cannot sync %s: %v", env.filename, err)
	}
	return engine.StatusSuccess
}

// Package local is the in-process storage engine. Databases are kept as
// ordered in-memory tables; environments that are not IN_MEMORY are written
// through to a bolt file so they survive a close and reopen.
//
// All calls are serialized by one engine mutex. Comparator and error handler
// callbacks run while it is held and must not call back into the engine.
package local

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo/internal/engine"
	"github.com/Giulio2002/hamgo/internal/fastmap"
)

// Version of the engine reported through Version.
const (
	VersionMajor    = 2
	VersionMinor    = 1
	VersionRevision = 13
)

const (
	defaultPageSize    = 16 * 1024
	defaultCacheSize   = 2 * 1024 * 1024
	defaultLockTimeout = time.Second
)

// Engine implements engine.Engine.
type Engine struct {
	mu          sync.Mutex
	log         *zap.Logger
	lockTimeout time.Duration
	handler     engine.ErrorHandlerFunc

	next    uint32
	envs    fastmap.Map[*environment]
	dbs     fastmap.Map[*database]
	cursors fastmap.Map[*cursor]
	txns    fastmap.Map[*txn]
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithLockTimeout bounds how long opening a file waits for its lock. A file
// that stays locked fails with WouldBlock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:         zap.NewNop(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Version() (major, minor, revision uint32) {
	return VersionMajor, VersionMinor, VersionRevision
}

func (e *Engine) License() (licensee, product string) {
	return "", "hamgo embedded storage"
}

func (e *Engine) SetErrorHandler(fn engine.ErrorHandlerFunc) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

// trace reports a diagnostic through the installed error handler.
func (e *Engine) trace(level int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.log.Debug("engine message", zap.Int("level", level), zap.String("message", msg))
	if e.handler != nil {
		e.handler(level, msg)
	}
}

// fail traces a failure at normal level and returns st.
func (e *Engine) fail(st engine.Status, format string, args ...any) engine.Status {
	e.trace(engine.LevelNormal, format, args...)
	return st
}

// alloc returns an unused non-zero handle.
func (e *Engine) alloc() engine.Handle {
	for {
		e.next++
		h := e.next
		if h == 0 {
			continue
		}
		if e.envs.Has(h) || e.dbs.Has(h) || e.cursors.Has(h) || e.txns.Has(h) {
			continue
		}
		return engine.Handle(h)
	}
}

// openEnv resolves an environment handle that must be open.
func (e *Engine) openEnv(h engine.Handle) (*environment, engine.Status) {
	env, ok := e.envs.Get(uint32(h))
	if !ok {
		return nil, engine.StatusInvParameter
	}
	if !env.open {
		return nil, engine.StatusNotInitialized
	}
	return env, engine.StatusSuccess
}

// openDB resolves a database handle that must be open.
func (e *Engine) openDB(h engine.Handle) (*database, engine.Status) {
	d, ok := e.dbs.Get(uint32(h))
	if !ok {
		return nil, engine.StatusInvParameter
	}
	if d.env == nil {
		return nil, engine.StatusNotInitialized
	}
	return d, engine.StatusSuccess
}

// lookupTxn resolves an optional transaction handle; zero means none.
func (e *Engine) lookupTxn(h engine.Handle) (*txn, engine.Status) {
	if h == 0 {
		return nil, engine.StatusSuccess
	}
	t, ok := e.txns.Get(uint32(h))
	if !ok {
		return nil, engine.StatusInvParameter
	}
	return t, engine.StatusSuccess
}

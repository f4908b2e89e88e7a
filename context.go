package hamgo

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo/internal/engine"
	"github.com/Giulio2002/hamgo/internal/engine/local"
	"github.com/Giulio2002/hamgo/internal/engine/mux"
	"github.com/Giulio2002/hamgo/internal/engine/remote"
)

// Context holds what the engine shares between all owners: the engine
// itself, the logger and the error handler. Owners created from the same
// Context see the same files and handlers.
type Context struct {
	eng         engine.Engine
	log         *zap.Logger
	lockTimeout time.Duration
	netTimeout  time.Duration

	mu      sync.Mutex
	handler ErrorHandler
}

// Option configures a Context.
type Option func(*Context)

// WithEngine sets the engine. The default routes ham:// filenames to a
// remote server and everything else to the embedded engine.
func WithEngine(e engine.Engine) Option {
	return func(c *Context) { c.eng = e }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

// WithErrorHandler installs h instead of the logging handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Context) { c.handler = h }
}

// WithLockTimeout bounds how long opening a locked file waits before
// failing with ErrWouldBlock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Context) { c.lockTimeout = d }
}

// WithNetworkTimeout bounds remote requests unless ParamNetworkTimeoutSec is
// given at open.
func WithNetworkTimeout(d time.Duration) Option {
	return func(c *Context) { c.netTimeout = d }
}

// NewContext creates a Context.
func NewContext(opts ...Option) *Context {
	c := &Context{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.eng == nil {
		localOpts := []local.Option{local.WithLogger(c.log)}
		if c.lockTimeout > 0 {
			localOpts = append(localOpts, local.WithLockTimeout(c.lockTimeout))
		}
		c.eng = mux.New(local.New(localOpts...), mux.Route{
			Prefix: remote.Scheme,
			Engine: remote.New(remote.Config{Timeout: c.netTimeout, Logger: c.log}),
		})
	}
	c.eng.SetErrorHandler(c.dispatch)
	return c
}

var defaultContext = sync.OnceValue(func() *Context { return NewContext() })

// DefaultContext returns the Context used by owners created with a nil one.
func DefaultContext() *Context {
	return defaultContext()
}

func orDefault(c *Context) *Context {
	if c == nil {
		return DefaultContext()
	}
	return c
}

// Logger returns the Context's logger.
func (c *Context) Logger() *zap.Logger {
	return c.log
}

// SetErrorHandler replaces the error handler. nil restores the default,
// which logs through the Context's logger.
func (c *Context) SetErrorHandler(h ErrorHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// dispatch runs inside the engine with its lock held.
func (c *Context) dispatch(level int, message string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h.HandleMessage(level, message)
		return
	}
	switch {
	case level <= LevelDebug:
		c.log.Debug(message)
	case level < LevelFatal:
		c.log.Warn(message)
	default:
		c.log.Error(message)
	}
}

// Version returns the engine version.
func (c *Context) Version() (major, minor, revision uint32) {
	return c.eng.Version()
}

// License returns the engine licensee and product name.
func (c *Context) License() (licensee, product string) {
	return c.eng.License()
}

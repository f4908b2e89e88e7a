package hamgo

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// owner is the state shared by Environment and Database: the engine handle
// and the lock every derived object takes. handle is 0 while nothing is open.
type owner struct {
	ctx    *Context
	mu     *sync.Mutex
	handle engine.Handle
}

func (o *owner) eng() engine.Engine {
	return o.ctx.eng
}

// acquire allocates a handle and opens it. On failure the handle is deleted
// and o stays closed. Caller holds o.mu.
func (o *owner) acquire(alloc func() engine.Handle, del func(engine.Handle), open func(engine.Handle) engine.Status) error {
	h := alloc()
	if h == 0 {
		return NewError(ErrOutOfMemory)
	}
	if st := open(h); st != engine.StatusSuccess {
		del(h)
		return statusError(st)
	}
	o.handle = h
	return nil
}

// check fails with ErrClosed when o holds no handle. Caller holds o.mu.
func (o *owner) check() error {
	if o.handle == 0 {
		return errClosed()
	}
	return nil
}

// logForced records a failure swallowed during a forced close.
func (o *owner) logForced(what string, h engine.Handle, st engine.Status) {
	if st == engine.StatusSuccess {
		return
	}
	o.ctx.log.Debug("forced close failed",
		zap.String("object", what),
		zap.Uint32("handle", uint32(h)),
		zap.Error(statusError(st)))
}

// txnHandle resolves an optional transaction argument.
func txnHandle(t *Transaction) (engine.Handle, error) {
	if t == nil {
		return 0, nil
	}
	if t.handle == 0 {
		return 0, errClosed()
	}
	return t.handle, nil
}

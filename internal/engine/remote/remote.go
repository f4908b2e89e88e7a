// Package remote is an engine whose environments live on a hamserver.
//
// Filenames take the form ham://host:port/name. Every environment or
// standalone database gets its own fasthttp.HostClient; databases, cursors
// and transactions derived from it share that client. Any transport failure
// is reported as StatusNetworkError.
package remote

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo/internal/engine"
	"github.com/Giulio2002/hamgo/internal/fastmap"
)

// Scheme prefixes every remote filename.
const Scheme = "ham://"

const (
	defaultTimeout = 10 * time.Second
	contentType    = "application/bson"
)

// Config configures the remote engine.
type Config struct {
	// Timeout bounds every request. NETWORK_TIMEOUT_SEC overrides it per
	// environment.
	Timeout time.Duration

	// Dial replaces the TCP dialer, for example with an in-memory listener.
	Dial fasthttp.DialFunc

	Logger *zap.Logger
}

// conn is the client shared by everything derived from one environment.
type conn struct {
	client  *fasthttp.HostClient
	name    string
	url     string
	timeout time.Duration
}

// object is a client-side handle. c is nil until the environment or database
// is created or opened; rh is the server's handle. owns is set on the object
// that dialed c.
type object struct {
	c    *conn
	rh   uint32
	owns bool
}

// Engine implements engine.Engine over HTTP.
type Engine struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	handler engine.ErrorHandlerFunc
	next    uint32
	objs    fastmap.Map[*object]
}

var _ engine.Engine = (*Engine)(nil)

// New creates a remote engine.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

func (e *Engine) Version() (major, minor, revision uint32) { return 2, 1, 13 }

func (e *Engine) License() (licensee, product string) { return "", "hamgo remote client" }

func (e *Engine) SetErrorHandler(fn engine.ErrorHandlerFunc) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

func (e *Engine) trace(level int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.log.Debug("remote message", zap.Int("level", level), zap.String("message", msg))
	e.mu.Lock()
	fn := e.handler
	e.mu.Unlock()
	if fn != nil {
		fn(level, msg)
	}
}

func (e *Engine) alloc(o *object) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		e.next++
		if e.next != 0 && !e.objs.Has(e.next) {
			break
		}
	}
	e.objs.Set(e.next, o)
	return engine.Handle(e.next)
}

func (e *Engine) lookup(h engine.Handle) (*object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.objs.Get(uint32(h))
}

// bound resolves a handle already attached to a server.
func (e *Engine) bound(h engine.Handle) (*object, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.objs.Get(uint32(h))
	if !ok {
		return nil, engine.StatusInvParameter
	}
	if o.c == nil {
		return nil, engine.StatusNotInitialized
	}
	return o, engine.StatusSuccess
}

func (e *Engine) drop(h engine.Handle) {
	e.mu.Lock()
	e.objs.Delete(uint32(h))
	e.mu.Unlock()
}

// dial parses a ham:// filename and builds its client.
func (e *Engine) dial(filename string, params []engine.Param) (*conn, engine.Status) {
	u, err := url.Parse(filename)
	if err != nil || !strings.HasPrefix(filename, Scheme) || u.Host == "" {
		e.trace(engine.LevelNormal, "invalid remote filename %q", filename)
		return nil, engine.StatusInvParameter
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		e.trace(engine.LevelNormal, "remote filename %q has no path", filename)
		return nil, engine.StatusInvParameter
	}
	timeout := e.cfg.Timeout
	for _, p := range params {
		if p.Name == engine.ParamNetworkTimeoutSec && p.Value > 0 {
			timeout = time.Duration(p.Value) * time.Second
		}
	}
	return &conn{
		client: &fasthttp.HostClient{
			Addr:         u.Host,
			Name:         "hamgo",
			Dial:         e.cfg.Dial,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		name:    name,
		url:     filename,
		timeout: timeout,
	}, engine.StatusSuccess
}

// call performs one operation. Transport and decoding failures become
// StatusNetworkError.
func (e *Engine) call(c *conn, op string, in *Request) (*Response, engine.Status) {
	body, err := Marshal(in)
	if err != nil {
		e.trace(engine.LevelNormal, "cannot encode %s request: %v", op, err)
		return nil, engine.StatusInternalError
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://" + c.client.Addr + PathPrefix + op)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.SetBody(body)

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		e.trace(engine.LevelNormal, "%s %s: %v", op, c.client.Addr, err)
		return nil, engine.StatusNetworkError
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		e.trace(engine.LevelNormal, "%s %s: http status %d", op, c.client.Addr, resp.StatusCode())
		return nil, engine.StatusNetworkError
	}
	out := &Response{}
	if err := Unmarshal(resp.Body(), out); err != nil {
		e.trace(engine.LevelNormal, "%s %s: bad response: %v", op, c.client.Addr, err)
		return nil, engine.StatusNetworkError
	}
	return out, engine.Status(out.Status)
}

// send calls op on the server owning o.
func (e *Engine) send(o *object, op string, in *Request) (*Response, engine.Status) {
	in.Handle = o.rh
	return e.call(o.c, op, in)
}

func (e *Engine) simple(h engine.Handle, op string, in *Request) engine.Status {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	_, st = e.send(o, op, in)
	return st
}

func (e *Engine) EnvNew() engine.Handle { return e.alloc(&object{}) }

func (e *Engine) EnvDelete(h engine.Handle) { e.drop(h) }

// attach opens a server-side environment or database for the unbound o.
func (e *Engine) attach(h engine.Handle, op, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	o, ok := e.lookup(h)
	if !ok {
		return engine.StatusInvParameter
	}
	if o.c != nil {
		return engine.StatusAlreadyInitialized
	}
	c, st := e.dial(filename, params)
	if st != engine.StatusSuccess {
		return st
	}
	resp, st := e.call(c, op, &Request{
		Filename: c.name,
		Flags:    flags,
		Mode:     mode,
		Params:   ToWire(params),
	})
	if st != engine.StatusSuccess {
		c.client.CloseIdleConnections()
		return st
	}
	e.mu.Lock()
	o.c = c
	o.rh = resp.Handle
	o.owns = true
	e.mu.Unlock()
	return engine.StatusSuccess
}

func (e *Engine) EnvCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	return e.attach(h, OpEnvCreate, filename, flags, mode, params)
}

func (e *Engine) EnvOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	return e.attach(h, OpEnvOpen, filename, flags, 0, params)
}

func (e *Engine) envDB(op string, envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	env, st := e.bound(envH)
	if st != engine.StatusSuccess {
		return st
	}
	db, ok := e.lookup(dbH)
	if !ok {
		return engine.StatusInvParameter
	}
	if db.c != nil {
		return engine.StatusDatabaseAlreadyOpen
	}
	resp, st := e.send(env, op, &Request{Name: name, Flags: flags, Params: ToWire(params)})
	if st != engine.StatusSuccess {
		return st
	}
	e.mu.Lock()
	db.c = env.c
	db.rh = resp.Handle
	e.mu.Unlock()
	return engine.StatusSuccess
}

func (e *Engine) EnvCreateDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	return e.envDB(OpEnvCreateDB, envH, dbH, name, flags, params)
}

func (e *Engine) EnvOpenDB(envH, dbH engine.Handle, name uint16, flags uint32, params []engine.Param) engine.Status {
	return e.envDB(OpEnvOpenDB, envH, dbH, name, flags, params)
}

func (e *Engine) EnvRenameDB(h engine.Handle, oldName, newName uint16, flags uint32) engine.Status {
	return e.simple(h, OpEnvRenameDB, &Request{Name: oldName, NewName: newName, Flags: flags})
}

func (e *Engine) EnvEraseDB(h engine.Handle, name uint16, flags uint32) engine.Status {
	return e.simple(h, OpEnvEraseDB, &Request{Name: name, Flags: flags})
}

func (e *Engine) EnvDatabaseNames(h engine.Handle) ([]uint16, engine.Status) {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	resp, st := e.send(o, OpEnvNames, &Request{})
	if st != engine.StatusSuccess {
		return nil, st
	}
	return resp.Names, engine.StatusSuccess
}

// params fills params from the server, reporting the remote filename as the
// caller passed it.
func (e *Engine) params(h engine.Handle, op string, params []engine.Param) engine.Status {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	resp, st := e.send(o, op, &Request{Params: ToWire(params)})
	if st != engine.StatusSuccess {
		return st
	}
	filled := FromWire(resp.Params)
	for i := range params {
		if i >= len(filled) {
			break
		}
		params[i].Value = filled[i].Value
		params[i].String = filled[i].String
		switch params[i].Name {
		case engine.ParamFilename:
			params[i].String = o.c.url
		case engine.ParamNetworkTimeoutSec:
			params[i].Value = uint64(o.c.timeout / time.Second)
		}
	}
	return engine.StatusSuccess
}

func (e *Engine) EnvGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	return e.params(h, OpEnvParams, params)
}

func (e *Engine) EnvFlush(h engine.Handle) engine.Status {
	return e.simple(h, OpEnvFlush, &Request{})
}

func (e *Engine) EnvClose(h engine.Handle, flags uint32) engine.Status {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if _, st := e.send(o, OpEnvClose, &Request{Flags: flags}); st != engine.StatusSuccess {
		return st
	}
	o.c.client.CloseIdleConnections()
	e.mu.Lock()
	o.c = nil
	o.rh = 0
	e.mu.Unlock()
	return engine.StatusSuccess
}

func (e *Engine) DBNew() engine.Handle { return e.alloc(&object{}) }

func (e *Engine) DBDelete(h engine.Handle) { e.drop(h) }

func (e *Engine) DBCreate(h engine.Handle, filename string, flags, mode uint32, params []engine.Param) engine.Status {
	return e.attach(h, OpDBCreate, filename, flags, mode, params)
}

func (e *Engine) DBOpen(h engine.Handle, filename string, flags uint32, params []engine.Param) engine.Status {
	return e.attach(h, OpDBOpen, filename, flags, 0, params)
}

func (e *Engine) DBGetError(h engine.Handle) engine.Status {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	_, st = e.send(o, OpDBError, &Request{})
	return st
}

// Comparators run inside the server process and cannot be installed from
// a client.
func (e *Engine) DBSetCompare(h engine.Handle, fn engine.CompareFunc) engine.Status {
	if _, st := e.bound(h); st != engine.StatusSuccess {
		return st
	}
	if fn != nil {
		return engine.StatusNotImplemented
	}
	return engine.StatusSuccess
}

func (e *Engine) DBSetPrefixCompare(h engine.Handle, fn engine.PrefixCompareFunc) engine.Status {
	if _, st := e.bound(h); st != engine.StatusSuccess {
		return st
	}
	if fn != nil {
		return engine.StatusNotImplemented
	}
	return engine.StatusSuccess
}

func (e *Engine) DBGetParameters(h engine.Handle, params []engine.Param) engine.Status {
	return e.params(h, OpDBParams, params)
}

// dbTxn resolves a database and an optional transaction on the same server.
func (e *Engine) dbTxn(dbH, txnH engine.Handle) (*object, uint32, engine.Status) {
	db, st := e.bound(dbH)
	if st != engine.StatusSuccess {
		return nil, 0, st
	}
	if txnH == 0 {
		return db, 0, engine.StatusSuccess
	}
	t, st := e.bound(txnH)
	if st != engine.StatusSuccess {
		return nil, 0, st
	}
	if t.c != db.c {
		return nil, 0, engine.StatusInvParameter
	}
	return db, t.rh, engine.StatusSuccess
}

func (e *Engine) DBInsert(dbH, txnH engine.Handle, key, record []byte, flags uint32) engine.Status {
	db, txn, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	_, st = e.send(db, OpDBInsert, &Request{Txn: txn, Key: key, Record: record, Flags: flags})
	return st
}

func (e *Engine) DBFind(dbH, txnH engine.Handle, key []byte, flags uint32) ([]byte, engine.Status) {
	db, txn, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return nil, st
	}
	resp, st := e.send(db, OpDBFind, &Request{Txn: txn, Key: key, Flags: flags})
	if st != engine.StatusSuccess {
		return nil, st
	}
	return nonNil(resp.Record), engine.StatusSuccess
}

func (e *Engine) DBErase(dbH, txnH engine.Handle, key []byte, flags uint32) engine.Status {
	db, txn, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return st
	}
	_, st = e.send(db, OpDBErase, &Request{Txn: txn, Key: key, Flags: flags})
	return st
}

func (e *Engine) DBKeyCount(dbH, txnH engine.Handle, flags uint32) (uint64, engine.Status) {
	db, txn, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	resp, st := e.send(db, OpDBCount, &Request{Txn: txn, Flags: flags})
	if st != engine.StatusSuccess {
		return 0, st
	}
	return resp.Count, engine.StatusSuccess
}

func (e *Engine) DBFlush(h engine.Handle) engine.Status {
	return e.simple(h, OpDBFlush, &Request{})
}

func (e *Engine) DBClose(h engine.Handle, flags uint32) engine.Status {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return st
	}
	if _, st := e.send(o, OpDBClose, &Request{Flags: flags}); st != engine.StatusSuccess {
		return st
	}
	if o.owns {
		o.c.client.CloseIdleConnections()
	}
	e.mu.Lock()
	o.c = nil
	o.rh = 0
	e.mu.Unlock()
	return engine.StatusSuccess
}

// derive registers a server handle returned for o's connection.
func (e *Engine) derive(o *object, resp *Response) engine.Handle {
	return e.alloc(&object{c: o.c, rh: resp.Handle})
}

func (e *Engine) CursorCreate(dbH, txnH engine.Handle, flags uint32) engine.Handle {
	db, txn, st := e.dbTxn(dbH, txnH)
	if st != engine.StatusSuccess {
		return 0
	}
	resp, st := e.send(db, OpCursorCreate, &Request{Txn: txn, Flags: flags})
	if st != engine.StatusSuccess {
		return 0
	}
	return e.derive(db, resp)
}

func (e *Engine) CursorClone(h engine.Handle) engine.Handle {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return 0
	}
	resp, st := e.send(o, OpCursorClone, &Request{})
	if st != engine.StatusSuccess {
		return 0
	}
	return e.derive(o, resp)
}

func (e *Engine) CursorMove(h engine.Handle, flags uint32) engine.Status {
	return e.simple(h, OpCursorMove, &Request{Flags: flags})
}

func (e *Engine) CursorKey(h engine.Handle) ([]byte, engine.Status) {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	resp, st := e.send(o, OpCursorKey, &Request{})
	if st != engine.StatusSuccess {
		return nil, st
	}
	return nonNil(resp.Key), engine.StatusSuccess
}

func (e *Engine) CursorRecord(h engine.Handle) ([]byte, engine.Status) {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return nil, st
	}
	resp, st := e.send(o, OpCursorRecord, &Request{})
	if st != engine.StatusSuccess {
		return nil, st
	}
	return nonNil(resp.Record), engine.StatusSuccess
}

func (e *Engine) CursorOverwrite(h engine.Handle, record []byte, flags uint32) engine.Status {
	return e.simple(h, OpCursorOverwrite, &Request{Record: record, Flags: flags})
}

func (e *Engine) CursorFind(h engine.Handle, key []byte, flags uint32) engine.Status {
	return e.simple(h, OpCursorFind, &Request{Key: key, Flags: flags})
}

func (e *Engine) CursorInsert(h engine.Handle, key, record []byte, flags uint32) engine.Status {
	return e.simple(h, OpCursorInsert, &Request{Key: key, Record: record, Flags: flags})
}

func (e *Engine) CursorErase(h engine.Handle, flags uint32) engine.Status {
	return e.simple(h, OpCursorErase, &Request{Flags: flags})
}

func (e *Engine) CursorDuplicateCount(h engine.Handle, flags uint32) (uint32, engine.Status) {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	resp, st := e.send(o, OpCursorDupCount, &Request{Flags: flags})
	if st != engine.StatusSuccess {
		return 0, st
	}
	return uint32(resp.Count), engine.StatusSuccess
}

func (e *Engine) CursorRecordSize(h engine.Handle) (uint64, engine.Status) {
	o, st := e.bound(h)
	if st != engine.StatusSuccess {
		return 0, st
	}
	resp, st := e.send(o, OpCursorRecSize, &Request{})
	if st != engine.StatusSuccess {
		return 0, st
	}
	return resp.Count, engine.StatusSuccess
}

func (e *Engine) CursorClose(h engine.Handle) engine.Status {
	if st := e.simple(h, OpCursorClose, &Request{}); st != engine.StatusSuccess {
		return st
	}
	e.drop(h)
	return engine.StatusSuccess
}

func (e *Engine) TxnBegin(envH engine.Handle, flags uint32) (engine.Handle, engine.Status) {
	o, st := e.bound(envH)
	if st != engine.StatusSuccess {
		return 0, st
	}
	resp, st := e.send(o, OpTxnBegin, &Request{Flags: flags})
	if st != engine.StatusSuccess {
		return 0, st
	}
	return e.derive(o, resp), engine.StatusSuccess
}

func (e *Engine) TxnCommit(h engine.Handle, flags uint32) engine.Status {
	if st := e.simple(h, OpTxnCommit, &Request{Flags: flags}); st != engine.StatusSuccess {
		return st
	}
	e.drop(h)
	return engine.StatusSuccess
}

func (e *Engine) TxnAbort(h engine.Handle, flags uint32) engine.Status {
	if st := e.simple(h, OpTxnAbort, &Request{Flags: flags}); st != engine.StatusSuccess {
		return st
	}
	e.drop(h)
	return engine.StatusSuccess
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

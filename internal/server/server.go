// Package server exposes an engine over HTTP for the remote engine.
//
// Every operation is a POST to /v1/{op} with a bson Request body and a bson
// Response reply. Engine statuses travel inside the Response; HTTP errors are
// reserved for malformed requests.
package server

import (
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo/internal/engine"
	"github.com/Giulio2002/hamgo/internal/engine/remote"
)

// Config configures a Server.
type Config struct {
	// Root is the directory remote filenames resolve under.
	Root string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type handlerFunc func(req *remote.Request) *remote.Response

// Server serves one engine.
type Server struct {
	cfg Config
	eng engine.Engine
	log *zap.Logger
	ops map[string]handlerFunc
	srv *fasthttp.Server

	mu   sync.Mutex
	envs map[engine.Handle]struct{}
	dbs  map[engine.Handle]struct{}
}

// New creates a server for eng. Engine messages are logged through log.
func New(cfg Config, eng engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:  cfg,
		eng:  eng,
		log:  log,
		envs: make(map[engine.Handle]struct{}),
		dbs:  make(map[engine.Handle]struct{}),
	}
	s.ops = s.operations()
	eng.SetErrorHandler(func(level int, message string) {
		s.log.Debug("engine message", zap.Int("level", level), zap.String("message", message))
	})
	s.srv = &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "hamserver",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       zap.NewStdLog(log),
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()
	r.POST(remote.PathPrefix+"{op}", s.handle)
	return r.Handler
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("serving", zap.String("addr", ln.Addr().String()), zap.String("root", s.cfg.Root))
	return s.srv.Serve(ln)
}

// Shutdown stops serving and closes every environment and database the
// clients left open.
func (s *Server) Shutdown() error {
	err := s.srv.Shutdown()
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.dbs {
		if st := s.eng.DBClose(h, engine.AutoCleanup|engine.TxnAutoAbort); st != engine.StatusSuccess {
			s.log.Warn("cannot close database", zap.Uint32("handle", uint32(h)), zap.Int32("status", int32(st)))
		}
		s.eng.DBDelete(h)
		delete(s.dbs, h)
	}
	for h := range s.envs {
		if st := s.eng.EnvClose(h, engine.AutoCleanup|engine.TxnAutoAbort); st != engine.StatusSuccess {
			s.log.Warn("cannot close environment", zap.Uint32("handle", uint32(h)), zap.Int32("status", int32(st)))
		}
		s.eng.EnvDelete(h)
		delete(s.envs, h)
	}
	return err
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	op, _ := ctx.UserValue("op").(string)
	fn, ok := s.ops[op]
	if !ok {
		ctx.Error("unknown operation", fasthttp.StatusNotFound)
		return
	}
	req := &remote.Request{}
	if err := remote.Unmarshal(ctx.PostBody(), req); err != nil {
		s.log.Debug("bad request", zap.String("op", op), zap.Error(err))
		ctx.Error("bad bson", fasthttp.StatusBadRequest)
		return
	}
	if req.Key == nil {
		req.Key = []byte{}
	}
	if req.Record == nil {
		req.Record = []byte{}
	}
	resp := fn(req)
	body, err := remote.Marshal(resp)
	if err != nil {
		s.log.Error("cannot encode response", zap.String("op", op), zap.Error(err))
		ctx.Error("cannot encode response", fasthttp.StatusInternalServerError)
		return
	}
	if resp.Status != int32(engine.StatusSuccess) {
		s.log.Debug("operation failed", zap.String("op", op), zap.Int32("status", resp.Status))
	}
	ctx.SetContentType("application/bson")
	ctx.SetBody(body)
}

// path maps a remote name below the root directory.
func (s *Server) path(name string) string {
	return filepath.Join(s.cfg.Root, filepath.Clean("/"+name))
}

func (s *Server) track(set map[engine.Handle]struct{}, h engine.Handle, open bool) {
	s.mu.Lock()
	if open {
		set[h] = struct{}{}
	} else {
		delete(set, h)
	}
	s.mu.Unlock()
}

func status(st engine.Status) *remote.Response {
	return &remote.Response{Status: int32(st)}
}

func withHandle(h engine.Handle, st engine.Status) *remote.Response {
	if st != engine.StatusSuccess {
		return status(st)
	}
	return &remote.Response{Handle: uint32(h)}
}

// newHandle returns a handle response, mapping a zero handle to a failure.
func newHandle(h engine.Handle) *remote.Response {
	if h == 0 {
		return status(engine.StatusInternalError)
	}
	return &remote.Response{Handle: uint32(h)}
}

func (s *Server) operations() map[string]handlerFunc {
	e := s.eng
	h := func(req *remote.Request) engine.Handle { return engine.Handle(req.Handle) }
	txn := func(req *remote.Request) engine.Handle { return engine.Handle(req.Txn) }

	return map[string]handlerFunc{
		remote.OpEnvCreate: func(req *remote.Request) *remote.Response {
			env := e.EnvNew()
			st := e.EnvCreate(env, s.path(req.Filename), req.Flags, req.Mode, remote.FromWire(req.Params))
			return s.opened(s.envs, env, st, e.EnvDelete)
		},
		remote.OpEnvOpen: func(req *remote.Request) *remote.Response {
			env := e.EnvNew()
			st := e.EnvOpen(env, s.path(req.Filename), req.Flags, remote.FromWire(req.Params))
			return s.opened(s.envs, env, st, e.EnvDelete)
		},
		remote.OpEnvCreateDB: func(req *remote.Request) *remote.Response {
			db := e.DBNew()
			st := e.EnvCreateDB(h(req), db, req.Name, req.Flags, remote.FromWire(req.Params))
			if st != engine.StatusSuccess {
				e.DBDelete(db)
			}
			return withHandle(db, st)
		},
		remote.OpEnvOpenDB: func(req *remote.Request) *remote.Response {
			db := e.DBNew()
			st := e.EnvOpenDB(h(req), db, req.Name, req.Flags, remote.FromWire(req.Params))
			if st != engine.StatusSuccess {
				e.DBDelete(db)
			}
			return withHandle(db, st)
		},
		remote.OpEnvRenameDB: func(req *remote.Request) *remote.Response {
			return status(e.EnvRenameDB(h(req), req.Name, req.NewName, req.Flags))
		},
		remote.OpEnvEraseDB: func(req *remote.Request) *remote.Response {
			return status(e.EnvEraseDB(h(req), req.Name, req.Flags))
		},
		remote.OpEnvNames: func(req *remote.Request) *remote.Response {
			names, st := e.EnvDatabaseNames(h(req))
			return &remote.Response{Status: int32(st), Names: names}
		},
		remote.OpEnvParams: func(req *remote.Request) *remote.Response {
			params := remote.FromWire(req.Params)
			st := e.EnvGetParameters(h(req), params)
			return &remote.Response{Status: int32(st), Params: remote.ToWire(params)}
		},
		remote.OpEnvFlush: func(req *remote.Request) *remote.Response {
			return status(e.EnvFlush(h(req)))
		},
		remote.OpEnvClose: func(req *remote.Request) *remote.Response {
			st := e.EnvClose(h(req), req.Flags)
			if st == engine.StatusSuccess {
				e.EnvDelete(h(req))
				s.track(s.envs, h(req), false)
			}
			return status(st)
		},

		remote.OpDBCreate: func(req *remote.Request) *remote.Response {
			db := e.DBNew()
			st := e.DBCreate(db, s.path(req.Filename), req.Flags, req.Mode, remote.FromWire(req.Params))
			return s.opened(s.dbs, db, st, e.DBDelete)
		},
		remote.OpDBOpen: func(req *remote.Request) *remote.Response {
			db := e.DBNew()
			st := e.DBOpen(db, s.path(req.Filename), req.Flags, remote.FromWire(req.Params))
			return s.opened(s.dbs, db, st, e.DBDelete)
		},
		remote.OpDBError: func(req *remote.Request) *remote.Response {
			return status(e.DBGetError(h(req)))
		},
		remote.OpDBParams: func(req *remote.Request) *remote.Response {
			params := remote.FromWire(req.Params)
			st := e.DBGetParameters(h(req), params)
			return &remote.Response{Status: int32(st), Params: remote.ToWire(params)}
		},
		remote.OpDBInsert: func(req *remote.Request) *remote.Response {
			return status(e.DBInsert(h(req), txn(req), req.Key, req.Record, req.Flags))
		},
		remote.OpDBFind: func(req *remote.Request) *remote.Response {
			rec, st := e.DBFind(h(req), txn(req), req.Key, req.Flags)
			return &remote.Response{Status: int32(st), Record: rec}
		},
		remote.OpDBErase: func(req *remote.Request) *remote.Response {
			return status(e.DBErase(h(req), txn(req), req.Key, req.Flags))
		},
		remote.OpDBCount: func(req *remote.Request) *remote.Response {
			n, st := e.DBKeyCount(h(req), txn(req), req.Flags)
			return &remote.Response{Status: int32(st), Count: n}
		},
		remote.OpDBFlush: func(req *remote.Request) *remote.Response {
			return status(e.DBFlush(h(req)))
		},
		remote.OpDBClose: func(req *remote.Request) *remote.Response {
			st := e.DBClose(h(req), req.Flags)
			if st == engine.StatusSuccess {
				e.DBDelete(h(req))
				s.track(s.dbs, h(req), false)
			}
			return status(st)
		},

		remote.OpCursorCreate: func(req *remote.Request) *remote.Response {
			return newHandle(e.CursorCreate(h(req), txn(req), req.Flags))
		},
		remote.OpCursorClone: func(req *remote.Request) *remote.Response {
			return newHandle(e.CursorClone(h(req)))
		},
		remote.OpCursorMove: func(req *remote.Request) *remote.Response {
			return status(e.CursorMove(h(req), req.Flags))
		},
		remote.OpCursorKey: func(req *remote.Request) *remote.Response {
			key, st := e.CursorKey(h(req))
			return &remote.Response{Status: int32(st), Key: key}
		},
		remote.OpCursorRecord: func(req *remote.Request) *remote.Response {
			rec, st := e.CursorRecord(h(req))
			return &remote.Response{Status: int32(st), Record: rec}
		},
		remote.OpCursorOverwrite: func(req *remote.Request) *remote.Response {
			return status(e.CursorOverwrite(h(req), req.Record, req.Flags))
		},
		remote.OpCursorFind: func(req *remote.Request) *remote.Response {
			return status(e.CursorFind(h(req), req.Key, req.Flags))
		},
		remote.OpCursorInsert: func(req *remote.Request) *remote.Response {
			return status(e.CursorInsert(h(req), req.Key, req.Record, req.Flags))
		},
		remote.OpCursorErase: func(req *remote.Request) *remote.Response {
			return status(e.CursorErase(h(req), req.Flags))
		},
		remote.OpCursorDupCount: func(req *remote.Request) *remote.Response {
			n, st := e.CursorDuplicateCount(h(req), req.Flags)
			return &remote.Response{Status: int32(st), Count: uint64(n)}
		},
		remote.OpCursorRecSize: func(req *remote.Request) *remote.Response {
			n, st := e.CursorRecordSize(h(req))
			return &remote.Response{Status: int32(st), Count: n}
		},
		remote.OpCursorClose: func(req *remote.Request) *remote.Response {
			return status(e.CursorClose(h(req)))
		},

		remote.OpTxnBegin: func(req *remote.Request) *remote.Response {
			t, st := e.TxnBegin(h(req), req.Flags)
			return withHandle(t, st)
		},
		remote.OpTxnCommit: func(req *remote.Request) *remote.Response {
			return status(e.TxnCommit(h(req), req.Flags))
		},
		remote.OpTxnAbort: func(req *remote.Request) *remote.Response {
			return status(e.TxnAbort(h(req), req.Flags))
		},
	}
}

// opened tracks a freshly opened environment or database, or deletes its
// handle if the open failed.
func (s *Server) opened(set map[engine.Handle]struct{}, h engine.Handle, st engine.Status, del func(engine.Handle)) *remote.Response {
	if st != engine.StatusSuccess {
		del(h)
		return status(st)
	}
	s.track(set, h, true)
	return &remote.Response{Handle: uint32(h)}
}

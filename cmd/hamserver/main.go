// Package main runs a hamgo server, giving ham:// clients access to the
// environments under a root directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Giulio2002/hamgo"
	"github.com/Giulio2002/hamgo/internal/engine/local"
	"github.com/Giulio2002/hamgo/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, nil))
}

type options struct {
	addr         string
	root         string
	logLevel     string
	lockTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	version      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("hamserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.addr, "addr", ":8089", "listen address")
	fs.StringVar(&opts.root, "root", ".", "directory holding the served files")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.DurationVar(&opts.lockTimeout, "lock-timeout", time.Second, "how long opening a locked file waits")
	fs.DurationVar(&opts.readTimeout, "read-timeout", time.Minute, "request read timeout")
	fs.DurationVar(&opts.writeTimeout, "write-timeout", time.Minute, "response write timeout")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// run serves until a signal arrives on stop, or SIGINT/SIGTERM when stop is
// nil, and returns the exit code.
func run(args []string, stderr io.Writer, stop <-chan os.Signal) int {
	opts, err := parseFlags(args, stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "hamserver:", err)
		return 2
	}
	if opts.version {
		fmt.Fprintln(stderr, hamgo.Version())
		return 0
	}

	info, err := os.Stat(opts.root)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(stderr, "hamserver: root %q is not a directory\n", opts.root)
		return 1
	}
	log, err := newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, "hamserver:", err)
		return 2
	}
	defer log.Sync() //nolint:errcheck

	eng := local.New(local.WithLogger(log.Named("engine")), local.WithLockTimeout(opts.lockTimeout))
	srv := server.New(server.Config{
		Root:         opts.root,
		ReadTimeout:  opts.readTimeout,
		WriteTimeout: opts.writeTimeout,
	}, eng, log)

	if stop == nil {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		stop = sig
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		log.Error("cannot listen", zap.String("addr", opts.addr), zap.Error(err))
		return 1
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		log.Error("server stopped", zap.Error(err))
		return 1
	case s := <-stop:
		log.Info("shutting down", zap.Stringer("signal", s))
	}
	err = srv.Shutdown()
	_ = ln.Close()
	<-errc
	if err != nil {
		log.Error("shutdown failed", zap.Error(err))
		return 1
	}
	return 0
}

// Package responder serves a fixed greeting over HTTP.
package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config describes how Start binds and serves. It is passed explicitly;
// the responder reads no process-wide state.
type Config struct {
	Host string // empty binds every interface
	Port int    // 0 binds an ephemeral port

	Handler http.Handler

	ReadHeaderTimeout time.Duration // 0 disables
	IdleTimeout       time.Duration // 0 disables

	// Announce receives the single startup line. Nil skips it.
	Announce io.Writer

	Logger *slog.Logger
}

// Server is a running responder. It owns the bound listener until Close.
type Server struct {
	listener net.Listener
	server   *http.Server
	logger   *slog.Logger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// Start binds cfg.Host:cfg.Port and begins accepting connections in the
// background. ctx only bounds the bind; the server keeps running until
// Close. Bind failures are returned as *BindError.
func Start(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("responder: nil handler")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Reason: classifyBind(err), Err: err}
	}

	s := &Server{
		listener: ln,
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		},
		logger: logger,
		done:   make(chan struct{}),
	}

	bound := s.Addr()
	logger.Info("listening", "addr", bound.String())
	if cfg.Announce != nil {
		fmt.Fprintf(cfg.Announce, "Server is running on http://localhost:%d\n", bound.Port)
	}

	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		s.logger.Error("serve stopped", "error", err)
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// Addr returns the bound address, including the port chosen for Port 0.
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Done is closed once the server has stopped accepting connections.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until serving stops and returns the terminal error, which is
// nil after Close.
func (s *Server) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops accepting connections and closes open ones immediately.
// In-flight requests are not drained.
func (s *Server) Close() error {
	err := s.server.Close()
	<-s.done
	return err
}

// BindReason classifies why a bind failed.
type BindReason string

const (
	BindInUse      BindReason = "in_use"
	BindPermission BindReason = "permission"
	BindInvalid    BindReason = "invalid"
	BindUnknown    BindReason = "unknown"
)

// BindError reports that the listening socket could not be created.
type BindError struct {
	Addr   string
	Reason BindReason
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s (%s): %v", e.Addr, e.Reason, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func classifyBind(err error) BindReason {
	var addrErr *net.AddrError
	var dnsErr *net.DNSError
	var parseErr *net.ParseError
	switch {
	case errors.As(err, &addrErr), errors.As(err, &dnsErr), errors.As(err, &parseErr):
		return BindInvalid
	}
	return classifyErrno(err)
}

// Package web serves the local dashboard and its JSON API.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simwatch/simwatch/internal/errors"
	"github.com/simwatch/simwatch/internal/logger"
	"github.com/simwatch/simwatch/internal/store"
)

// Controller is what the API handlers need from the owning process: remote
// job control, an on-demand poll, and shutdown.
type Controller interface {
	// StopJob kills the named job's remote process.
	StopJob(ctx context.Context, name string) error

	// RestartJob relaunches the named job's remote process.
	RestartJob(ctx context.Context, name string) error

	// Refresh runs a poll cycle now and returns once its results are
	// visible in the store.
	Refresh(ctx context.Context) error

	// Quit shuts the whole process down.
	Quit()
}

// Server is the local HTTP dashboard. It binds loopback only; this is a
// personal tool, not a service.
type Server struct {
	store *store.Store
	ctrl  Controller
	log   logger.Logger
	http  *http.Server
	ln    net.Listener
	addr  string
}

// New creates a dashboard server for the given port.
func New(port int, st *store.Store, ctrl Controller, log logger.Logger) *Server {
	if log == nil {
		log = logger.Noop()
	}
	s := &Server{
		store: st,
		ctrl:  ctrl,
		log:   log,
		addr:  fmt.Sprintf("127.0.0.1:%d", port),
	}
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the gin handler so tests can drive it without a listener.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())

	g.GET("/", s.handleIndex)
	g.GET("/api/status", s.handleStatus)
	g.POST("/api/stop", s.handleStop)
	g.POST("/api/restart", s.handleRestart)
	g.POST("/api/refresh", s.handleRefresh)
	g.POST("/api/quit", s.handleQuit)
	return g
}

// Listen binds the port. A failed bind usually means another instance
// already owns it, which doubles as the single-instance guard.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrHTTP,
			fmt.Sprintf("cannot bind %s", s.addr),
			"another simwatch instance may already be running; stop it or change dashboard_port")
	}
	s.ln = ln
	return nil
}

// Serve runs the server on the bound listener until Shutdown.
func (s *Server) Serve() error {
	s.log.Info("dashboard listening on http://%s", s.addr)
	if err := s.http.Serve(s.ln); err != nil && err != http.ErrServerClosed {
		return errors.WrapWithCode(err, errors.ErrHTTP, "dashboard server failed", "")
	}
	return nil
}

// Start binds and serves in one call.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops the server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the bind address.
func (s *Server) Addr() string {
	return s.addr
}

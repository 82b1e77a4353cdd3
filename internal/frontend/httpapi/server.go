// Package httpapi serves the movie catalog as a read-only JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/config"
	"github.com/vadimtrunov/marquee/internal/core"
)

const apiPrefix = "/api/v1"

// compile-time check.
var _ core.Frontend = (*Server)(nil)

// Server is the HTTP frontend. Each request runs against its own state
// store, so concurrent requests never observe each other's results.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	movies          core.MovieCatalog
	engine          *gin.Engine
	srv             *http.Server
	listener        net.Listener
	mu              sync.RWMutex
	ready           chan struct{}
	started         atomic.Bool
	logger          *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithShutdownTimeout bounds graceful shutdown when Start's context ends.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a server listening on addr once started.
func New(addr string, movies core.MovieCatalog, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:            addr,
		shutdownTimeout: 5 * time.Second,
		movies:          movies,
		ready:           make(chan struct{}),
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(logger), requestLogger())
	engine.GET("/healthz", s.health)

	api := engine.Group(apiPrefix)
	api.GET("/upcoming", s.upcoming)
	api.GET("/search", s.search)
	api.GET("/movies/:id", s.movie)
	api.GET("/movies/:id/images", s.images)

	s.engine = engine
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Name returns the frontend name.
func (s *Server) Name() string { return "http" }

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Ready returns a channel that is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("http api already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("http api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("http api listening", slog.String("addr", ln.Addr().String()))

	serveDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-serveDone:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error("http api shutdown error", slog.String("error", err.Error()))
		}
	}()

	err = s.srv.Serve(ln)
	close(serveDone)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	s.logger.Info("http api stopped")
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http api: %w", err)
	}
	return nil
}

// fetcher returns a fetcher bound to a fresh store for one request.
func (s *Server) fetcher(c *gin.Context) *catalog.Fetcher {
	logger := config.LoggerFromContext(c.Request.Context())
	return catalog.NewFetcher(s.movies, catalog.NewStore(logger), logger)
}

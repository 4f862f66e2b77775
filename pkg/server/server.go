// Package server exposes the carving pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness probe
//	POST /v1/carve         body: image; query: n, format, cropped, clamp
//	POST /v1/seam          body: image; returns {"seam": [...]}
//	POST /v1/stats         body: image; returns {"width", "height", "brightness"}
//
// Uploads are limited both in encoded size (Config.MaxBodyBytes, 413) and in
// declared pixel count (Config.MaxPixels, 400 INVALID_DIMENSIONS).
//
// Every response carries an X-Request-ID header. Errors are JSON objects
// with "error", "code" and "request_id" fields.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxBodyBytes    = 32 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout  = 2 * time.Minute
)

// Config configures a Server.
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080". Required for Serve.
	Addr string

	// Runner executes carve requests. Required.
	Runner *pipeline.Runner

	// Logger receives request and lifecycle logs. Defaults to a discard logger.
	Logger *log.Logger

	// DefaultFormat is used when a carve request has no format parameter.
	DefaultFormat imageio.Format

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64

	// MaxPixels limits the declared size of uploaded images, independent of
	// their encoded size. Zero means errors.MaxPixels.
	MaxPixels int

	// RequestTimeout bounds the time spent on one request.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown after ctx is cancelled.
	ShutdownTimeout time.Duration
}

// Server serves the carving API. Serve blocks until the context is
// cancelled and in-flight requests drain.
type Server struct {
	cfg    Config
	router chi.Router
	ready  chan struct{}
	addr   net.Addr
}

// New validates cfg, applies defaults and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("server: runner is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = pipeline.DefaultFormat
	}
	if !imageio.ValidFormats[cfg.DefaultFormat] {
		return nil, fmt.Errorf("server: invalid default format %q", cfg.DefaultFormat)
	}
	if cfg.MaxPixels < 0 || cfg.MaxPixels > errors.MaxPixels {
		return nil, fmt.Errorf("server: max pixels %d outside [0, %d]", cfg.MaxPixels, errors.MaxPixels)
	}
	if cfg.MaxPixels == 0 {
		cfg.MaxPixels = errors.MaxPixels
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{cfg: cfg, ready: make(chan struct{})}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Post("/carve", s.handleCarve)
		r.Post("/seam", s.handleSeam)
		r.Post("/stats", s.handleStats)
	})
	return r
}

// Handler returns the HTTP handler, for use with httptest or a custom server.
func (s *Server) Handler() http.Handler { return s.router }

// Ready returns a channel that is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the resolved listen address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve listens on cfg.Addr and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.cfg.Logger.Info("listening", "addr", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.cfg.Logger.Info("shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.cfg.Logger.Info("stopped")
	return nil
}

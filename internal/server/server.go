// Package server exposes the rendering engine over HTTP: a JSON control
// surface for starting and stopping acquisition, rendered waterfall and
// chart artifacts, and the live websocket feed of ingested frames.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/render"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/telemetry"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultShutdownTimeout bounds the graceful drain on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string              `yaml:"addr" json:"addr"`
	ShutdownTimeout source.TimeDuration `yaml:"shutdownTimeout" json:"shutdownTimeout"`

	// AutoStop stops the active source when the last websocket client
	// disconnects, mirroring the feed-follows-viewer behaviour of the
	// browser UI. Disable for headless capture rigs.
	AutoStop bool `yaml:"autoStop" json:"autoStop"`
}

// WithDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = source.NewTimeDuration(DefaultShutdownTimeout)
	}
	return c
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the telemetry counters the server reports into.
func WithMetrics(m *telemetry.Metrics) func(s *Server) {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server ties the engine, the source manager and the websocket hub to an
// http.Server with graceful shutdown.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics

	engine     *waterfall.Engine
	manager    *source.Manager
	hub        *Hub
	rasterizer *render.Rasterizer

	httpServer *http.Server
}

// New creates a server for the given engine and source manager.
func New(cfg Config, engine *waterfall.Engine, manager *source.Manager, options ...func(s *Server)) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if manager == nil {
		return nil, errors.New("source manager is required")
	}

	s := Server{
		cfg:        cfg.WithDefaults(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		metrics:    telemetry.New(),
		engine:     engine,
		manager:    manager,
		rasterizer: render.NewRasterizer(render.Config{}),
	}

	for _, option := range options {
		option(&s)
	}

	s.hub = NewHub(s.logger, s.metrics,
		WithHello(func() any { return s.manager.State() }),
		WithOnEmpty(s.onLastClientGone))

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &s, nil
}

// Hub returns the websocket hub, which the frame path broadcasts into.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then drains connections within
// the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)

	case <-ctx.Done():
		s.logger.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()

		s.hub.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/devices", s.handleDevices)

	mux.HandleFunc("GET /waterfall.png", s.handleWaterfallPNG)
	mux.HandleFunc("GET /chart", s.handleChart)

	mux.Handle("GET /ws", s.hub)

	return mux
}

// onLastClientGone implements the auto-stop policy: with nobody watching
// the feed there is nothing to render for.
func (s *Server) onLastClientGone() {
	if !s.cfg.AutoStop {
		return
	}
	if state := s.manager.State(); state.Running {
		s.logger.Info("last client disconnected, stopping stream")
		// The broadcast may drop the last client from inside the frame
		// delivery path; Stop waits for that path, so it must not run on it.
		go s.manager.Stop()
	}
}

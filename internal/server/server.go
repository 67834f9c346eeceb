// Package server exposes the orchestrator over HTTP for the web front end
// and API clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/internal/orchestrator"
)

// Config wires a Server.
type Config struct {
	Server config.ServerConfig

	// MetricsPath defaults to /metrics.
	MetricsPath string

	Manager *orchestrator.Manager
	Metrics *observability.Metrics

	// Gatherer backs the metrics endpoint. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	Logger *observability.Logger
}

// Server is the HTTP surface.
type Server struct {
	cfg     Config
	manager *orchestrator.Manager
	metrics *observability.Metrics
	logger  *observability.Logger
	handler http.Handler

	httpServer *http.Server
	listener   net.Listener
}

// New builds the router. Manager is required.
func New(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("server: manager is required")
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	}
	s := &Server{
		cfg:     cfg,
		manager: cfg.Manager,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) metricsHandler() http.Handler {
	if s.cfg.Gatherer != nil {
		return promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()
	s.logger.Info(ctx, "starting http server", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests, bounded by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if timeout := s.cfg.Server.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

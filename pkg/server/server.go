package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sentra-hq/anchor/pkg/config"
	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/verify"
	"sentra-hq/anchor/pkg/telemetry/metrics"
)

// Server is the HTTP service fronting the authoritative evidence ledger.
type Server struct {
	config       *config.ServerConfig
	ledger       ledger.Ledger
	verifier     *verify.Service
	metrics      *metrics.LedgerMetrics
	collector    *metrics.Collector
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options carries optional server dependencies.
type Options struct {
	// Metrics records registration outcomes and latency. Nil disables
	// instrumentation.
	Metrics *metrics.LedgerMetrics

	// Collector serves the /metrics endpoint. Nil disables the endpoint.
	Collector *metrics.Collector
}

// New creates a ledger service over the given backend. Verification lookups
// go through a verify.Service without a fallback store: the server's answers
// are authoritative, never provisional.
func New(cfg *config.ServerConfig, l ledger.Ledger, opts Options) *Server {
	return &Server{
		config:       cfg,
		ledger:       l,
		verifier:     verify.New(l, nil),
		metrics:      opts.Metrics,
		collector:    opts.Collector,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting ledger service", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server within the configured budget.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("ledger service stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/register", &registerHandler{ledger: s.ledger, metrics: s.metrics})
	mux.Handle("/v1/verify/", &verifyHandler{verifier: s.verifier})
	mux.Handle("/healthz", &healthHandler{})
	mux.Handle("/readyz", &readyHandler{ledger: s.ledger})

	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return handler
}

// Handler returns the configured HTTP handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

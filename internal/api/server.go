// Package api implements a minimal, read-only HTTP diagnostic surface over
// the engine's published MarketSnapshot. It is not the terminal UI (that
// is an external, out-of-scope collaborator reading the same snapshot) —
// just a /health and /api/snapshot pair for inspecting a running engine
// during development, gated behind dashboard_enabled.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
)

// Server runs the debug HTTP server.
type Server struct {
	cfg     config.Config
	handlers *Handlers
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a debug server wrapping state. symbol and scaler are
// needed to render the snapshot's tick-scaled book back into decimal.
func NewServer(cfg config.Config, state MarketStateProvider, symbol string, scaler *book.Scaler, logger *slog.Logger) *Server {
	handlers := NewHandlers(state, symbol, scaler, cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.DashboardPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start blocks serving until Stop is called or the server errors.
func (s *Server) Start() error {
	s.logger.Info("debug server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping debug server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

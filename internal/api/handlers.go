package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
)

// Handlers holds the HTTP handler dependencies for the read-only debug
// server. There is no write path: the snapshot handler reads engine state
// only through Load(), and the health handler does not read it at all.
type Handlers struct {
	state  MarketStateProvider
	symbol string
	scaler *book.Scaler
	cfg    config.Config
	logger *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(state MarketStateProvider, symbol string, scaler *book.Scaler, cfg config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{
		state:  state,
		symbol: symbol,
		scaler: scaler,
		cfg:    cfg,
		logger: logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleSnapshot returns the currently published MarketSnapshot as JSON.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := BuildSnapshot(h.state, h.symbol, h.scaler, h.cfg)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

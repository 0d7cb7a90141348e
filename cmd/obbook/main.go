// Command obbook reconstructs a live, locally-held limit order book for a
// single symbol from a venue's REST snapshot plus its incremental depth
// and trade streams, and publishes the derived microstructure metrics
// alongside it.
//
// Architecture:
//
//	main.go               — entry point: resolves the symbol, loads config, starts the engine, waits for SIGINT/SIGTERM
//	engine/engine.go       — single-threaded run loop: applies deltas/trades in order, reconnects with backoff, publishes snapshots
//	book/{scaler,orderbook,sync,trade,metrics,state}.go — integer-tick book, delta sync protocol, derived metrics, lock-free publish
//	venue/{client,ws,types,ratelimit}.go — REST snapshot/exchange-info clients and the combined depth+trade WebSocket stream
//	api/{server,handlers,snapshot}.go — optional read-only HTTP debug endpoint over the published snapshot
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orderbook-engine/internal/api"
	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
	"orderbook-engine/internal/engine"
	"orderbook-engine/internal/venue"

	"github.com/shopspring/decimal"
)

func main() {
	symbol, err := parseSymbol(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: obbook <SYMBOL>")
		os.Exit(1)
	}

	cfgPath := "config.toml"
	if p := os.Getenv("OBBOOK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rest := venue.NewClient("", logger)

	info, err := rest.GetExchangeInfo(ctx, symbol)
	if err != nil {
		logger.Error("failed to fetch exchange info", "error", err, "symbol", symbol)
		os.Exit(1)
	}
	tickSize, stepSize, ok := info.TickAndStepSize(symbol)
	if !ok {
		logger.Error("symbol not found in exchange info", "symbol", symbol)
		os.Exit(1)
	}
	scaler := book.NewScaler(decimal.RequireFromString(tickSize), decimal.RequireFromString(stepSize), logger)

	depth, err := rest.GetDepthSnapshot(ctx, symbol, cfg.OrderbookInitialSnapshotDepth)
	if err != nil {
		logger.Error("failed to fetch initial depth snapshot", "error", err, "symbol", symbol)
		os.Exit(1)
	}

	stream := venue.NewStreamClient("", symbol, logger)
	eng := engine.New(symbol, *depth, scaler, *cfg, rest, stream, logger)

	var debugServer *api.Server
	if cfg.DashboardEnabled {
		debugServer = api.NewServer(*cfg, eng.State(), symbol, scaler, logger)
		go func() {
			if err := debugServer.Start(); err != nil {
				logger.Error("debug server failed", "error", err)
			}
		}()
		logger.Info("debug server started", "url", fmt.Sprintf("http://localhost:%d", cfg.DashboardPort))
	}

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- eng.Run(ctx)
	}()

	logger.Info("order book engine started", "symbol", symbol, "tick_size", tickSize, "step_size", stepSize)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		eng.Shutdown()
		<-runErrCh
	case err := <-runErrCh:
		if err != nil {
			logger.Error("engine exited with error", "error", err)
		}
	}

	if debugServer != nil {
		if err := debugServer.Stop(); err != nil {
			logger.Error("failed to stop debug server", "error", err)
		}
	}
}

func parseSymbol(args []string) (string, error) {
	if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
		return "", fmt.Errorf("missing required SYMBOL argument")
	}
	return strings.ToUpper(strings.TrimSpace(args[1])), nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

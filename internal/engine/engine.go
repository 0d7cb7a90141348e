// Package engine implements the single-threaded cooperative run loop that
// owns the order book, its synchronization state, and its derived metrics.
// It is the only writer of that state; every other goroutine in the
// program either feeds it events over channels or atomically loads the
// MarketSnapshot it publishes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
	"orderbook-engine/internal/venue"
)

type commandKind int

const (
	cmdNewSnapshot commandKind = iota
	cmdRequestSnapshot
	cmdStreamDisconnected
	cmdStreamReconnected
	cmdFatal
	cmdShutdown
)

type command struct {
	kind     commandKind
	snapshot *venue.DepthSnapshotResponse
	err      error
}

const commandChannelCapacity = 32

// Engine drives the depth and trade streams, applies them to the book in
// causal order, maintains metrics, and publishes an immutable snapshot
// after every mutating event.
type Engine struct {
	symbol string
	cfg    config.Config

	scaler            *book.Scaler
	syncState         *book.SyncState
	ob                *book.OrderBook
	metrics           *book.MarketMetrics
	recentTrades      *book.RecentTrades
	significantTrades *book.SignificantTrades
	isSyncing         bool

	updateCount  uint64
	windowStart  time.Time

	state  *book.MarketState
	rest   *venue.Client
	stream *venue.StreamClient

	cmdCh chan command

	// reconnectAttempts is shared between the engine goroutine (which
	// resets it on a successful reseed) and the stream supervisor
	// goroutine (which increments it and reads it for backoff), hence
	// atomic rather than plain engine-owned state.
	reconnectAttempts atomic.Int32

	logger *slog.Logger
}

// New builds an Engine seeded with an initial depth snapshot. The returned
// Engine has already published its first (is_syncing=true) MarketSnapshot;
// call Run to start consuming streams.
func New(symbol string, initial venue.DepthSnapshotResponse, scaler *book.Scaler, cfg config.Config, rest *venue.Client, stream *venue.StreamClient, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine", "symbol", symbol)

	syncState := book.NewSyncState()
	syncState.SetLastUpdateID(initial.LastUpdateID)
	ob := book.FromSnapshot(initial.ToBook(), scaler, logger)

	e := &Engine{
		symbol:            symbol,
		cfg:               cfg,
		scaler:            scaler,
		syncState:         syncState,
		ob:                ob,
		metrics:           &book.MarketMetrics{},
		recentTrades:      book.NewRecentTrades(cfg.RecentTradesStartingCapacity),
		significantTrades: book.NewSignificantTrades(cfg.SignificantTradesRetentionSec),
		isSyncing:         true,
		windowStart:       time.Now(),
		state:             book.NewMarketState(ob, symbol, scaler),
		rest:              rest,
		stream:            stream,
		cmdCh:             make(chan command, commandChannelCapacity),
		logger:            logger,
	}
	e.publish()
	return e
}

// State returns the MarketState readers should atomic-load from.
func (e *Engine) State() *book.MarketState { return e.state }

// Shutdown requests a clean exit of Run. Safe to call from any goroutine.
func (e *Engine) Shutdown() {
	select {
	case e.cmdCh <- command{kind: cmdShutdown}:
	default:
		e.logger.Warn("shutdown dropped, command channel full")
	}
}

// Run drives the prioritized event loop until Shutdown is requested, the
// context is cancelled, or reconnection attempts are exhausted. The command
// channel is checked first on every iteration (Go's select has no biased
// mode, unlike some other languages' select primitives, so priority is
// implemented with a non-blocking pre-check).
func (e *Engine) Run(ctx context.Context) error {
	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	go e.runStreamSupervisor(streamCtx)

	for {
		select {
		case cmd := <-e.cmdCh:
			shutdown, err := e.handleCommand(ctx, cmd)
			if err != nil {
				return err
			}
			if shutdown {
				return nil
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-e.cmdCh:
			shutdown, err := e.handleCommand(ctx, cmd)
			if err != nil {
				return err
			}
			if shutdown {
				return nil
			}

		case evt := <-e.stream.TradeEvents():
			e.handleTradeEvent(evt)

		case evt := <-e.stream.DepthEvents():
			e.handleDepthEvent(evt)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd command) (shutdown bool, err error) {
	switch cmd.kind {
	case cmdNewSnapshot:
		e.logger.Info("received new snapshot", "last_update_id", cmd.snapshot.LastUpdateID)
		e.syncState.SetLastUpdateID(cmd.snapshot.LastUpdateID)
		e.ob = book.FromSnapshot(cmd.snapshot.ToBook(), e.scaler, e.logger)
		e.reconnectAttempts.Store(0)
		e.publish()

	case cmdRequestSnapshot:
		e.spawnSnapshotFetch(ctx)

	case cmdStreamDisconnected:
		e.isSyncing = true
		e.publish()

	case cmdStreamReconnected:
		e.syncState.Reset()
		e.spawnSnapshotFetch(ctx)

	case cmdFatal:
		return false, fmt.Errorf("stream supervisor exhausted reconnect attempts: %w", cmd.err)

	case cmdShutdown:
		e.logger.Info("shutting down")
		return true, nil
	}
	return false, nil
}

func (e *Engine) handleDepthEvent(evt venue.DepthEvent) {
	receivedAt := evt.ReceivedAt
	outcome, updates := e.syncState.ProcessDelta(evt.Update)

	switch outcome {
	case book.Updates:
		for _, u := range updates {
			e.ob.ApplyUpdate(u, e.scaler, e.logger)
		}
		e.isSyncing = false
	case book.Gap:
		e.logger.Warn("gap detected in depth stream, requesting resynchronization")
		e.enqueueSelf(command{kind: cmdRequestSnapshot})
		e.syncState.Reset()
		e.isSyncing = true
	case book.NoUpdates:
		return
	}

	e.recordEvent()
	nowMs := uint64(time.Now().UnixMilli())

	// Depth updates keep arriving even if the trade stream stalls; piggyback
	// the wall-clock safety eviction here rather than adding a dedicated
	// timer/select-arm just for the trade window.
	if nowMs > book.RecentTradesRetentionMs {
		e.recentTrades.EvictBefore(nowMs - book.RecentTradesRetentionMs)
	}

	e.metrics.ComputeBookMetrics(e.ob, e.scaler, e.cfg.OrderbookImbalanceDepthLevels, evt.Update.EventTimeMs, receivedAt, nowMs)
	e.publish()
}

func (e *Engine) handleTradeEvent(evt venue.TradeEvent) {
	trade, ok := evt.Message.ToBook()
	if !ok {
		e.logger.Warn("dropping trade with unparseable price/quantity", "trade_id", evt.Message.TradeID)
		return
	}

	if sig, flagged := book.DetectSignificant(e.recentTrades, trade, e.cfg.SignificantTradeVolumePct); flagged {
		e.significantTrades.Push(sig)
	}

	e.recentTrades.Push(trade)
	e.recordEvent()

	nowMs := uint64(time.Now().UnixMilli())
	e.metrics.ComputeTradeMetrics(e.recentTrades, evt.Message.EventTimeMs, evt.ReceivedAt, nowMs)
	e.publish()
}

func (e *Engine) recordEvent() {
	e.updateCount++
	elapsed := time.Since(e.windowStart).Seconds()
	if elapsed >= 1.0 {
		e.metrics.UpdatePerformanceMetrics(float64(e.updateCount) / elapsed)
		e.updateCount = 0
		e.windowStart = time.Now()
	}
}

// publish clones the current generation of mutable state into a fresh
// MarketSnapshot and swaps it into the shared atomic pointer.
func (e *Engine) publish() {
	e.state.Publish(&book.MarketSnapshot{
		Book:              e.ob.Clone(),
		Metrics:           e.metrics.Clone(),
		RecentTrades:      e.recentTrades.Clone(),
		SignificantTrades: e.significantTrades.Clone(),
		IsSyncing:         e.isSyncing,
	})
}

// enqueueSelf posts a command without blocking. It is called from the
// engine goroutine and from the stream supervisor goroutine. If the
// channel (capacity 32) is full, the command is dropped and an error is
// logged.
func (e *Engine) enqueueSelf(cmd command) {
	select {
	case e.cmdCh <- cmd:
	default:
		e.logger.Error("command channel full, dropping self-enqueued command")
	}
}

func (e *Engine) spawnSnapshotFetch(ctx context.Context) {
	go func() {
		snap, err := e.rest.GetDepthSnapshot(ctx, e.symbol, e.cfg.OrderbookInitialSnapshotDepth)
		if err != nil {
			e.logger.Error("fatal: failed to fetch snapshot", "error", err)
			return
		}
		select {
		case e.cmdCh <- command{kind: cmdNewSnapshot, snapshot: snap}:
		case <-ctx.Done():
			e.logger.Warn("snapshot fetch completed after engine shutdown, dropping")
		}
	}()
}

// runStreamSupervisor owns reconnection and its exponential backoff. It
// never touches book/sync/metrics directly — only the engine goroutine
// does that — it communicates exclusively through commands. The attempt
// counter resets only when the engine goroutine applies a fresh snapshot
// (cmdNewSnapshot), the clearest signal that the connection is genuinely
// serving data again, not merely that a dial succeeded.
func (e *Engine) runStreamSupervisor(ctx context.Context) {
	for {
		err := e.stream.Connect(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt := e.reconnectAttempts.Add(1)
		e.logger.Warn("stream disconnected", "error", err, "attempt", attempt)
		e.enqueueSelf(command{kind: cmdStreamDisconnected})

		if int(attempt) > e.cfg.MaxReconnectAttempts {
			e.enqueueSelf(command{kind: cmdFatal, err: err})
			return
		}

		delay := backoffDelay(int(attempt), e.cfg.InitialBackoffMs, e.cfg.MaxBackoffMs)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		e.enqueueSelf(command{kind: cmdStreamReconnected})
	}
}

func backoffDelay(attempt int, initialMs, maxMs int64) time.Duration {
	delay := initialMs
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxMs {
			delay = maxMs
			break
		}
	}
	if delay > maxMs {
		delay = maxMs
	}
	return time.Duration(delay) * time.Millisecond
}

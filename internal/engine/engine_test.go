package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
	"orderbook-engine/internal/venue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngine(t *testing.T, restURL string) *Engine {
	t.Helper()
	scaler := book.NewScaler(decimal.RequireFromString("0.01"), decimal.RequireFromString("0.001"), testLogger())
	initial := venue.DepthSnapshotResponse{
		LastUpdateID: 100,
		Bids:         [][2]string{{"99.00", "1.0"}},
		Asks:         [][2]string{{"101.00", "1.0"}},
	}
	cfg := config.Default()
	rest := venue.NewClient(restURL, testLogger())
	stream := venue.NewStreamClient("", "BTCUSDT", testLogger())

	return New("BTCUSDT", initial, scaler, cfg, rest, stream, testLogger())
}

func TestNewPublishesInitialSyncingSnapshot(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	snap := e.State().Load()
	if !snap.IsSyncing {
		t.Fatal("expected initial snapshot to be syncing")
	}
	bid, _, ok := snap.Book.BestBid()
	if !ok || e.scaler.TicksToPrice(bid).String() != "99" {
		t.Fatalf("expected seeded book, bid ok=%v", ok)
	}
}

func TestHandleDepthEventAppliesContiguousUpdate(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	e.handleDepthEvent(venue.DepthEvent{
		Update: &book.DepthUpdate{
			EventTimeMs:   1000,
			FirstUpdateID: 101,
			FinalUpdateID: 102,
			Bids:          [][2]string{{"99.50", "2.0"}},
		},
		ReceivedAt: time.Now(),
	})

	snap := e.State().Load()
	if snap.IsSyncing {
		t.Fatal("expected is_syncing to clear after a contiguous update")
	}
	bid, _, ok := snap.Book.BestBid()
	if !ok || e.scaler.TicksToPrice(bid).String() != "99.5" {
		t.Fatalf("expected updated best bid 99.5, ok=%v", ok)
	}
	if !snap.Metrics.HasSpread {
		t.Error("expected book metrics to be recomputed")
	}
}

func TestHandleDepthEventGapTriggersResyncAndRequestsSnapshot(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	e.handleDepthEvent(venue.DepthEvent{
		Update: &book.DepthUpdate{FirstUpdateID: 200, FinalUpdateID: 201},
	})

	snap := e.State().Load()
	if !snap.IsSyncing {
		t.Fatal("expected is_syncing to be set after a gap")
	}

	select {
	case cmd := <-e.cmdCh:
		if cmd.kind != cmdRequestSnapshot {
			t.Fatalf("kind = %v, want cmdRequestSnapshot", cmd.kind)
		}
	default:
		t.Fatal("expected a self-enqueued RequestSnapshot command")
	}
}

func TestHandleDepthEventEvictsStaleTradesFromIdleWindow(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	e.recentTrades.Push(book.Trade{TradeID: 1, TradeTimeMs: 1, Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)})

	e.handleDepthEvent(venue.DepthEvent{
		Update: &book.DepthUpdate{FirstUpdateID: 101, FinalUpdateID: 102, Bids: [][2]string{{"99.50", "2.0"}}},
	})

	if len(e.recentTrades.Trades()) != 0 {
		t.Fatalf("expected stale trade to be evicted on a depth event, got %d remaining", len(e.recentTrades.Trades()))
	}
}

func TestHandleTradeEventDetectsSignificantTrade(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	e.handleTradeEvent(venue.TradeEvent{
		Message: venue.TradeMessage{EventTimeMs: 100, TradeID: 1, Price: "10", Quantity: "20", TradeTimeMs: 100},
	})
	e.handleTradeEvent(venue.TradeEvent{
		Message: venue.TradeMessage{EventTimeMs: 200, TradeID: 2, Price: "10", Quantity: "2", TradeTimeMs: 200},
	})

	snap := e.State().Load()
	if len(snap.SignificantTrades.Entries()) != 1 {
		t.Fatalf("expected 1 significant trade, got %d", len(snap.SignificantTrades.Entries()))
	}
	if !snap.Metrics.HasVWAP1m {
		t.Error("expected trade metrics to be recomputed")
	}
	if snap.Metrics.TotalTrades != 2 {
		t.Errorf("total trades = %d, want 2", snap.Metrics.TotalTrades)
	}
}

func TestHandleCommandNewSnapshotKeepsSyncingAndResetsAttempts(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")
	e.reconnectAttempts.Store(5)

	shutdown, err := e.handleCommand(context.Background(), command{
		kind: cmdNewSnapshot,
		snapshot: &venue.DepthSnapshotResponse{
			LastUpdateID: 500,
			Bids:         [][2]string{{"50", "1"}},
			Asks:         [][2]string{{"51", "1"}},
		},
	})
	if err != nil || shutdown {
		t.Fatalf("handleCommand: shutdown=%v err=%v", shutdown, err)
	}
	if !e.isSyncing {
		t.Error("expected is_syncing to stay set until the next applied delta batch")
	}
	if e.reconnectAttempts.Load() != 0 {
		t.Errorf("reconnect attempts = %d, want 0", e.reconnectAttempts.Load())
	}
}

func TestHandleCommandShutdownStopsTheLoop(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	shutdown, err := e.handleCommand(context.Background(), command{kind: cmdShutdown})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !shutdown {
		t.Fatal("expected shutdown=true")
	}
}

func TestHandleCommandFatalReturnsError(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")

	_, err := e.handleCommand(context.Background(), command{kind: cmdFatal, err: fmt.Errorf("boom")})
	if err == nil {
		t.Fatal("expected an error for cmdFatal")
	}
}

func TestHandleCommandRequestSnapshotFetchesAndEnqueues(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lastUpdateId":777,"bids":[["1","1"]],"asks":[["2","1"]]}`)
	}))
	defer srv.Close()

	e := testEngine(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	shutdown, err := e.handleCommand(ctx, command{kind: cmdRequestSnapshot})
	if err != nil || shutdown {
		t.Fatalf("handleCommand: shutdown=%v err=%v", shutdown, err)
	}

	select {
	case cmd := <-e.cmdCh:
		if cmd.kind != cmdNewSnapshot || cmd.snapshot.LastUpdateID != 777 {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cmdNewSnapshot")
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{20, 30 * time.Second},
	}
	for _, tc := range cases {
		got := backoffDelay(tc.attempt, 100, 30000)
		if got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestShutdownEnqueuesCommand(t *testing.T) {
	t.Parallel()
	e := testEngine(t, "")
	e.Shutdown()

	select {
	case cmd := <-e.cmdCh:
		if cmd.kind != cmdShutdown {
			t.Fatalf("kind = %v, want cmdShutdown", cmd.kind)
		}
	default:
		t.Fatal("expected a shutdown command to be enqueued")
	}
}

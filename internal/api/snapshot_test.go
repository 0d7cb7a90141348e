package api

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testScaler() *book.Scaler {
	return book.NewScaler(decimal.RequireFromString("0.01"), decimal.RequireFromString("0.001"), testLogger())
}

func testState(t *testing.T) *book.MarketState {
	t.Helper()
	scaler := testScaler()
	snapshot := book.DepthSnapshot{
		LastUpdateID: 1,
		Bids:         [][2]string{{"100.00", "1.0"}},
		Asks:         [][2]string{{"101.00", "1.0"}},
	}
	ob := book.FromSnapshot(snapshot, scaler, testLogger())
	return book.NewMarketState(ob, "BTCUSDT", scaler)
}

func TestBuildSnapshotRendersDecimalFields(t *testing.T) {
	t.Parallel()
	state := testState(t)
	scaler := testScaler()
	cfg := config.Default()

	snap := BuildSnapshot(state, "BTCUSDT", scaler, cfg)

	if snap.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", snap.Symbol)
	}
	if !snap.IsSyncing {
		t.Error("expected a freshly seeded snapshot to still be syncing")
	}
	if len(snap.Bids) != 1 || snap.Bids[0].Price != "100" {
		t.Errorf("bids = %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != "101" {
		t.Errorf("asks = %+v", snap.Asks)
	}
}

func TestRecentTradeViewsTruncatesToDisplayCountNewestFirst(t *testing.T) {
	t.Parallel()
	trades := []book.Trade{
		{TradeID: 1, Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1), TradeTimeMs: 1},
		{TradeID: 2, Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(1), TradeTimeMs: 2},
		{TradeID: 3, Price: decimal.NewFromInt(3), Quantity: decimal.NewFromInt(1), TradeTimeMs: 3},
	}

	views := recentTradeViews(trades, 2)
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].TradeID != 3 || views[1].TradeID != 2 {
		t.Errorf("expected newest-first order, got %d, %d", views[0].TradeID, views[1].TradeID)
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	t.Parallel()
	state := testState(t)
	h := NewHandlers(state, "BTCUSDT", testScaler(), config.Default(), testLogger())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

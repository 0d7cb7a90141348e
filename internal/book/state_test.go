package book

import "testing"

func TestNewMarketStateStartsSyncing(t *testing.T) {
	t.Parallel()
	ms := NewMarketState(NewOrderBook(), "BTCUSDT", testScaler())

	snap := ms.Load()
	if !snap.IsSyncing {
		t.Fatal("expected initial snapshot to be syncing")
	}
	if snap.Book == nil || snap.Metrics == nil || snap.RecentTrades == nil || snap.SignificantTrades == nil {
		t.Fatal("expected all composite fields initialized")
	}
}

func TestMarketStatePublishIsVisibleToLoad(t *testing.T) {
	t.Parallel()
	scaler := testScaler()
	ms := NewMarketState(NewOrderBook(), "BTCUSDT", scaler)

	fresh := &MarketSnapshot{
		Book:              FromSnapshot(snapFixture(), scaler, nil),
		Metrics:           &MarketMetrics{},
		RecentTrades:      NewRecentTrades(0),
		SignificantTrades: NewSignificantTrades(120),
		IsSyncing:         false,
	}
	ms.Publish(fresh)

	got := ms.Load()
	if got.IsSyncing {
		t.Fatal("expected published snapshot to not be syncing")
	}
	bid, _, ok := got.Book.BestBid()
	if !ok || scaler.TicksToPrice(bid).String() != "99.5" {
		t.Fatalf("loaded snapshot missing expected book state, bid ok=%v", ok)
	}
}

func TestMarketStateLoadReturnsIndependentSnapshotsAcrossPublishes(t *testing.T) {
	t.Parallel()
	scaler := testScaler()
	ms := NewMarketState(NewOrderBook(), "BTCUSDT", scaler)

	first := ms.Load()

	ms.Publish(&MarketSnapshot{
		Book:              FromSnapshot(snapFixture(), scaler, nil),
		Metrics:           &MarketMetrics{},
		RecentTrades:      NewRecentTrades(0),
		SignificantTrades: NewSignificantTrades(120),
		IsSyncing:         false,
	})

	second := ms.Load()

	if first == second {
		t.Fatal("expected distinct snapshot pointers across publishes")
	}
	if !first.IsSyncing {
		t.Fatal("expected the earlier-held reference to retain its original is_syncing value")
	}
}

func TestTopNDepthConvertsTicksToDecimal(t *testing.T) {
	t.Parallel()
	scaler := testScaler()
	snap := &MarketSnapshot{Book: FromSnapshot(snapFixture(), scaler, nil)}

	bids, asks := snap.TopNDepth(1, scaler)
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("expected 1 level per side, got bids=%d asks=%d", len(bids), len(asks))
	}
	if bids[0].Price.String() != "99.5" {
		t.Errorf("top bid price = %v, want 99.5", bids[0].Price)
	}
	if asks[0].Price.String() != "100.5" {
		t.Errorf("top ask price = %v, want 100.5", asks[0].Price)
	}
}

package book

import (
	"sync/atomic"
	"unsafe"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the immutable, point-in-time composite published by the
// engine: an order book, its derived metrics, the trailing trade windows,
// and whether the view is currently trustworthy. Every mutating event
// produces a fresh MarketSnapshot; the old one is reclaimed by the garbage
// collector once the last reader drops it (Go has no ArcSwap, so a bare
// atomic pointer over an immutable value plays the same role).
type MarketSnapshot struct {
	Book              *OrderBook
	Metrics           *MarketMetrics
	RecentTrades      *RecentTrades
	SignificantTrades *SignificantTrades
	IsSyncing         bool
}

// TopNDepth returns the top n levels on each side converted from ticks back
// to decimal price/quantity pairs.
func (s *MarketSnapshot) TopNDepth(n int, scaler *Scaler) (bids, asks []DepthLevel) {
	rawBids, rawAsks := s.Book.TopNDepth(n)

	bids = make([]DepthLevel, len(rawBids))
	for i, l := range rawBids {
		bids[i] = DepthLevel{Price: scaler.TicksToPrice(l.priceTicks), Quantity: scaler.TicksToQty(l.qtyTicks)}
	}

	asks = make([]DepthLevel, len(rawAsks))
	for i, l := range rawAsks {
		asks[i] = DepthLevel{Price: scaler.TicksToPrice(l.priceTicks), Quantity: scaler.TicksToQty(l.qtyTicks)}
	}

	return bids, asks
}

// DepthLevel is a single decimal-denominated (price, quantity) pair, the
// reader-facing counterpart to the internal tick-scaled priceLevel.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// MarketState holds the atomic pointer to the currently published
// MarketSnapshot. The Engine is the sole writer; any number of readers may
// call Load concurrently without blocking it or each other.
type MarketState struct {
	snapshot unsafe.Pointer // *MarketSnapshot
	Symbol   string
	Scaler   *Scaler
}

// NewMarketState builds a MarketState seeded with an initial book, marked
// is_syncing until the first successful delta batch clears it.
func NewMarketState(initialBook *OrderBook, symbol string, scaler *Scaler) *MarketState {
	ms := &MarketState{Symbol: symbol, Scaler: scaler}
	initial := &MarketSnapshot{
		Book:              initialBook,
		Metrics:           &MarketMetrics{},
		RecentTrades:      NewRecentTrades(0),
		SignificantTrades: NewSignificantTrades(120),
		IsSyncing:         true,
	}
	atomic.StorePointer(&ms.snapshot, unsafe.Pointer(initial))
	return ms
}

// Load returns the most recently published snapshot. Lock-free: safe to
// call from any number of goroutines concurrently with Publish.
func (ms *MarketState) Load() *MarketSnapshot {
	return (*MarketSnapshot)(atomic.LoadPointer(&ms.snapshot))
}

// Publish swaps in a new snapshot. Only the engine goroutine may call this.
func (ms *MarketState) Publish(snapshot *MarketSnapshot) {
	atomic.StorePointer(&ms.snapshot, unsafe.Pointer(snapshot))
}

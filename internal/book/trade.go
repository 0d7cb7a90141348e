package book

import "github.com/shopspring/decimal"

// Side is the aggressor side of a trade.
type Side int

const (
	// Buy means the taker bought (the resting maker order was an ask).
	Buy Side = iota
	// Sell means the taker sold (the resting maker order was a bid).
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Trade is a single executed trade from the trade stream.
type Trade struct {
	EventTimeMs  uint64
	TradeID      uint64
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	TradeTimeMs  uint64
	IsBuyerMaker bool
}

// TradeSide returns Sell when the buyer was the resting maker (i.e. a
// seller aggressed into it), Buy otherwise.
func (t Trade) TradeSide() Side {
	if t.IsBuyerMaker {
		return Sell
	}
	return Buy
}

// SignificantTradeReason describes why a trade was flagged significant.
type SignificantTradeReason struct {
	// HighVolumePercent is the trade's quantity as a percentage of the
	// trailing recent-trades volume at detection time.
	HighVolumePercent float64
}

// SignificantTrade records a trade whose size was large relative to the
// recent trading window.
type SignificantTrade struct {
	Trade       Trade
	Notional    decimal.Decimal
	Reason      SignificantTradeReason
	DetectedAtMs uint64
}

// RecentTrades is an ordered, non-decreasing-by-trade-time window of
// trades, retained for 60s of trade-time (see DESIGN NOTES on the
// latest-trade-time-keyed eviction clock).
type RecentTrades struct {
	trades      []Trade
	totalTrades uint64
}

// NewRecentTrades returns an empty window with the given starting
// capacity hint.
func NewRecentTrades(capacityHint int) *RecentTrades {
	return &RecentTrades{trades: make([]Trade, 0, capacityHint)}
}

// RecentTradesRetentionMs is the trailing trade-time window RecentTrades
// retains. Exported so callers driving the wall-clock safety eviction
// (EvictBefore) can compute a consistent cutoff.
const RecentTradesRetentionMs = 60_000

// Push appends a trade and evicts trades older than 60s relative to the
// newest trade's trade_time_ms.
func (r *RecentTrades) Push(t Trade) {
	r.trades = append(r.trades, t)
	r.totalTrades++
	r.evict(t.TradeTimeMs)
}

func (r *RecentTrades) evict(latestTradeTimeMs uint64) {
	cutoff := int64(latestTradeTimeMs) - RecentTradesRetentionMs
	i := 0
	for i < len(r.trades) && int64(r.trades[i].TradeTimeMs) < cutoff {
		i++
	}
	if i > 0 {
		r.trades = append(r.trades[:0], r.trades[i:]...)
	}
}

// EvictBefore drops trades older than cutoffMs regardless of the latest
// trade's time. Used as a secondary wall-clock safety eviction so a
// stalled trade stream doesn't leave an arbitrarily old window resident
// forever (see DESIGN.md's open-question decision).
func (r *RecentTrades) EvictBefore(cutoffMs uint64) {
	i := 0
	for i < len(r.trades) && r.trades[i].TradeTimeMs < cutoffMs {
		i++
	}
	if i > 0 {
		r.trades = append(r.trades[:0], r.trades[i:]...)
	}
}

// Trades returns the current window, oldest first. Callers must not
// mutate the returned slice.
func (r *RecentTrades) Trades() []Trade { return r.trades }

// TotalTrades returns the unbounded monotonic trade counter.
func (r *RecentTrades) TotalTrades() uint64 { return r.totalTrades }

// Clone returns a deep, independent copy for snapshot publication.
func (r *RecentTrades) Clone() *RecentTrades {
	return &RecentTrades{
		trades:      append([]Trade(nil), r.trades...),
		totalTrades: r.totalTrades,
	}
}

// SignificantTrades is an ordered deque of detected significant trades,
// retained for a configurable duration.
type SignificantTrades struct {
	entries       []SignificantTrade
	retentionMs   int64
}

// NewSignificantTrades returns an empty deque with the given retention
// window.
func NewSignificantTrades(retentionSecs int64) *SignificantTrades {
	return &SignificantTrades{retentionMs: retentionSecs * 1000}
}

// Push appends a significant trade and evicts entries older than the
// retention window relative to detectedAtMs.
func (st *SignificantTrades) Push(entry SignificantTrade) {
	st.entries = append(st.entries, entry)
	cutoff := int64(entry.DetectedAtMs) - st.retentionMs
	i := 0
	for i < len(st.entries) && int64(st.entries[i].Trade.TradeTimeMs) < cutoff {
		i++
	}
	if i > 0 {
		st.entries = append(st.entries[:0], st.entries[i:]...)
	}
}

// Entries returns the current deque, oldest first.
func (st *SignificantTrades) Entries() []SignificantTrade { return st.entries }

// Clone returns a deep, independent copy for snapshot publication.
func (st *SignificantTrades) Clone() *SignificantTrades {
	return &SignificantTrades{
		entries:     append([]SignificantTrade(nil), st.entries...),
		retentionMs: st.retentionMs,
	}
}

// DetectSignificant implements the significant-trade-detection rule: a
// trade whose quantity is at least volumePct of the trailing window's
// total volume (computed before this trade is added) is flagged.
func DetectSignificant(recent *RecentTrades, t Trade, volumePct float64) (SignificantTrade, bool) {
	var windowVolume decimal.Decimal
	for _, existing := range recent.Trades() {
		windowVolume = windowVolume.Add(existing.Quantity)
	}
	if windowVolume.IsZero() {
		return SignificantTrade{}, false
	}

	ratio, _ := t.Quantity.Div(windowVolume).Float64()
	if ratio < volumePct {
		return SignificantTrade{}, false
	}

	return SignificantTrade{
		Trade:        t,
		Notional:     t.Price.Mul(t.Quantity),
		Reason:       SignificantTradeReason{HighVolumePercent: ratio * 100},
		DetectedAtMs: t.EventTimeMs,
	}, true
}

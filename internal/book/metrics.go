package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// computeLatencies returns (total_lag_ms, network_lag_ms) for an event
// observed at eventTimeMs and received at receivedAt. Both subtractions
// saturate at zero: a clock skew or a negative processing duration must
// never underflow into a huge unsigned value.
func computeLatencies(eventTimeMs uint64, receivedAt time.Time, nowMs uint64) (totalLagMs, networkLagMs uint64) {
	totalLagMs = saturatingSub(nowMs, eventTimeMs)
	processingMs := uint64(time.Since(receivedAt).Milliseconds())
	networkLagMs = saturatingSub(totalLagMs, processingMs)
	return totalLagMs, networkLagMs
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// MarketMetrics holds the derived microstructure metrics published
// alongside a MarketSnapshot. All fields are optional (zero-valued when
// not applicable) rather than pointers, paired with an explicit bool
// where "absent" and "zero" must be distinguished.
type MarketMetrics struct {
	// Orderbook metrics.
	Spread          decimal.Decimal
	HasSpread       bool
	MidPrice        decimal.Decimal
	HasMidPrice     bool
	ImbalanceRatio  float64
	HasImbalance    bool

	// Trade metrics.
	LastPrice     decimal.Decimal
	HasLastPrice  bool
	LastQty       decimal.Decimal
	HasLastQty    bool
	Volume1m      decimal.Decimal
	TradeCount1m  uint64
	BuyRatio1m    float64
	HasBuyRatio1m bool
	VWAP1m        decimal.Decimal
	HasVWAP1m     bool
	TotalTrades   uint64

	// System metrics.
	UpdatesPerSecond float64

	// Latency tracking.
	OrderbookLagMs        uint64
	OrderbookNetworkLagMs uint64
	TradeLagMs            uint64
	TradeNetworkLagMs     uint64
}

// ComputeBookMetrics refreshes the orderbook-derived fields in place from
// the current book state. nowMs is the caller-supplied wall-clock time
// (threaded through rather than read internally, so total lag is
// deterministic and testable; network lag still measures time.Since
// receivedAt).
func (m *MarketMetrics) ComputeBookMetrics(ob *OrderBook, scaler *Scaler, imbalanceDepthLevels int, eventTimeMs uint64, receivedAt time.Time, nowMs uint64) {
	if spreadTicks, ok := ob.Spread(); ok && spreadTicks >= 0 {
		m.Spread = scaler.TicksToPrice(uint64(spreadTicks))
		m.HasSpread = true
	} else {
		m.HasSpread = false
	}

	if midTicks, ok := ob.MidPrice(); ok {
		m.MidPrice = scaler.TicksToPrice(midTicks)
		m.HasMidPrice = true
	} else {
		m.HasMidPrice = false
	}

	if ratio, ok := ob.ImbalanceRatio(imbalanceDepthLevels); ok {
		m.ImbalanceRatio = ratio
		m.HasImbalance = true
	} else {
		m.HasImbalance = false
	}

	m.OrderbookLagMs, m.OrderbookNetworkLagMs = computeLatencies(eventTimeMs, receivedAt, nowMs)
}

// ComputeTradeMetrics refreshes the trade-derived fields in place from the
// current recent-trades window.
func (m *MarketMetrics) ComputeTradeMetrics(recent *RecentTrades, eventTimeMs uint64, receivedAt time.Time, nowMs uint64) {
	trades := recent.Trades()

	if n := len(trades); n > 0 {
		last := trades[n-1]
		m.LastPrice, m.HasLastPrice = last.Price, true
		m.LastQty, m.HasLastQty = last.Quantity, true
	} else {
		m.HasLastPrice, m.HasLastQty = false, false
	}

	m.TradeCount1m = uint64(len(trades))

	var volume, notional decimal.Decimal
	var buyCount uint64
	for _, t := range trades {
		volume = volume.Add(t.Quantity)
		notional = notional.Add(t.Quantity.Mul(t.Price))
		if t.TradeSide() == Buy {
			buyCount++
		}
	}
	m.Volume1m = volume

	if m.TradeCount1m > 0 {
		m.BuyRatio1m = float64(buyCount) / float64(m.TradeCount1m)
		m.HasBuyRatio1m = true
	} else {
		m.HasBuyRatio1m = false
	}

	if volume.IsPositive() {
		m.VWAP1m = notional.Div(volume)
		m.HasVWAP1m = true
	} else {
		m.HasVWAP1m = false
	}

	m.TotalTrades = recent.TotalTrades()

	m.TradeLagMs, m.TradeNetworkLagMs = computeLatencies(eventTimeMs, receivedAt, nowMs)
}

// UpdatePerformanceMetrics sets the updates-per-second system metric.
func (m *MarketMetrics) UpdatePerformanceMetrics(updatesPerSecond float64) {
	m.UpdatesPerSecond = updatesPerSecond
}

// Clone returns an independent copy, used when publishing an immutable
// snapshot.
func (m *MarketMetrics) Clone() *MarketMetrics {
	clone := *m
	return &clone
}

package api

import (
	"time"

	"orderbook-engine/internal/book"
	"orderbook-engine/internal/config"
)

// MarketStateProvider is the read-only view the debug server needs: the
// atomic-pointer cell the engine publishes into. Only Load is ever called;
// the server never mutates anything behind it.
type MarketStateProvider interface {
	Load() *book.MarketSnapshot
}

// DepthLevelView is the JSON-facing decimal-string form of a DepthLevel.
type DepthLevelView struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// TradeView is the JSON-facing form of a trade.
type TradeView struct {
	TradeID      uint64 `json:"trade_id"`
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	Side         string `json:"side"`
	TradeTimeMs  uint64 `json:"trade_time_ms"`
	IsBuyerMaker bool   `json:"is_buyer_maker"`
}

// SignificantTradeView is the JSON-facing form of a flagged trade.
type SignificantTradeView struct {
	Trade             TradeView `json:"trade"`
	Notional          string    `json:"notional"`
	HighVolumePercent float64   `json:"high_volume_percent"`
	DetectedAtMs      uint64    `json:"detected_at_ms"`
}

// MetricsView mirrors book.MarketMetrics with decimal fields rendered as
// strings, the json-friendly counterpart of the internal type.
type MetricsView struct {
	Spread           string  `json:"spread,omitempty"`
	MidPrice         string  `json:"mid_price,omitempty"`
	ImbalanceRatio   float64 `json:"imbalance_ratio,omitempty"`
	LastPrice        string  `json:"last_price,omitempty"`
	LastQty          string  `json:"last_qty,omitempty"`
	Volume1m         string  `json:"volume_1m"`
	TradeCount1m     uint64  `json:"trade_count_1m"`
	BuyRatio1m       float64 `json:"buy_ratio_1m,omitempty"`
	VWAP1m           string  `json:"vwap_1m,omitempty"`
	TotalTrades      uint64  `json:"total_trades"`
	UpdatesPerSecond float64 `json:"updates_per_second"`

	OrderbookLagMs        uint64 `json:"orderbook_lag_ms"`
	OrderbookNetworkLagMs uint64 `json:"orderbook_network_lag_ms"`
	TradeLagMs            uint64 `json:"trade_lag_ms"`
	TradeNetworkLagMs     uint64 `json:"trade_network_lag_ms"`
}

// Snapshot is the JSON body served at /api/snapshot: a decimal-rendered,
// display-truncated view of the currently published MarketSnapshot.
type Snapshot struct {
	Timestamp         time.Time              `json:"timestamp"`
	Symbol            string                 `json:"symbol"`
	IsSyncing         bool                   `json:"is_syncing"`
	Bids              []DepthLevelView       `json:"bids"`
	Asks              []DepthLevelView       `json:"asks"`
	Metrics           MetricsView            `json:"metrics"`
	RecentTrades      []TradeView            `json:"recent_trades"`
	SignificantTrades []SignificantTradeView `json:"significant_trades"`
}

// BuildSnapshot converts the engine's internal, tick-scaled MarketSnapshot
// into the decimal-stringed view served over HTTP, truncated to the
// display counts from config.
func BuildSnapshot(state MarketStateProvider, symbol string, scaler *book.Scaler, cfg config.Config) Snapshot {
	snap := state.Load()

	bids, asks := snap.TopNDepth(cfg.OrderbookDepthDisplayCount, scaler)

	out := Snapshot{
		Timestamp:         time.Now(),
		Symbol:            symbol,
		IsSyncing:         snap.IsSyncing,
		Bids:              depthLevelViews(bids),
		Asks:              depthLevelViews(asks),
		Metrics:           metricsView(snap.Metrics),
		RecentTrades:      recentTradeViews(snap.RecentTrades.Trades(), cfg.RecentTradesDisplayCount),
		SignificantTrades: significantTradeViews(snap.SignificantTrades.Entries(), cfg.SignificantTradesDisplayCount),
	}
	return out
}

func depthLevelViews(levels []book.DepthLevel) []DepthLevelView {
	out := make([]DepthLevelView, len(levels))
	for i, l := range levels {
		out[i] = DepthLevelView{Price: l.Price.String(), Quantity: l.Quantity.String()}
	}
	return out
}

func tradeView(t book.Trade) TradeView {
	return TradeView{
		TradeID:      t.TradeID,
		Price:        t.Price.String(),
		Quantity:     t.Quantity.String(),
		Side:         t.TradeSide().String(),
		TradeTimeMs:  t.TradeTimeMs,
		IsBuyerMaker: t.IsBuyerMaker,
	}
}

// recentTradeViews returns the newest-first, display-count-truncated tail.
func recentTradeViews(trades []book.Trade, displayCount int) []TradeView {
	start := 0
	if len(trades) > displayCount {
		start = len(trades) - displayCount
	}
	tail := trades[start:]
	out := make([]TradeView, len(tail))
	for i := range tail {
		out[i] = tradeView(tail[len(tail)-1-i])
	}
	return out
}

func significantTradeViews(entries []book.SignificantTrade, displayCount int) []SignificantTradeView {
	start := 0
	if len(entries) > displayCount {
		start = len(entries) - displayCount
	}
	tail := entries[start:]
	out := make([]SignificantTradeView, len(tail))
	for i := range tail {
		e := tail[len(tail)-1-i]
		out[i] = SignificantTradeView{
			Trade:             tradeView(e.Trade),
			Notional:          e.Notional.String(),
			HighVolumePercent: e.Reason.HighVolumePercent,
			DetectedAtMs:      e.DetectedAtMs,
		}
	}
	return out
}

func decimalOrEmpty(has bool, d interface{ String() string }) string {
	if !has {
		return ""
	}
	return d.String()
}

func metricsView(m *book.MarketMetrics) MetricsView {
	return MetricsView{
		Spread:                decimalOrEmpty(m.HasSpread, m.Spread),
		MidPrice:              decimalOrEmpty(m.HasMidPrice, m.MidPrice),
		ImbalanceRatio:        m.ImbalanceRatio,
		LastPrice:             decimalOrEmpty(m.HasLastPrice, m.LastPrice),
		LastQty:               decimalOrEmpty(m.HasLastQty, m.LastQty),
		Volume1m:              m.Volume1m.String(),
		TradeCount1m:          m.TradeCount1m,
		BuyRatio1m:            m.BuyRatio1m,
		VWAP1m:                decimalOrEmpty(m.HasVWAP1m, m.VWAP1m),
		TotalTrades:           m.TotalTrades,
		UpdatesPerSecond:      m.UpdatesPerSecond,
		OrderbookLagMs:        m.OrderbookLagMs,
		OrderbookNetworkLagMs: m.OrderbookNetworkLagMs,
		TradeLagMs:            m.TradeLagMs,
		TradeNetworkLagMs:     m.TradeNetworkLagMs,
	}
}

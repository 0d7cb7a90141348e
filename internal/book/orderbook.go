package book

import (
	"log/slog"
	"sort"
)

// priceLevel is a single resting (price, qty) pair, both in integer ticks.
type priceLevel struct {
	priceTicks uint64
	qtyTicks   uint64
}

// OrderBook is a two-sided, integer-tick limit order book. Both sides are
// kept as flat slices sorted ascending by priceTicks: bids are read from
// the back (highest price = best bid), asks from the front (lowest price
// = best ask). Go's standard library has no ordered map, and insert/delete
// via sort.Search + slice splice is the same asymptotic cost as the O(n)
// clone every publish already has to pay (see DESIGN NOTES), so a sorted
// slice is the simplest container that meets the contract.
type OrderBook struct {
	bids []priceLevel // ascending by priceTicks
	asks []priceLevel // ascending by priceTicks
}

// DepthSnapshot is the venue's one-shot REST depth response, decimal
// strings for price and quantity on each side.
type DepthSnapshot struct {
	LastUpdateID uint64
	Bids         [][2]string
	Asks         [][2]string
}

// DepthUpdate is a single incremental delta from the depth-diff stream.
type DepthUpdate struct {
	EventTimeMs    uint64
	FirstUpdateID  uint64 // U
	FinalUpdateID  uint64 // u
	Bids           [][2]string
	Asks           [][2]string
}

// NewOrderBook returns an empty book, used only as a placeholder before
// the first snapshot arrives.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// FromSnapshot builds a fresh OrderBook from a depth snapshot. Levels with
// unparseable prices or quantities are skipped with a warning; misaligned
// values are rounded per the Scaler's contract.
func FromSnapshot(snapshot DepthSnapshot, scaler *Scaler, logger *slog.Logger) *OrderBook {
	if logger == nil {
		logger = slog.Default()
	}
	ob := &OrderBook{
		bids: make([]priceLevel, 0, len(snapshot.Bids)),
		asks: make([]priceLevel, 0, len(snapshot.Asks)),
	}

	for _, lvl := range snapshot.Bids {
		pt, qt, ok := decodeLevel(lvl, scaler, logger)
		if !ok {
			continue
		}
		ob.bids = append(ob.bids, priceLevel{priceTicks: pt, qtyTicks: qt})
	}
	for _, lvl := range snapshot.Asks {
		pt, qt, ok := decodeLevel(lvl, scaler, logger)
		if !ok {
			continue
		}
		ob.asks = append(ob.asks, priceLevel{priceTicks: pt, qtyTicks: qt})
	}

	sort.Slice(ob.bids, func(i, j int) bool { return ob.bids[i].priceTicks < ob.bids[j].priceTicks })
	sort.Slice(ob.asks, func(i, j int) bool { return ob.asks[i].priceTicks < ob.asks[j].priceTicks })

	return ob
}

func decodeLevel(lvl [2]string, scaler *Scaler, logger *slog.Logger) (priceTicks, qtyTicks uint64, ok bool) {
	pt, ok := scaler.PriceToTicks(lvl[0])
	if !ok {
		logger.Warn("skipping level with unparseable price", "price", lvl[0])
		return 0, 0, false
	}
	qt, ok := scaler.QtyToTicks(lvl[1])
	if !ok {
		logger.Warn("skipping level with unparseable qty", "qty", lvl[1])
		return 0, 0, false
	}
	return pt, qt, true
}

// ApplyUpdate applies a single delta's level changes to both sides: a
// zero-quantity level removes the price, otherwise it's inserted or
// overwritten in place.
func (ob *OrderBook) ApplyUpdate(update *DepthUpdate, scaler *Scaler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, lvl := range update.Bids {
		pt, qt, ok := decodeLevel(lvl, scaler, logger)
		if !ok {
			continue
		}
		ob.bids = upsert(ob.bids, pt, qt)
	}
	for _, lvl := range update.Asks {
		pt, qt, ok := decodeLevel(lvl, scaler, logger)
		if !ok {
			continue
		}
		ob.asks = upsert(ob.asks, pt, qt)
	}
}

// upsert inserts, overwrites, or (for qtyTicks==0) removes priceTicks in a
// slice kept sorted ascending by priceTicks.
func upsert(levels []priceLevel, priceTicks, qtyTicks uint64) []priceLevel {
	i := sort.Search(len(levels), func(i int) bool { return levels[i].priceTicks >= priceTicks })

	found := i < len(levels) && levels[i].priceTicks == priceTicks

	if qtyTicks == 0 {
		if found {
			levels = append(levels[:i], levels[i+1:]...)
		}
		return levels
	}

	if found {
		levels[i].qtyTicks = qtyTicks
		return levels
	}

	levels = append(levels, priceLevel{})
	copy(levels[i+1:], levels[i:])
	levels[i] = priceLevel{priceTicks: priceTicks, qtyTicks: qtyTicks}
	return levels
}

// BestBid returns the highest resting bid price and its quantity, both in
// ticks. ok is false if the bid side is empty.
func (ob *OrderBook) BestBid() (priceTicks, qtyTicks uint64, ok bool) {
	if len(ob.bids) == 0 {
		return 0, 0, false
	}
	best := ob.bids[len(ob.bids)-1]
	return best.priceTicks, best.qtyTicks, true
}

// BestAsk returns the lowest resting ask price and its quantity, both in
// ticks. ok is false if the ask side is empty.
func (ob *OrderBook) BestAsk() (priceTicks, qtyTicks uint64, ok bool) {
	if len(ob.asks) == 0 {
		return 0, 0, false
	}
	best := ob.asks[0]
	return best.priceTicks, best.qtyTicks, true
}

// Spread returns ask - bid in ticks. ok is false if either side is empty.
// A negative result (crossed book) can occur transiently while the
// delta stream is stale ahead of a re-seed; callers must not treat it as
// impossible.
func (ob *OrderBook) Spread() (ticks int64, ok bool) {
	bid, _, bidOK := ob.BestBid()
	ask, _, askOK := ob.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return int64(ask) - int64(bid), true
}

// MidPrice returns (ask + bid) / 2 in ticks, integer division. ok is false
// if either side is empty.
func (ob *OrderBook) MidPrice() (ticks uint64, ok bool) {
	bid, _, bidOK := ob.BestBid()
	ask, _, askOK := ob.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return (ask + bid) / 2, true
}

// TopNDepth returns the n best levels on each side, in price-improving
// order (best bid/ask first).
func (ob *OrderBook) TopNDepth(n int) (bids, asks []priceLevel) {
	bids = make([]priceLevel, 0, n)
	for i := len(ob.bids) - 1; i >= 0 && len(bids) < n; i-- {
		bids = append(bids, ob.bids[i])
	}
	asks = make([]priceLevel, 0, n)
	for i := 0; i < len(ob.asks) && len(asks) < n; i++ {
		asks = append(asks, ob.asks[i])
	}
	return bids, asks
}

// ImbalanceRatio returns bid_volume / (bid_volume + ask_volume) summed
// over the top `levels` on each side. ok is false if either side is empty
// within that depth, or total volume is zero.
func (ob *OrderBook) ImbalanceRatio(levels int) (ratio float64, ok bool) {
	bids, asks := ob.TopNDepth(levels)
	if len(bids) == 0 || len(asks) == 0 {
		return 0, false
	}

	var bidVol, askVol uint64
	for _, l := range bids {
		bidVol += l.qtyTicks
	}
	for _, l := range asks {
		askVol += l.qtyTicks
	}

	total := bidVol + askVol
	if total == 0 {
		return 0, false
	}
	return float64(bidVol) / float64(total), true
}

// Clone returns a deep copy, used when publishing an immutable snapshot.
func (ob *OrderBook) Clone() *OrderBook {
	clone := &OrderBook{
		bids: append([]priceLevel(nil), ob.bids...),
		asks: append([]priceLevel(nil), ob.asks...),
	}
	return clone
}

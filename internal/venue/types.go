package venue

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"orderbook-engine/internal/book"
)

func parseDecimal(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// DepthSnapshotResponse is the REST response body for GET /api/v3/depth.
type DepthSnapshotResponse struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// ToBook converts the wire response into the book package's venue-agnostic
// DepthSnapshot.
func (r DepthSnapshotResponse) ToBook() book.DepthSnapshot {
	return book.DepthSnapshot{
		LastUpdateID: r.LastUpdateID,
		Bids:         r.Bids,
		Asks:         r.Asks,
	}
}

// APIError is the error body the exchange returns on a non-2xx REST
// response: {"code": -1121, "msg": "Invalid symbol."}.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("venue error %d: %s", e.Code, e.Msg)
}

// ExchangeInfoResponse is the REST response body for GET
// /api/v3/exchangeInfo, trimmed to the fields this system uses.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo carries one symbol's trading filters.
type SymbolInfo struct {
	Symbol  string   `json:"symbol"`
	Filters []Filter `json:"filters"`
}

// Filter is a single entry in a symbol's filter list. Only the fields used
// by the two filter types this system reads (PRICE_FILTER, LOT_SIZE) are
// populated; others are ignored by the JSON decoder.
type Filter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

// TickAndStepSize extracts tick_size from PRICE_FILTER and step_size from
// LOT_SIZE for the given symbol. ok is false if the symbol or either filter
// is missing.
func (r ExchangeInfoResponse) TickAndStepSize(symbol string) (tickSize, stepSize string, ok bool) {
	for _, s := range r.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var haveTick, haveStep bool
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				tickSize, haveTick = f.TickSize, true
			case "LOT_SIZE":
				stepSize, haveStep = f.StepSize, true
			}
		}
		return tickSize, stepSize, haveTick && haveStep
	}
	return "", "", false
}

// CombinedStreamEnvelope wraps every message on the combined WebSocket
// stream: {"stream": "<name>", "data": <payload>}. Data is left as raw JSON
// until the stream name tells us which concrete type to decode into.
type CombinedStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DepthUpdateMessage is the payload of a `<symbol>@depth@100ms` stream
// event.
type DepthUpdateMessage struct {
	EventType     string      `json:"e"`
	EventTimeMs   uint64      `json:"E"`
	Symbol        string      `json:"s"`
	FirstUpdateID uint64      `json:"U"`
	FinalUpdateID uint64      `json:"u"`
	Bids          [][2]string `json:"b"`
	Asks          [][2]string `json:"a"`
}

// ToBook converts the wire message into the book package's venue-agnostic
// DepthUpdate.
func (m DepthUpdateMessage) ToBook() *book.DepthUpdate {
	return &book.DepthUpdate{
		EventTimeMs:   m.EventTimeMs,
		FirstUpdateID: m.FirstUpdateID,
		FinalUpdateID: m.FinalUpdateID,
		Bids:          m.Bids,
		Asks:          m.Asks,
	}
}

// TradeMessage is the payload of a `<symbol>@trade` stream event.
type TradeMessage struct {
	EventType    string `json:"e"`
	EventTimeMs  uint64 `json:"E"`
	Symbol       string `json:"s"`
	TradeID      uint64 `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTimeMs  uint64 `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// ToBook converts the wire message into the book package's venue-agnostic
// Trade. ok is false if either numeric field fails to parse.
func (m TradeMessage) ToBook() (book.Trade, bool) {
	price, ok := parseDecimal(m.Price)
	if !ok {
		return book.Trade{}, false
	}
	qty, ok := parseDecimal(m.Quantity)
	if !ok {
		return book.Trade{}, false
	}
	return book.Trade{
		EventTimeMs:  m.EventTimeMs,
		TradeID:      m.TradeID,
		Price:        price,
		Quantity:     qty,
		TradeTimeMs:  m.TradeTimeMs,
		IsBuyerMaker: m.IsBuyerMaker,
	}, true
}

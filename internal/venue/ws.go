// ws.go implements the combined depth+trade WebSocket stream.
//
// A single connection carries both the depth-delta and trade streams,
// multiplexed by the exchange into a `{stream, data}` envelope. Connect
// makes one connection attempt and blocks until it fails or ctx is done;
// reconnection and its exponential backoff are the engine's responsibility,
// since on every reconnect the caller must also reset its sync state and
// re-fetch a snapshot, not just redial.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"orderbook-engine/internal/book"
)

const (
	readTimeout     = 60 * time.Second // no ping on this stream; a silent connection reconnects
	depthBufferSize = 256
	tradeBufferSize = 256
)

const defaultStreamHost = "stream.binance.com:9443"

// DepthEvent pairs a decoded depth-delta with the time it was read off the
// socket, used downstream to compute network lag.
type DepthEvent struct {
	Update     *book.DepthUpdate
	ReceivedAt time.Time
}

// TradeEvent pairs a decoded trade message with the time it was read off
// the socket. Conversion to book.Trade happens in the engine, where the
// scaler is available.
type TradeEvent struct {
	Message    TradeMessage
	ReceivedAt time.Time
}

// StreamClient manages the combined WebSocket connection for one symbol.
type StreamClient struct {
	url string

	depthCh chan DepthEvent
	tradeCh chan TradeEvent

	logger *slog.Logger
}

// NewStreamClient builds a combined-stream client for symbol against host
// (empty falls back to the production stream host).
func NewStreamClient(host, symbol string, logger *slog.Logger) *StreamClient {
	if host == "" {
		host = defaultStreamHost
	}
	if logger == nil {
		logger = slog.Default()
	}
	lower := strings.ToLower(symbol)
	url := fmt.Sprintf("wss://%s/stream?streams=%s@depth@100ms/%s@trade", host, lower, lower)

	return &StreamClient{
		url:     url,
		depthCh: make(chan DepthEvent, depthBufferSize),
		tradeCh: make(chan TradeEvent, tradeBufferSize),
		logger:  logger.With("component", "stream"),
	}
}

// DepthEvents returns a read-only channel of decoded depth deltas.
func (c *StreamClient) DepthEvents() <-chan DepthEvent { return c.depthCh }

// TradeEvents returns a read-only channel of decoded trades.
func (c *StreamClient) TradeEvents() <-chan TradeEvent { return c.tradeCh }

// Connect dials once and reads until the connection fails or ctx is
// cancelled. Returns ctx.Err() when cancellation is seen between messages,
// otherwise the read/dial error that ended the connection; a read already
// blocked on the socket is not interrupted by cancellation and ends at the
// read deadline. Callers that want to stay connected must call Connect
// again after their own backoff.
func (c *StreamClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.logger.Info("stream connected", "url", c.url)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		c.dispatchMessage(msg, time.Now())
	}
}

func (c *StreamClient) dispatchMessage(data []byte, receivedAt time.Time) {
	var envelope CombinedStreamEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logger.Debug("ignoring non-json stream message", "data", string(data))
		return
	}

	switch {
	case strings.Contains(envelope.Stream, "@depth"):
		var msg DepthUpdateMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			c.logger.Error("unmarshal depth update", "error", err)
			return
		}
		select {
		case c.depthCh <- DepthEvent{Update: msg.ToBook(), ReceivedAt: receivedAt}:
		default:
			c.logger.Warn("depth channel full, dropping update", "final_update_id", msg.FinalUpdateID)
		}

	case strings.Contains(envelope.Stream, "@trade"):
		var msg TradeMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			c.logger.Error("unmarshal trade", "error", err)
			return
		}
		select {
		case c.tradeCh <- TradeEvent{Message: msg, ReceivedAt: receivedAt}:
		default:
			c.logger.Warn("trade channel full, dropping trade", "trade_id", msg.TradeID)
		}

	default:
		c.logger.Debug("unknown stream name", "stream", envelope.Stream)
	}
}

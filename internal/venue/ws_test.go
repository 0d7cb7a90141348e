package venue

import (
	"testing"
	"time"
)

func TestDispatchMessageRoutesDepthUpdate(t *testing.T) {
	t.Parallel()
	c := NewStreamClient("", "BTCUSDT", testLogger())

	payload := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":123456789,"s":"BTCUSDT","U":157,"u":160,"b":[["0.0024","10"]],"a":[["0.0026","100"]]}}`)
	c.dispatchMessage(payload, time.Now())

	select {
	case evt := <-c.DepthEvents():
		if evt.Update.FirstUpdateID != 157 || evt.Update.FinalUpdateID != 160 {
			t.Errorf("update ids = %d/%d, want 157/160", evt.Update.FirstUpdateID, evt.Update.FinalUpdateID)
		}
		if len(evt.Update.Bids) != 1 || evt.Update.Bids[0][0] != "0.0024" {
			t.Errorf("bids = %v", evt.Update.Bids)
		}
	default:
		t.Fatal("expected a depth event to be queued")
	}
}

func TestDispatchMessageRoutesTrade(t *testing.T) {
	t.Parallel()
	c := NewStreamClient("", "BTCUSDT", testLogger())

	payload := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","E":123456789,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","T":123456785,"m":true}}`)
	c.dispatchMessage(payload, time.Now())

	select {
	case evt := <-c.TradeEvents():
		if evt.Message.TradeID != 12345 {
			t.Errorf("trade id = %d, want 12345", evt.Message.TradeID)
		}
		if !evt.Message.IsBuyerMaker {
			t.Error("expected IsBuyerMaker = true")
		}
	default:
		t.Fatal("expected a trade event to be queued")
	}
}

func TestDispatchMessageIgnoresUnknownStream(t *testing.T) {
	t.Parallel()
	c := NewStreamClient("", "BTCUSDT", testLogger())

	c.dispatchMessage([]byte(`{"stream":"btcusdt@bookTicker","data":{}}`), time.Now())

	select {
	case evt := <-c.DepthEvents():
		t.Fatalf("unexpected depth event: %+v", evt)
	case evt := <-c.TradeEvents():
		t.Fatalf("unexpected trade event: %+v", evt)
	default:
	}
}

func TestDispatchMessageIgnoresMalformedJSON(t *testing.T) {
	t.Parallel()
	c := NewStreamClient("", "BTCUSDT", testLogger())

	c.dispatchMessage([]byte("not json"), time.Now())

	select {
	case evt := <-c.DepthEvents():
		t.Fatalf("unexpected depth event: %+v", evt)
	default:
	}
}

func TestNewStreamClientBuildsCombinedURL(t *testing.T) {
	t.Parallel()
	c := NewStreamClient("stream.binance.com:9443", "BTCUSDT", testLogger())
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@depth@100ms/btcusdt@trade"
	if c.url != want {
		t.Errorf("url = %q, want %q", c.url, want)
	}
}

package venue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGetDepthSnapshotParsesResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			t.Errorf("path = %q, want /api/v3/depth", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol query = %q, want BTCUSDT", got)
		}
		fmt.Fprint(w, `{"lastUpdateId":1027024,"bids":[["4.00000000","431.00000000"]],"asks":[["4.00000200","12.00000000"]]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	snap, err := c.GetDepthSnapshot(context.Background(), "BTCUSDT", 1000)
	if err != nil {
		t.Fatalf("GetDepthSnapshot: %v", err)
	}
	if snap.LastUpdateID != 1027024 {
		t.Errorf("last_update_id = %d, want 1027024", snap.LastUpdateID)
	}
	if len(snap.Bids) != 1 || snap.Bids[0][0] != "4.00000000" {
		t.Errorf("bids = %v", snap.Bids)
	}
}

func TestGetDepthSnapshotSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	_, err := c.GetDepthSnapshot(context.Background(), "NOTREAL", 1000)
	if err == nil {
		t.Fatal("expected error for invalid symbol")
	}
}

func TestGetExchangeInfoExtractsFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbols":[{"symbol":"BTCUSDT","filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.01000000"},
			{"filterType":"LOT_SIZE","stepSize":"0.00001000"}
		]}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testLogger())
	info, err := c.GetExchangeInfo(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetExchangeInfo: %v", err)
	}

	tick, step, ok := info.TickAndStepSize("BTCUSDT")
	if !ok {
		t.Fatal("expected tick/step size to be found")
	}
	if tick != "0.01000000" {
		t.Errorf("tick size = %q, want 0.01000000", tick)
	}
	if step != "0.00001000" {
		t.Errorf("step size = %q, want 0.00001000", step)
	}
}

func TestExchangeInfoTickAndStepSizeMissingSymbol(t *testing.T) {
	t.Parallel()
	info := ExchangeInfoResponse{Symbols: []SymbolInfo{{Symbol: "ETHUSDT"}}}

	if _, _, ok := info.TickAndStepSize("BTCUSDT"); ok {
		t.Fatal("expected ok=false for a symbol not present in the response")
	}
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	t.Parallel()
	c := NewClient("", testLogger())
	if c.http.BaseURL != defaultBaseURL {
		t.Errorf("base url = %q, want %q", c.http.BaseURL, defaultBaseURL)
	}
}

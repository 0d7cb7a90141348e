// Package venue implements the exchange REST and WebSocket clients.
//
// The REST client (Client) talks to the exchange's public spot API to seed
// and re-seed the book:
//   - GetDepthSnapshot: GET /api/v3/depth         — one-shot L2 book snapshot
//   - GetExchangeInfo:  GET /api/v3/exchangeInfo  — tick_size/step_size filters
//
// Both calls are unauthenticated (public market data); every request is
// rate-limited via per-endpoint TokenBuckets and automatically retried on
// 5xx errors.
package venue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.binance.com"

// Client is the venue's public REST API client. It wraps a resty HTTP
// client with rate limiting and retry.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry. An empty
// baseURL falls back to the production API host.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		rl:     NewRateLimiter(),
		logger: logger.With("component", "venue"),
	}
}

// GetDepthSnapshot fetches a one-shot L2 book snapshot for symbol, at most
// limit levels per side.
func (c *Client) GetDepthSnapshot(ctx context.Context, symbol string, limit int) (*DepthSnapshotResponse, error) {
	if err := c.rl.Depth.Wait(ctx); err != nil {
		return nil, err
	}

	var result DepthSnapshotResponse
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		ForceContentType("application/json").
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/v3/depth")
	if err != nil {
		return nil, fmt.Errorf("get depth snapshot: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if apiErr.Code != 0 {
			return nil, fmt.Errorf("get depth snapshot: %w", apiErr)
		}
		return nil, fmt.Errorf("get depth snapshot: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("fetched depth snapshot", "symbol", symbol, "last_update_id", result.LastUpdateID)
	return &result, nil
}

// GetExchangeInfo fetches the symbol's trading filters (tick_size, step_size).
func (c *Client) GetExchangeInfo(ctx context.Context, symbol string) (*ExchangeInfoResponse, error) {
	if err := c.rl.ExchangeInfo.Wait(ctx); err != nil {
		return nil, err
	}

	var result ExchangeInfoResponse
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		ForceContentType("application/json").
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/v3/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("get exchange info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if apiErr.Code != 0 {
			return nil, fmt.Errorf("get exchange info: %w", apiErr)
		}
		return nil, fmt.Errorf("get exchange info: status %d: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}

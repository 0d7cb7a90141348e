// ratelimit.go implements token-bucket rate limiting for the venue's REST
// endpoints.
//
// Binance enforces a shared request-weight budget (1200/min on the spot
// API) rather than per-endpoint counters, but a depth snapshot or
// exchange-info call only ever happens on startup or gap recovery, so
// splitting a conservative share of that budget into two small per-endpoint
// buckets is simpler than modeling the shared weight ledger and never comes
// close to the real limit in practice.
package venue

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next token
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// RateLimiter groups token buckets by REST endpoint category. Each call must
// wait on the appropriate bucket before making the HTTP request.
type RateLimiter struct {
	Depth        *TokenBucket // GET /api/v3/depth — book snapshot reads
	ExchangeInfo *TokenBucket // GET /api/v3/exchangeInfo — tick/step size lookup
}

// NewRateLimiter creates rate limiters with a conservative burst/refill
// budget. Both endpoints are called rarely (startup, gap recovery) so these
// limits exist only to survive a reconnect storm, not to track the
// exchange's published weight budget precisely.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Depth:        NewTokenBucket(10, 2),
		ExchangeInfo: NewTokenBucket(5, 1),
	}
}

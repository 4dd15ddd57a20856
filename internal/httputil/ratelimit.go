// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket for API clients with a published
// request budget (e.g. Semantic Scholar: 1 req/s anonymous, 10 with a key).
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained
// requests with the given burst. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

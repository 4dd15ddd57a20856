// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP transport shared across stages: retry
// with backoff, a paced browser-like session, bot-challenge detection and
// a token-bucket rate limiter for APIs.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryDelay caps a single backoff wait, including Retry-After hints.
var MaxRetryDelay = 60 * time.Second

const defaultMaxRetries = 3

// DoWithRetry executes an HTTP request and retries on HTTP 429, 5xx and
// transient network errors with exponential backoff: RetryBaseDelay,
// then twice that, and so on. A Retry-After header on the response takes
// precedence when it is present and parseable.
//
// When maxRetries is 0 the default (3) is used. On each retry the response
// body is drained and closed before sleeping. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last response is returned so the caller can inspect it, or
// the last network error when there was no response.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil || !IsTransient(err) || attempt >= maxRetries {
				return nil, err
			}
			if werr := sleepCtx(ctx, backoff(attempt)); werr != nil {
				return nil, werr
			}
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp)
		if wait <= 0 {
			wait = backoff(attempt)
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// IsRetryableStatus reports whether a status code is worth retrying.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// IsTransient reports whether a transport error is likely to clear on retry:
// timeouts, connection resets and refused connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection reset by peer", "broken pipe", "tls handshake timeout", "server closed idle connection"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(h); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(h); err == nil {
		d = time.Until(t)
	}
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep waits for d unless ctx is cancelled first. Stages use it for their
// fixed pacing delays.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

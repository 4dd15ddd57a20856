// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// BrowserUserAgents is the rotation used for page fetches.
var BrowserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// customUAEvery is the rotation slot given to the configured User-Agent.
const customUAEvery = 5

// maxPageBytes bounds page bodies read into memory by Get.
const maxPageBytes = 10 << 20

// Response is a fully read page.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Session is a single-threaded, paced HTTP client that looks like a
// browser. Every request after the first waits until RequestDelay has
// elapsed since the previous one, plus a random jitter. Sessions are not
// safe for concurrent use.
type Session struct {
	client *http.Client
	cfg    types.HTTPConfig
	log    zerolog.Logger

	requests    int
	uaIndex     int
	lastRequest time.Time

	// now and jitter are replaced in tests.
	now    func() time.Time
	jitter func(max time.Duration) time.Duration
}

// NewSession creates a session. A nil client gets one with cfg.Timeout.
func NewSession(client *http.Client, cfg types.HTTPConfig, log zerolog.Logger) *Session {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Session{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		jitter: randomJitter,
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// Requests returns the number of requests issued so far.
func (s *Session) Requests() int {
	return s.requests
}

// Get fetches url and reads the body. A bot challenge or a 429 that
// survives the retries yields the response together with an error
// wrapping ErrBlocked. Other non-2xx statuses are returned without error;
// callers inspect StatusCode.
func (s *Session) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := s.do(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", url)
	}

	out := &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if blocked, kind := DetectBlock(resp.StatusCode, resp.Header, body); blocked {
		s.log.Warn().Str("url", url).Str("block", string(kind)).Msg("bot challenge detected")
		return out, eris.Wrapf(ErrBlocked, "%s at %s", kind, url)
	}
	return out, nil
}

// Stream issues a paced GET and returns the open response for the caller
// to consume and close. No block detection is applied.
func (s *Session) Stream(ctx context.Context, url, accept string) (*http.Response, error) {
	if accept == "" {
		accept = "application/pdf,application/octet-stream,*/*"
	}
	return s.do(ctx, url, accept)
}

func (s *Session) do(ctx context.Context, url, accept string) (*http.Response, error) {
	if err := s.pace(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "creating request for %s", url)
	}
	s.setHeaders(req, accept)

	s.log.Debug().Str("url", url).Int("request", s.requests).Msg("GET")
	resp, err := DoWithRetry(ctx, s.client, req, s.cfg.MaxRetries)
	s.requests++
	s.lastRequest = s.now()
	if err != nil {
		return nil, eris.Wrapf(err, "GET %s", url)
	}
	return resp, nil
}

// pace sleeps until RequestDelay has passed since the last request.
func (s *Session) pace(ctx context.Context) error {
	if s.lastRequest.IsZero() || s.cfg.RequestDelay <= 0 {
		return ctx.Err()
	}
	elapsed := s.now().Sub(s.lastRequest)
	if elapsed >= s.cfg.RequestDelay {
		return ctx.Err()
	}
	wait := s.cfg.RequestDelay - elapsed + s.jitter(s.cfg.Jitter)
	s.log.Debug().Dur("wait", wait).Msg("pacing")
	return Sleep(ctx, wait)
}

// setHeaders applies a browser-like header set. Accept-Encoding is left to
// the transport so that gzip bodies are decoded transparently.
func (s *Session) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", s.nextUserAgent())
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// nextUserAgent returns the custom UA on every fifth request and rotates
// through BrowserUserAgents otherwise.
func (s *Session) nextUserAgent() string {
	if s.requests%customUAEvery == 0 && s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	ua := BrowserUserAgents[s.uaIndex%len(BrowserUserAgents)]
	s.uaIndex++
	return ua
}

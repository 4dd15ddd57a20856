// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package semantic queries the Semantic Scholar Academic Graph bulk search
// API and converts its results into paper records.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// apiBase is a var so tests can substitute an httptest server.
var apiBase = "https://api.semanticscholar.org/graph/v1"

// Published request budgets, requests per second.
var (
	anonymousRate = 1.0
	keyedRate     = 10.0
)

const (
	maxPageSize  = 100
	maxBodyBytes = 10 << 20
	apiKeyHeader = "x-api-key"
	paperFields  = "paperId,title,abstract,authors,year,publicationDate,venue,citationCount,url,openAccessPdf,externalIds,publicationTypes,fieldsOfStudy"
)

// ErrNotFound is returned by GetPaper for an unknown paper ID.
var ErrNotFound = eris.New("paper not found")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semantic scholar: HTTP %d: %s", e.StatusCode, e.Message)
}

// Query describes one bulk search.
type Query struct {
	Text         string
	YearMin      int
	YearMax      int
	MinCitations int

	// Limit caps the number of records returned; 0 uses PapersPerQuery.
	Limit int

	// Sort defaults to the configured sort (citationCount).
	Sort string
}

// Client talks to the Graph API under a token-bucket rate limit.
type Client struct {
	http    *http.Client
	cfg     types.SemanticScholarConfig
	limiter *httputil.RateLimiter
	log     zerolog.Logger
}

// NewClient creates a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg types.SemanticScholarConfig, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	rps := anonymousRate
	if cfg.APIKey != "" {
		rps = keyedRate
	} else {
		log.Warn().Msg("no Semantic Scholar API key; limited to 1 request per second")
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: httputil.NewRateLimiter(rps, 1),
		log:     observability.WithSource(log, "semantic_scholar"),
	}
}

// Search runs a bulk search, paging by offset until a page comes back
// empty or short, or Limit records were collected. Results that cannot be
// converted are skipped. On error the records gathered so far are
// returned with it.
func (c *Client) Search(ctx context.Context, q Query) ([]*types.PaperRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = c.cfg.PapersPerQuery
	}
	if limit <= 0 {
		limit = maxPageSize
	}
	pageSize := min(limit, maxPageSize)
	log := observability.WithQuery(c.log, q.Text)

	var out []*types.PaperRecord
	skipped := 0
	for offset := 0; len(out) < limit; {
		page, err := c.fetchPage(ctx, q, pageSize, offset)
		if err != nil {
			return out, err
		}
		if len(page.Data) == 0 {
			break
		}
		for _, p := range page.Data {
			rec, err := toRecord(p)
			if err != nil {
				skipped++
				log.Debug().Err(err).Str("paper_id", p.PaperID).Msg("skipping result")
				continue
			}
			rec.SourceQuery = q.Text
			out = append(out, rec)
		}
		log.Info().Int("retrieved", len(out)).Int("limit", limit).Msg("bulk search page")

		if len(page.Data) < pageSize {
			break
		}
		offset += len(page.Data)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	log.Info().Int("papers", len(out)).Int("skipped", skipped).Msg("bulk search complete")
	return out, nil
}

// GetPaper fetches a single paper by Semantic Scholar ID or prefixed
// external ID (e.g. "DOI:10.1145/...").
func (c *Client) GetPaper(ctx context.Context, id string) (*types.PaperRecord, error) {
	u := fmt.Sprintf("%s/paper/%s?%s", apiBase, url.PathEscape(id), url.Values{"fields": {paperFields}}.Encode())

	var p paperResult
	if err := c.getJSON(ctx, u, &p); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, eris.Wrapf(ErrNotFound, "paper %s", id)
		}
		return nil, err
	}
	return toRecord(p)
}

func (c *Client) fetchPage(ctx context.Context, q Query, pageSize, offset int) (*bulkResponse, error) {
	params := url.Values{
		"query":  {q.Text},
		"fields": {paperFields},
		"limit":  {strconv.Itoa(pageSize)},
	}
	sort := q.Sort
	if sort == "" {
		sort = c.cfg.Sort
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	if q.YearMin > 0 || q.YearMax > 0 {
		params.Set("year", yearRange(q.YearMin, q.YearMax))
	}
	minCites := q.MinCitations
	if minCites <= 0 {
		minCites = c.cfg.MinCitations
	}
	if minCites > 0 {
		params.Set("minCitationCount", strconv.Itoa(minCites))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	var page bulkResponse
	if err := c.getJSON(ctx, apiBase+"/paper/search/bulk?"+params.Encode(), &page); err != nil {
		return nil, eris.Wrapf(err, "bulk search %q at offset %d", q.Text, offset)
	}
	return &page, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}

	c.log.Debug().Str("url", u).Msg("GET")
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return eris.Wrap(err, "executing request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return eris.Wrap(err, "decoding response")
	}
	return nil
}

// errorMessage pulls the message out of a JSON error body, or returns the
// raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// yearRange renders the API's "min-max" filter; either side may be empty.
func yearRange(lo, hi int) string {
	var b strings.Builder
	if lo > 0 {
		b.WriteString(strconv.Itoa(lo))
	}
	b.WriteByte('-')
	if hi > 0 {
		b.WriteString(strconv.Itoa(hi))
	}
	return b.String()
}

// toRecord converts an API result. The year falls back to the first four
// characters of publicationDate; the PDF URL comes from openAccessPdf and
// the DOI from externalIds.
func toRecord(p paperResult) (*types.PaperRecord, error) {
	rec := types.NewPaperRecord(p.Title)
	rec.ID = p.PaperID
	rec.Venue = p.Venue
	rec.URL = p.URL
	if p.Abstract != nil {
		rec.Abstract = *p.Abstract
	}

	for _, a := range p.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}

	switch {
	case p.Year != nil && *p.Year > 0:
		rec.Year = *p.Year
	case len(p.PublicationDate) >= 4:
		if y, err := strconv.Atoi(p.PublicationDate[:4]); err == nil {
			rec.Year = y
		}
	}

	if p.CitationCount != nil {
		rec.SetCitations(*p.CitationCount)
	}
	if p.OpenAccessPDF != nil {
		rec.PDFURL = p.OpenAccessPDF.URL
	}
	if doi, ok := p.ExternalIDs["DOI"].(string); ok {
		rec.DOI = types.NormalizeDOI(doi)
	}
	rec.ExtractedAt = time.Now().UTC()

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

type bulkResponse struct {
	Total int           `json:"total"`
	Token string        `json:"token"`
	Data  []paperResult `json:"data"`
}

type paperResult struct {
	PaperID         string         `json:"paperId"`
	Title           string         `json:"title"`
	Abstract        *string        `json:"abstract"`
	Authors         []author       `json:"authors"`
	Year            *int           `json:"year"`
	PublicationDate string         `json:"publicationDate"`
	Venue           string         `json:"venue"`
	CitationCount   *int           `json:"citationCount"`
	URL             string         `json:"url"`
	OpenAccessPDF   *openAccessPDF `json:"openAccessPdf"`
	ExternalIDs     map[string]any `json:"externalIds"`
}

type author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type openAccessPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

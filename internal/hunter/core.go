// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Title match heuristic for CORE results.
const (
	coreMinTitleLen = 10
	corePrefixLen   = 30
)

// CORESource searches the CORE repository aggregator by title.
type CORESource struct {
	Client *http.Client
	Config types.HuntConfig
}

// Name returns the source identifier.
func (s *CORESource) Name() string { return "core" }

// Applies reports whether the paper has a title to search for.
func (s *CORESource) Applies(paper *types.PaperRecord) bool {
	return strings.TrimSpace(paper.Title) != ""
}

// FindPDF searches CORE and accepts the first result whose title matches
// the query title and which exposes a download URL.
func (s *CORESource) FindPDF(ctx context.Context, paper *types.PaperRecord) (*types.PDFSource, error) {
	if !s.Applies(paper) {
		return nil, nil
	}

	params := url.Values{
		"page":     {"1"},
		"pageSize": {"5"},
		"metadata": {"true"},
	}
	header := http.Header{"User-Agent": {politeUserAgent(s.Config)}}
	if s.Config.COREAPIKey != "" {
		params.Set("apiKey", s.Config.COREAPIKey)
		header.Set("Authorization", "Bearer "+s.Config.COREAPIKey)
	}
	apiURL := fmt.Sprintf("%s/%s?%s", coreAPIBase, url.PathEscape(paper.Title), params.Encode())

	var data coreResponse
	if _, err := getJSON(ctx, s.Client, "CORE", apiURL, header, &data, false); err != nil {
		return nil, err
	}

	for _, r := range data.Data {
		if r.DownloadURL != "" && TitleMatches(r.Title, paper.Title) {
			return &types.PDFSource{
				URL:          r.DownloadURL,
				SourceName:   "CORE (repository)",
				IsOpenAccess: true,
			}, nil
		}
	}
	return nil, nil
}

// TitleMatches is the CORE similarity heuristic: the candidate title must
// be longer than 10 characters and its first 30 characters, lowercased,
// must appear in the lowercased query title.
func TitleMatches(candidate, query string) bool {
	c := []rune(strings.ToLower(candidate))
	if len(c) <= coreMinTitleLen {
		return false
	}
	if len(c) > corePrefixLen {
		c = c[:corePrefixLen]
	}
	return strings.Contains(strings.ToLower(query), string(c))
}

type coreResponse struct {
	Data []coreArticle `json:"data"`
}

type coreArticle struct {
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
}

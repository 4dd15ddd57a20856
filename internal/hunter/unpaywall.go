// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// UnpaywallSource looks up open-access copies by DOI.
type UnpaywallSource struct {
	Client *http.Client
	Config types.HuntConfig
}

// Name returns the source identifier.
func (s *UnpaywallSource) Name() string { return "unpaywall" }

// Applies reports whether the paper has a DOI to look up.
func (s *UnpaywallSource) Applies(paper *types.PaperRecord) bool { return paper.DOI != "" }

// FindPDF queries Unpaywall. Papers without a DOI are skipped and an
// unknown DOI (HTTP 404) is a clean negative.
func (s *UnpaywallSource) FindPDF(ctx context.Context, paper *types.PaperRecord) (*types.PDFSource, error) {
	if !s.Applies(paper) {
		return nil, nil
	}

	apiURL := fmt.Sprintf("%s/%s?%s", unpaywallAPIBase, doiPath(paper.DOI), url.Values{"email": {s.Config.Email}}.Encode())
	header := http.Header{"User-Agent": {politeUserAgent(s.Config)}}

	var data unpaywallResponse
	found, err := getJSON(ctx, s.Client, "Unpaywall", apiURL, header, &data, true)
	if err != nil || !found {
		return nil, err
	}

	if !data.IsOA || data.BestOALocation == nil || data.BestOALocation.URLForPDF == "" {
		return nil, nil
	}

	version := data.BestOALocation.Version
	if version == "" {
		version = "unknown"
	}
	return &types.PDFSource{
		URL:          data.BestOALocation.URLForPDF,
		SourceName:   fmt.Sprintf("Unpaywall (%s)", version),
		IsOpenAccess: true,
		License:      data.BestOALocation.License,
	}, nil
}

type unpaywallResponse struct {
	IsOA           bool               `json:"is_oa"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	License   string `json:"license"`
	Version   string `json:"version"`
}

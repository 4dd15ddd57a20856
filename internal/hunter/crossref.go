// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hunter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// CrossRefSource consults CrossRef work metadata for a link typed as PDF.
type CrossRefSource struct {
	Client *http.Client
	Config types.HuntConfig
}

// Name returns the source identifier.
func (s *CrossRefSource) Name() string { return "crossref" }

// Applies reports whether the paper has a DOI to look up.
func (s *CrossRefSource) Applies(paper *types.PaperRecord) bool { return paper.DOI != "" }

// FindPDF looks up the DOI and returns the first application/pdf link.
// The access status of such links is unknown, so IsOpenAccess is false.
func (s *CrossRefSource) FindPDF(ctx context.Context, paper *types.PaperRecord) (*types.PDFSource, error) {
	if !s.Applies(paper) {
		return nil, nil
	}

	apiURL := fmt.Sprintf("%s/%s", crossrefAPIBase, doiPath(paper.DOI))
	header := http.Header{"User-Agent": {politeUserAgent(s.Config)}}

	var cr crossrefResponse
	if _, err := getJSON(ctx, s.Client, "CrossRef", apiURL, header, &cr, false); err != nil {
		return nil, err
	}

	for _, l := range cr.Message.Link {
		if l.ContentType == "application/pdf" && l.URL != "" {
			return &types.PDFSource{
				URL:        l.URL,
				SourceName: "CrossRef",
			}, nil
		}
	}
	return nil, nil
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Link []crossrefLink `json:"link"`
}

type crossrefLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

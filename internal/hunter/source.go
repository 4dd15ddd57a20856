// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hunter locates PDFs for papers that lack one by consulting a
// fixed chain of lookup services: Unpaywall by DOI, CORE by title and
// CrossRef by DOI. The first hit wins; faults in one service never abort
// the chain.
package hunter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Base URLs for the lookup services. Declared as vars so tests can
// substitute httptest servers.
var (
	unpaywallAPIBase = "https://api.unpaywall.org/v2"
	coreAPIBase      = "https://core.ac.uk:443/api-v2/articles/search"
	crossrefAPIBase  = "https://api.crossref.org/works"
)

// Source is one PDF lookup service. FindPDF returns (nil, nil) when the
// service cleanly reports nothing and a non-nil error for faults; the
// Hunter treats both as "not found".
type Source interface {
	Name() string
	FindPDF(ctx context.Context, paper *types.PaperRecord) (*types.PDFSource, error)
}

// applier is implemented by sources that can tell, without a request,
// that a paper lacks the key they look up by.
type applier interface {
	Applies(paper *types.PaperRecord) bool
}

// doiPath escapes each segment of a DOI for use in a URL path. DOIs may
// contain characters such as '#' and '?'.
func doiPath(doi string) string {
	segs := strings.Split(doi, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// statusError is a non-2xx answer from a lookup service.
type statusError struct {
	Service string
	Code    int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.Code)
}

// maxLookupBytes bounds JSON bodies from lookup services.
const maxLookupBytes = 8 << 20

// getJSON fetches url and decodes a JSON body into v. A 404 is reported
// as found=false with no error when notFoundOK is set.
func getJSON(ctx context.Context, client *http.Client, service, url string, header http.Header, v any, notFoundOK bool) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, eris.Wrapf(err, "%s: creating request", service)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, client, req, 1)
	if err != nil {
		return false, eris.Wrapf(err, "%s request", service)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return false, &statusError{Service: service, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBytes)).Decode(v); err != nil {
		return false, eris.Wrapf(err, "%s: parsing response", service)
	}
	return true, nil
}

// politeUserAgent identifies the caller to services with a polite pool.
func politeUserAgent(cfg types.HuntConfig) string {
	if cfg.Email == "" {
		return cfg.UserAgent
	}
	return fmt.Sprintf("%s (mailto:%s)", cfg.UserAgent, cfg.Email)
}

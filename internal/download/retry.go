// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const retryAttempts = 3

// Retry re-attempts every failed or invalid entry in the download log.
// 403 and 404 are final. Server errors wait (attempt+1)*RetryWait and try
// again; transport errors wait twice RetryWait. A body that is not a PDF
// is kept beside the target with an .html extension. Entries are updated
// in place and the log is saved before returning.
func (d *Downloader) Retry(ctx context.Context, w io.Writer) (BatchResult, error) {
	var result BatchResult
	for _, id := range d.entries.Pending() {
		if ctx.Err() != nil {
			break
		}
		entry := d.entries[id]
		if entry.URL == "" || entry.Filename == "" {
			result.Skipped++
			continue
		}

		fmt.Fprintf(w, "retrying:   %s\n", entry.Filename)
		updated, err := d.retryEntry(ctx, entry)
		if ctx.Err() != nil {
			break
		}
		d.entries[id] = updated

		switch updated.Status {
		case types.DownloadSuccess:
			result.Downloaded++
			fmt.Fprintf(w, "  recovered: %s\n", updated.Filename)
		case types.DownloadInvalid:
			result.Invalid++
			fmt.Fprintf(w, "  invalid:   %v\n", err)
		default:
			result.Failed++
			fmt.Fprintf(w, "  failed:    %v\n", err)
		}
	}

	if err := d.SaveLog(); err != nil {
		d.log.Error().Err(err).Msg("saving download log")
	}
	fmt.Fprintf(w, "\nRetry summary: %d recovered, %d invalid, %d failed (total: %d)\n",
		result.Downloaded, result.Invalid, result.Failed, result.Total())
	return result, ctx.Err()
}

func (d *Downloader) retryEntry(ctx context.Context, entry types.DownloadEntry) (types.DownloadEntry, error) {
	dest := filepath.Join(d.cfg.PapersDir, entry.Filename)
	sidecar := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".html"

	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		code, err := d.fetch(ctx, entry.URL, dest, sidecar)
		if err == nil {
			entry.Status = types.DownloadSuccess
			entry.Error = ""
			entry.StatusCode = code
			return entry, nil
		}
		if ctx.Err() != nil {
			return entry, ctx.Err()
		}
		lastErr = err
		entry.Error = err.Error()
		entry.StatusCode = code

		var wait time.Duration
		switch {
		case errors.Is(err, ErrNotPDF) || errors.Is(err, ErrTooLarge):
			entry.Status = types.DownloadInvalid
			return entry, err
		case code == http.StatusForbidden || code == http.StatusNotFound:
			entry.Status = types.DownloadFailed
			return entry, err
		case code >= 500:
			wait = time.Duration(attempt+1) * d.cfg.RetryWait
		case code == 0:
			wait = 2 * d.cfg.RetryWait
		default:
			entry.Status = types.DownloadFailed
			return entry, err
		}

		if attempt < retryAttempts-1 {
			d.log.Debug().Int("attempt", attempt+1).Dur("wait", wait).Str("url", entry.URL).Msg("retrying download")
			if err := httputil.Sleep(ctx, wait); err != nil {
				return entry, err
			}
		}
	}
	entry.Status = types.DownloadFailed
	return entry, lastErr
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches PDFs for selected papers and verifies them.
// Only a verified file ever appears at its target path: payloads are
// streamed to a temp file in the same directory, checked, and renamed.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/internal/observability"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

var (
	// ErrTooLarge reports a payload above the configured MaxSize.
	ErrTooLarge = eris.New("payload exceeds size limit")

	// ErrNotPDF reports a payload that failed verification.
	ErrNotPDF = eris.New("payload is not a PDF")
)

var pdfMagic = []byte("%PDF")

// HTTPError is a non-200 answer to a download request.
type HTTPError struct {
	Code int
	URL  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Existing   int
	Invalid    int
	Failed     int
	Skipped    int
}

// Total returns the number of records processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Existing + r.Invalid + r.Failed + r.Skipped
}

// HasFailures reports whether any download failed or was rejected.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0 || r.Invalid > 0
}

// Downloader fetches and verifies PDFs into cfg.PapersDir and keeps the
// download log. It is not safe for concurrent use.
type Downloader struct {
	session *httputil.Session
	cfg     types.DownloadConfig
	log     zerolog.Logger
	entries Log
}

// New creates a Downloader. An existing download log in PapersDir is
// loaded so that retries and statistics see earlier runs; an unreadable
// log is replaced by an empty one.
func New(session *httputil.Session, cfg types.DownloadConfig, log zerolog.Logger) *Downloader {
	d := &Downloader{session: session, cfg: cfg, log: log, entries: Log{}}
	if l, err := LoadLog(d.LogPath()); err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable download log")
	} else {
		d.entries = l
	}
	return d
}

// LogPath returns the download log location.
func (d *Downloader) LogPath() string {
	return filepath.Join(d.cfg.PapersDir, LogFile)
}

// Entries returns the in-memory download log.
func (d *Downloader) Entries() Log {
	return d.entries
}

// SaveLog flushes the download log to disk.
func (d *Downloader) SaveLog() error {
	return d.entries.Save(d.LogPath())
}

// Path returns the target path for a record.
func (d *Downloader) Path(rec *types.PaperRecord) string {
	return filepath.Join(d.cfg.PapersDir, Filename(rec))
}

// Download fetches one record's PDF. A record without a PDF URL is
// skipped. When a non-empty file already exists at the target path the
// record is marked downloaded without touching the network. Invalid
// payloads are deleted and reported with an error wrapping ErrTooLarge
// or ErrNotPDF; transport and HTTP failures leave no file behind.
func (d *Downloader) Download(ctx context.Context, rec *types.PaperRecord) (types.DownloadStatus, error) {
	status, _, err := d.download(ctx, rec)
	return status, err
}

func (d *Downloader) download(ctx context.Context, rec *types.PaperRecord) (status types.DownloadStatus, existed bool, err error) {
	if rec.PDFURL == "" {
		return types.DownloadSkipped, false, nil
	}
	if err := os.MkdirAll(d.cfg.PapersDir, 0o755); err != nil {
		return types.DownloadFailed, false, eris.Wrapf(err, "creating %s", d.cfg.PapersDir)
	}

	log := observability.WithPaper(d.log, rec)
	name := Filename(rec)
	path := filepath.Join(d.cfg.PapersDir, name)
	entry := types.DownloadEntry{Filename: name, URL: rec.PDFURL, Title: rec.Title}

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		rec.PDFDownloaded = true
		rec.PDFPath = path
		entry.Status = types.DownloadSuccess
		d.entries[rec.ID] = entry
		log.Debug().Str("file", name).Msg("PDF already on disk")
		return types.DownloadSuccess, true, nil
	}

	code, err := d.fetch(ctx, rec.PDFURL, path, "")
	if err == nil {
		rec.PDFDownloaded = true
		rec.PDFPath = path
		entry.Status = types.DownloadSuccess
		d.entries[rec.ID] = entry
		log.Info().Str("file", name).Msg("PDF downloaded")
		return types.DownloadSuccess, false, nil
	}
	if ctx.Err() != nil {
		return types.DownloadFailed, false, ctx.Err()
	}

	entry.Error = err.Error()
	entry.StatusCode = code
	if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrNotPDF) {
		entry.Status = types.DownloadInvalid
	} else {
		entry.Status = types.DownloadFailed
	}
	d.entries[rec.ID] = entry
	log.Warn().Err(err).Str("status", string(entry.Status)).Msg("download rejected")
	return entry.Status, false, err
}

// fetch streams url into dest through a temp file and verifies it. When
// sidecar is non-empty a payload that fails the PDF check is kept there
// for inspection instead of being deleted. The HTTP status is returned
// whenever a response was received.
func (d *Downloader) fetch(ctx context.Context, url, dest, sidecar string) (int, error) {
	resp, err := d.session.Stream(ctx, url, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	if code != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return code, &HTTPError{Code: code, URL: url}
	}
	if d.cfg.MaxSize > 0 && resp.ContentLength > d.cfg.MaxSize {
		return code, eris.Wrapf(ErrTooLarge, "content length %d above %d", resp.ContentLength, d.cfg.MaxSize)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return code, eris.Wrap(err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	var body io.Reader = resp.Body
	if d.cfg.MaxSize > 0 {
		body = io.LimitReader(resp.Body, d.cfg.MaxSize+1)
	}
	n, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return code, eris.Wrap(copyErr, "writing download")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return code, eris.Wrap(closeErr, "closing temp file")
	}
	if d.cfg.MaxSize > 0 && n > d.cfg.MaxSize {
		os.Remove(tmpPath)
		return code, eris.Wrapf(ErrTooLarge, "body above %d bytes", d.cfg.MaxSize)
	}

	if err := d.verify(tmpPath); err != nil {
		if sidecar != "" && errors.Is(err, ErrNotPDF) {
			if rerr := os.Rename(tmpPath, sidecar); rerr == nil {
				d.log.Info().Str("file", sidecar).Msg("saved non-PDF content")
				return code, err
			}
		}
		os.Remove(tmpPath)
		return code, err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return code, eris.Wrap(err, "renaming temp file")
	}
	return code, nil
}

// verify checks the %PDF header and, in strict mode, that the document
// parses and has at least one page.
func (d *Downloader) verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "opening %s", path)
	}
	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(f, head)
	f.Close()
	if n < len(pdfMagic) || !bytes.Equal(head, pdfMagic) {
		return eris.Wrapf(ErrNotPDF, "missing %s header", pdfMagic)
	}

	if d.cfg.Strict {
		pages, err := api.PageCountFile(path)
		if err != nil {
			return eris.Wrapf(ErrNotPDF, "parse failed: %v", err)
		}
		if pages == 0 {
			return eris.Wrap(ErrNotPDF, "document has no pages")
		}
	}
	return nil
}

// DownloadAll downloads every record in order, printing one status line
// per record to w. The log is flushed every SaveEvery attempts and at the
// end. On cancellation the in-flight download is abandoned, the log is
// flushed and ctx.Err() is returned with the partial result.
func (d *Downloader) DownloadAll(ctx context.Context, recs []*types.PaperRecord, w io.Writer) (BatchResult, error) {
	var result BatchResult
	attempts := 0

	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		status, existed, err := d.download(ctx, rec)
		if ctx.Err() != nil {
			break
		}

		label := Filename(rec)
		switch {
		case status == types.DownloadSkipped:
			result.Skipped++
			continue
		case existed:
			result.Existing++
			fmt.Fprintf(w, "exists:     %s\n", label)
		case status == types.DownloadSuccess:
			result.Downloaded++
			fmt.Fprintf(w, "downloaded: %s\n", label)
		case status == types.DownloadInvalid:
			result.Invalid++
			fmt.Fprintf(w, "invalid:    %s (%v)\n", label, err)
		default:
			result.Failed++
			fmt.Fprintf(w, "failed:     %s (%v)\n", label, err)
		}

		attempts++
		if d.cfg.SaveEvery > 0 && attempts%d.cfg.SaveEvery == 0 {
			if err := d.SaveLog(); err != nil {
				d.log.Error().Err(err).Msg("saving download log")
			}
		}
	}

	if err := d.SaveLog(); err != nil {
		d.log.Error().Err(err).Msg("saving download log")
	}
	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d existing, %d invalid, %d failed, %d skipped (total: %d)\n",
		result.Downloaded, result.Existing, result.Invalid, result.Failed, result.Skipped, result.Total())
	return result, ctx.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemerikov/scholarextractor/internal/httputil"
	"github.com/ssemerikov/scholarextractor/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const fakePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"

func testCfg(dir string) types.DownloadConfig {
	cfg := types.DefaultDownloadConfig()
	cfg.PapersDir = dir
	cfg.RequestDelay = 0
	cfg.Jitter = 0
	cfg.MaxRetries = 1
	cfg.RetryWait = time.Millisecond
	return cfg
}

func newDownloader(t *testing.T, ts *httptest.Server, cfg types.DownloadConfig) *Downloader {
	t.Helper()
	sess := httputil.NewSession(ts.Client(), cfg.HTTPConfig, zerolog.Nop())
	return New(sess, cfg, zerolog.Nop())
}

// countingMux counts hits per path.
type countingMux struct {
	*http.ServeMux
	mu   sync.Mutex
	hits map[string]int
}

func newCountingMux() *countingMux {
	return &countingMux{ServeMux: http.NewServeMux(), hits: map[string]int{}}
}

func (c *countingMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.hits[r.URL.Path]++
	c.mu.Unlock()
	c.ServeMux.ServeHTTP(w, r)
}

func (c *countingMux) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".download-*.tmp"))
	require.NoError(t, err)
	return matches
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		rec  types.PaperRecord
		want string
	}{
		{
			name: "full record",
			rec:  types.PaperRecord{Authors: []string{"Jane Q. Doe", "A. Smith"}, Year: 2021, Title: "Teaching: HTML/CSS?"},
			want: "Doe_2021_Teaching_HTMLCSS.pdf",
		},
		{
			name: "no author or year",
			rec:  types.PaperRecord{Title: "Web Design"},
			want: "Unknown_Unknown_Web_Design.pdf",
		},
		{
			name: "no title",
			rec:  types.PaperRecord{Year: 2010},
			want: "Unknown_2010_Untitled.pdf",
		},
		{
			name: "title cut at fifty runes",
			rec:  types.PaperRecord{Authors: []string{"Lee"}, Year: 2019, Title: strings.Repeat("a", 60)},
			want: "Lee_2019_" + strings.Repeat("a", 50) + ".pdf",
		},
		{
			name: "underscore runs collapse and edges trim",
			rec:  types.PaperRecord{Authors: []string{"..Kim"}, Year: 2020, Title: "a  __ b ."},
			want: "Kim_2020_a_b.pdf",
		},
		{
			name: "title already ending in pdf",
			rec:  types.PaperRecord{Authors: []string{"Ng"}, Year: 2018, Title: "notes.pdf"},
			want: "Ng_2018_notes.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			if got := Filename(&rec); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename_Bounded(t *testing.T) {
	long := &types.PaperRecord{Authors: []string{strings.Repeat("X", 120)}, Year: 2020, Title: "T"}
	assert.Equal(t, strings.Repeat("X", 96)+".pdf", Filename(long))

	wide := &types.PaperRecord{Authors: []string{"a" + strings.Repeat("日", 40)}, Title: "T"}
	got := Filename(wide)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(strings.TrimSuffix(got, ".pdf")), 96)
	assert.Equal(t, "a"+strings.Repeat("日", 31)+".pdf", got)
}

func TestDownload_Success(t *testing.T) {
	mux := newCountingMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Write([]byte(fakePDF))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	d := newDownloader(t, ts, testCfg(dir))
	rec := &types.PaperRecord{ID: "p1", Title: "Web Design", Authors: []string{"Ann Lee"}, Year: 2020, PDFURL: ts.URL + "/paper.pdf"}

	status, err := d.Download(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.DownloadSuccess, status)
	assert.True(t, rec.PDFDownloaded)
	assert.Equal(t, filepath.Join(dir, "Lee_2020_Web_Design.pdf"), rec.PDFPath)

	data, err := os.ReadFile(rec.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))
	assert.Empty(t, tempFiles(t, dir))

	entry := d.Entries()["p1"]
	assert.Equal(t, types.DownloadSuccess, entry.Status)
	assert.Equal(t, "Lee_2020_Web_Design.pdf", entry.Filename)
}

func TestDownload_IdempotentWithoutNetwork(t *testing.T) {
	mux := newCountingMux()
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakePDF))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	d := newDownloader(t, ts, testCfg(dir))
	rec := &types.PaperRecord{ID: "p1", Title: "Web Design", PDFURL: ts.URL + "/paper.pdf"}

	_, err := d.Download(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, 1, mux.count("/paper.pdf"))

	again := &types.PaperRecord{ID: "p1", Title: "Web Design", PDFURL: ts.URL + "/paper.pdf"}
	status, err := d.Download(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, types.DownloadSuccess, status)
	assert.True(t, again.PDFDownloaded)
	assert.Equal(t, 1, mux.count("/paper.pdf"), "second download must not touch the network")
}

func TestDownload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		maxSize    int64
		handler    http.HandlerFunc
		wantStatus types.DownloadStatus
		wantCode   int
		wantIs     error
	}{
		{
			name:       "html body",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>login</html>")) },
			wantStatus: types.DownloadInvalid,
			wantCode:   200,
			wantIs:     ErrNotPDF,
		},
		{
			name:       "empty body",
			handler:    func(w http.ResponseWriter, r *http.Request) {},
			wantStatus: types.DownloadInvalid,
			wantCode:   200,
			wantIs:     ErrNotPDF,
		},
		{
			name:    "content length above limit",
			maxSize: 16,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "100")
				w.Write(bytes.Repeat([]byte("x"), 100))
			},
			wantStatus: types.DownloadInvalid,
			wantCode:   200,
			wantIs:     ErrTooLarge,
		},
		{
			name:    "streamed body above limit",
			maxSize: 16,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("%PDF"))
				w.(http.Flusher).Flush()
				w.Write(bytes.Repeat([]byte("x"), 100))
			},
			wantStatus: types.DownloadInvalid,
			wantCode:   200,
			wantIs:     ErrTooLarge,
		},
		{
			name:       "not found",
			handler:    http.NotFound,
			wantStatus: types.DownloadFailed,
			wantCode:   404,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			dir := t.TempDir()
			cfg := testCfg(dir)
			if tt.maxSize > 0 {
				cfg.MaxSize = tt.maxSize
			}
			d := newDownloader(t, ts, cfg)
			rec := &types.PaperRecord{ID: "p", Title: "Bad", PDFURL: ts.URL + "/x.pdf"}

			status, err := d.Download(context.Background(), rec)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.False(t, rec.PDFDownloaded)
			assert.NoFileExists(t, d.Path(rec))
			assert.Empty(t, tempFiles(t, dir))

			entry := d.Entries()["p"]
			assert.Equal(t, tt.wantStatus, entry.Status)
			assert.Equal(t, tt.wantCode, entry.StatusCode)
			assert.NotEmpty(t, entry.Error)
		})
	}
}

func TestDownload_StrictRejectsUnparseable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 but nothing else"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	cfg := testCfg(dir)
	cfg.Strict = true
	d := newDownloader(t, ts, cfg)
	rec := &types.PaperRecord{ID: "p", Title: "Broken", PDFURL: ts.URL + "/x.pdf"}

	status, err := d.Download(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Equal(t, types.DownloadInvalid, status)
	assert.NoFileExists(t, d.Path(rec))
}

func TestDownload_NoURLSkipped(t *testing.T) {
	d := New(nil, testCfg(t.TempDir()), zerolog.Nop())
	status, err := d.Download(context.Background(), &types.PaperRecord{ID: "p", Title: "x"})
	assert.NoError(t, err)
	assert.Equal(t, types.DownloadSkipped, status)
	assert.Empty(t, d.Entries())
}

func TestDownloadAll(t *testing.T) {
	mux := newCountingMux()
	mux.HandleFunc("/good.pdf", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(fakePDF)) })
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html></html>")) })
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	cfg := testCfg(dir)
	cfg.SaveEvery = 2
	d := newDownloader(t, ts, cfg)

	existing := &types.PaperRecord{ID: "e", Title: "Existing", PDFURL: ts.URL + "/good.pdf"}
	require.NoError(t, os.WriteFile(d.Path(existing), []byte(fakePDF), 0o644))

	recs := []*types.PaperRecord{
		{ID: "a", Title: "Good", PDFURL: ts.URL + "/good.pdf"},
		existing,
		{ID: "b", Title: "Html", PDFURL: ts.URL + "/page.html"},
		{ID: "c", Title: "Missing", PDFURL: ts.URL + "/missing.pdf"},
		{ID: "d", Title: "No link"},
	}

	var buf bytes.Buffer
	result, err := d.DownloadAll(context.Background(), recs, &buf)
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Downloaded: 1, Existing: 1, Invalid: 1, Failed: 1, Skipped: 1}, result)
	assert.Equal(t, 5, result.Total())
	assert.True(t, result.HasFailures())
	assert.Contains(t, buf.String(), "Download summary: 1 downloaded, 1 existing, 1 invalid, 1 failed, 1 skipped (total: 5)")

	saved, err := LoadLog(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Len(t, saved, 4)
	assert.Equal(t, LogStats{Success: 2, Failed: 1, Invalid: 1}, saved.Stats())
	assert.Equal(t, []string{"b", "c"}, saved.Pending())
}

func TestDownloadAll_CancelledFlushesLog(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakePDF))
	}))
	defer ts.Close()

	dir := t.TempDir()
	d := newDownloader(t, ts, testCfg(dir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	result, err := d.DownloadAll(ctx, []*types.PaperRecord{{ID: "a", Title: "A", PDFURL: ts.URL + "/a.pdf"}}, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Total())
	assert.FileExists(t, filepath.Join(dir, LogFile))
}

func TestRetry(t *testing.T) {
	var mu sync.Mutex
	flaky := 0

	mux := newCountingMux()
	mux.HandleFunc("/gone.pdf", http.NotFound)
	mux.HandleFunc("/forbidden.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/flaky.pdf", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		flaky++
		n := flaky
		mu.Unlock()
		if n <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(fakePDF))
	})
	mux.HandleFunc("/landing.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>landing page</html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	seed := Log{
		"gone":      {Status: types.DownloadFailed, Filename: "Gone.pdf", URL: ts.URL + "/gone.pdf"},
		"forbidden": {Status: types.DownloadFailed, Filename: "Forbidden.pdf", URL: ts.URL + "/forbidden.pdf"},
		"flaky":     {Status: types.DownloadFailed, Filename: "Flaky.pdf", URL: ts.URL + "/flaky.pdf"},
		"landing":   {Status: types.DownloadInvalid, Filename: "Landing.pdf", URL: ts.URL + "/landing.pdf"},
		"done":      {Status: types.DownloadSuccess, Filename: "Done.pdf", URL: ts.URL + "/done.pdf"},
	}
	require.NoError(t, seed.Save(filepath.Join(dir, LogFile)))

	d := newDownloader(t, ts, testCfg(dir))
	var buf bytes.Buffer
	result, err := d.Retry(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 2, result.Failed)

	assert.Equal(t, 1, mux.count("/gone.pdf"), "404 is not retried")
	assert.Equal(t, 1, mux.count("/forbidden.pdf"), "403 is not retried")
	assert.Zero(t, mux.count("/done.pdf"))

	assert.FileExists(t, filepath.Join(dir, "Flaky.pdf"))
	assert.Equal(t, types.DownloadSuccess, d.Entries()["flaky"].Status)

	assert.NoFileExists(t, filepath.Join(dir, "Landing.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Landing.html"))
	assert.Equal(t, types.DownloadInvalid, d.Entries()["landing"].Status)

	saved, err := LoadLog(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Equal(t, types.DownloadSuccess, saved["flaky"].Status)
}

func TestLog_LoadMissingAndApply(t *testing.T) {
	dir := t.TempDir()
	l, err := LoadLog(filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, l)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.pdf"), []byte(fakePDF), 0o644))
	l = Log{
		"a": {Status: types.DownloadSuccess, Filename: "A.pdf"},
		"b": {Status: types.DownloadSuccess, Filename: "B.pdf"},
		"c": {Status: types.DownloadFailed, Filename: "C.pdf"},
	}
	recs := []*types.PaperRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	assert.Equal(t, 1, l.Apply(recs, dir))
	assert.True(t, recs[0].PDFDownloaded)
	assert.False(t, recs[1].PDFDownloaded)
}

func TestLoadLog_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFile)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := LoadLog(path)
	assert.Error(t, err)
}

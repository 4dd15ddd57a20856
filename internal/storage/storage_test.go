// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

func rec(id, title string) *types.PaperRecord {
	r := types.NewPaperRecord(title)
	r.ID = id
	return r
}

func sampleRecords() []*types.PaperRecord {
	a := rec("a1", "Teaching HTML to first-year students")
	a.Authors = []string{"Ann Lee", "Bo Kim"}
	a.Year = 2021
	a.Venue = "SIGCSE"
	a.Abstract = "We report on a course."
	a.SetCitations(12)
	a.DOI = "10.1145/123"
	a.PDFURL = "https://example.org/a1.pdf"
	a.PDFDownloaded = true
	a.PDFPath = "data/papers/Lee_2021_Teaching.pdf"
	a.RankScore = 61.5

	b := rec("b2", "Web design studio for learners")
	b.PDFURL = "https://example.org/b2.pdf"
	b.RankScore = 20

	c := rec("c3", "CSS in the classroom")
	return []*types.PaperRecord{a, b, c}
}

func testStorageConfig(t *testing.T) types.StorageConfig {
	t.Helper()
	dir := t.TempDir()
	return types.StorageConfig{
		DataDir:     dir,
		MetadataDir: filepath.Join(dir, "metadata"),
		LogsDir:     filepath.Join(dir, "logs"),
		BaseName:    "metadata",
		IndexPath:   filepath.Join(dir, "index", "papers.db"),
	}
}

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "papers.json")
	q := QueryInfo{URL: "https://scholar.example/?q=html", Description: "html teaching", ExecutedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, SaveJSON(path, sampleRecords(), q))

	exp, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 3, exp.TotalPapers)
	assert.Equal(t, 0, exp.Skipped)
	assert.Equal(t, q.URL, exp.Query.URL)
	assert.Equal(t, "html teaching", exp.Query.Description)
	assert.False(t, exp.SavedAt.IsZero())

	got := exp.Papers[0]
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, []string{"Ann Lee", "Bo Kim"}, got.Authors)
	assert.Equal(t, 2021, got.Year)
	assert.Equal(t, 12, got.Citations)
	assert.True(t, got.PDFDownloaded)
	assert.Equal(t, 61.5, got.RankScore)
}

func TestSaveLoadJSON_KeepsUnknownCitations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.json")
	zero := rec("z1", "Uncited but counted")
	zero.SetCitations(0)
	unknown := rec("u1", "Never counted")

	require.NoError(t, SaveJSON(path, []*types.PaperRecord{zero, unknown}, QueryInfo{}))

	exp, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, exp.Papers, 2)
	assert.True(t, exp.Papers[0].CitationsKnown)
	assert.Equal(t, 0, exp.Papers[0].Citations)
	assert.False(t, exp.Papers[1].CitationsKnown)
}

func TestLoadJSON_CountWithoutFlagIsKnown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.json")
	doc := `{"papers": [{"id": "x", "title": "Older export", "citations": 0}], "query": {}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	exp, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, exp.Papers, 1)
	assert.True(t, exp.Papers[0].CitationsKnown)
}

func TestLoadJSON_SkipsUntitled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.json")
	doc := `{"papers": [{"id": "x", "title": ""}, {"id": "y", "title": "Kept", "authors": "A; B"}], "query": {}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	exp, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 1, exp.Skipped)
	require.Len(t, exp.Papers, 1)
	assert.Equal(t, []string{"A", "B"}, exp.Papers[0].Authors)
}

func TestLoadJSON_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadJSON(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = LoadJSON(bad)
	assert.Error(t, err)
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.csv")
	require.NoError(t, SaveCSV(path, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "id,title,authors,year,venue"))
	assert.Contains(t, lines[1], "Ann Lee; Bo Kim")
	assert.Contains(t, lines[1], "10.1145/123")
	assert.Contains(t, lines[0], "citations,citations_known")
	assert.Contains(t, lines[1], ",12,true,")
	assert.Contains(t, lines[3], ",0,false,")
}

func TestState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	st, found, err := LoadState(path)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, st.PapersProcessed)

	in := State{
		PapersProcessed: 40,
		LastPaperID:     "abc",
		Query:           QueryInfo{URL: "u", Description: "d"},
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		CustomState:     map[string]any{"page": float64(4)},
	}
	require.NoError(t, SaveState(path, in))

	out, found, err := LoadState(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 40, out.PapersProcessed)
	assert.Equal(t, "abc", out.LastPaperID)
	assert.Equal(t, float64(4), out.CustomState["page"])
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
}

func TestStore_AddKnownWithoutPDF(t *testing.T) {
	s, err := Open(testStorageConfig(t), zerolog.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, s.RunID())

	recs := sampleRecords()
	assert.Equal(t, 3, s.AddAll(recs))
	assert.False(t, s.Add(rec("a1", "Duplicate id")))
	assert.True(t, s.Known("b2"))
	assert.False(t, s.Known("zz"))
	assert.Equal(t, []string{"a1", "b2", "c3"}, s.KnownIDs())
	assert.Same(t, recs[1], s.Get("b2"))

	pending := s.WithoutPDF()
	require.Len(t, pending, 1)
	assert.Equal(t, "b2", pending[0].ID)

	s.Replace(recs[:1])
	assert.Len(t, s.Papers(), 1)
	assert.False(t, s.Known("b2"))
}

func TestStore_Statistics(t *testing.T) {
	tests := []struct {
		name string
		recs []*types.PaperRecord
		want Statistics
	}{
		{"empty", nil, Statistics{}},
		{
			"mixed",
			sampleRecords(),
			Statistics{TotalPapers: 3, PapersWithPDFURL: 2, PapersDownloaded: 1, PapersWithAbstract: 1, PapersWithDOI: 1, PDFSuccessRate: 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stats(tt.recs))
		})
	}
}

func TestStore_CheckpointAndResume(t *testing.T) {
	cfg := testStorageConfig(t)
	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	s.SetQuery("https://scholar.example/?q=css", "css teaching")
	s.AddAll(sampleRecords())
	require.NoError(t, s.Checkpoint("css"))

	_, err = os.Stat(s.JSONPath())
	require.NoError(t, err)

	resumed, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	st, found, err := resumed.Resume()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, st.PapersProcessed)
	assert.Equal(t, "c3", st.LastPaperID)
	assert.Equal(t, "css", st.CustomState["query"])
	assert.Equal(t, s.RunID(), st.RunID)
	assert.Len(t, resumed.Papers(), 3)
	assert.True(t, resumed.Known("a1"))
}

func TestStore_ResumeWithoutCheckpoint(t *testing.T) {
	s, err := Open(testStorageConfig(t), zerolog.Nop())
	require.NoError(t, err)
	_, found, err := s.Resume()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, s.Papers())
}

func TestStore_Save(t *testing.T) {
	s, err := Open(testStorageConfig(t), zerolog.Nop())
	require.NoError(t, err)
	s.AddAll(sampleRecords())
	require.NoError(t, s.Save())

	for _, p := range []string{s.JSONPath(), s.CSVPath()} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	exp, err := LoadJSON(s.JSONPath())
	require.NoError(t, err)
	assert.Equal(t, s.RunID(), exp.RunID)
}

func TestIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := OpenIndex(filepath.Join(dir, "index", "papers.db"))
	require.NoError(t, err)
	defer idx.Close()

	recs := sampleRecords()
	require.NoError(t, idx.UpsertAll(ctx, recs))

	recs[1].Title = "Web design studio for adult learners"
	require.NoError(t, idx.Upsert(ctx, recs[1]))

	require.NoError(t, idx.RecordDownload(ctx, "a1", types.DownloadEntry{
		Status: types.DownloadSuccess, Filename: "Lee_2021_Teaching.pdf", URL: recs[0].PDFURL,
	}))
	require.NoError(t, idx.RecordDownload(ctx, "b2", types.DownloadEntry{
		Status: types.DownloadFailed, URL: recs[1].PDFURL, StatusCode: 404, Error: "HTTP 404",
	}))

	e, err := idx.Lookup(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, types.DownloadSuccess, e.Status)
	assert.Equal(t, "Lee_2021_Teaching.pdf", e.Filename)
	assert.Equal(t, []string{"Ann Lee", "Bo Kim"}, e.Authors)

	e, err = idx.Lookup(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, "Web design studio for adult learners", e.Title)
	assert.Equal(t, 404, e.StatusCode)

	_, err = idx.Lookup(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotIndexed)

	missing, err := idx.Missing(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "b2", missing[0].ID)
	assert.Equal(t, "c3", missing[1].ID)
	assert.Empty(t, missing[1].Status)

	out := filepath.Join(dir, "export.yaml")
	require.NoError(t, idx.ExportYAML(ctx, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var entries []IndexEntry
	require.NoError(t, yaml.Unmarshal(data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "a1", entries[0].ID)
}

func TestIndex_RejectsMissingID(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	defer idx.Close()

	assert.Error(t, idx.Upsert(context.Background(), rec("", "No id")))
}

func TestIndex_DownloadRequiresPaper(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	defer idx.Close()

	err = idx.RecordDownload(context.Background(), "ghost", types.DownloadEntry{Status: types.DownloadFailed})
	assert.Error(t, err)
}

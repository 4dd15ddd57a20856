// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare", "10.1145/ABC.123", "10.1145/abc.123"},
		{"https resolver", "https://doi.org/10.1/X", "10.1/x"},
		{"dx resolver", "http://dx.doi.org/10.1/x", "10.1/x"},
		{"doi prefix", "doi:10.1/x", "10.1/x"},
		{"whitespace", "  10.1/x  ", "10.1/x"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDOI(tt.input); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPaperFromMap_RequiresTitle(t *testing.T) {
	_, err := PaperFromMap(map[string]any{"id": "x", "title": "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTitle))

	_, err = PaperFromMap(map[string]any{"id": "x"})
	assert.True(t, errors.Is(err, ErrMissingTitle))
}

func TestPaperFromMap_DecodedJSON(t *testing.T) {
	raw := `{
		"id": "abc",
		"title": "Teaching Web Design",
		"authors": ["Ann Lee", "Bo Chen"],
		"year": 2019,
		"venue": "Computers & Education",
		"citations": 12,
		"doi": "https://doi.org/10.1016/J.COMPEDU.1",
		"pdf_url": "https://example.org/a.pdf",
		"unknown_key": true
	}`
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	p, err := PaperFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, []string{"Ann Lee", "Bo Chen"}, p.Authors)
	assert.Equal(t, 2019, p.Year)
	assert.Equal(t, 12, p.Citations)
	assert.True(t, p.CitationsKnown)
	assert.Equal(t, "10.1016/j.compedu.1", p.DOI)
	assert.True(t, p.HasPDF())
	assert.False(t, p.PDFDownloaded)
}

func TestPaperFromMap_Defaults(t *testing.T) {
	p, err := PaperFromMap(map[string]any{"title": "Only a title"})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Citations)
	assert.False(t, p.CitationsKnown)
	assert.Empty(t, p.Authors)
	assert.NotNil(t, p.Authors)
	assert.Equal(t, 0, p.Year)
	assert.False(t, p.ExtractedAt.IsZero())
}

func TestPaperFromMap_CitationsKnownFlag(t *testing.T) {
	p, err := PaperFromMap(map[string]any{"title": "T", "citations": 0.0, "citations_known": false})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Citations)
	assert.False(t, p.CitationsKnown)

	p, err = PaperFromMap(map[string]any{"title": "T", "citations": 0.0, "citations_known": true})
	require.NoError(t, err)
	assert.True(t, p.CitationsKnown)
}

func TestPaperFromMap_AuthorString(t *testing.T) {
	p, err := PaperFromMap(map[string]any{"title": "T", "authors": "A One; B Two;", "year": "2020"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A One", "B Two"}, p.Authors)
	assert.Equal(t, 2020, p.Year)
}

func TestPaperFromMap_RejectsBadYear(t *testing.T) {
	_, err := PaperFromMap(map[string]any{"title": "T", "year": 20})
	assert.Error(t, err)
}

func TestSetCitationsClampsNegative(t *testing.T) {
	p := NewPaperRecord("t")
	p.SetCitations(-4)
	assert.Equal(t, 0, p.Citations)
	assert.True(t, p.CitationsKnown)
}

func TestDefaultPipelineConfigValidates(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, cfg.Validate())

	cfg.Ranking.Target = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultPipelineConfig()
	cfg.Run.YearMax = cfg.Run.YearMin - 1
	assert.Error(t, cfg.Validate())
}

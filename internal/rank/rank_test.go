// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

func testCfg() types.RankingConfig {
	return types.DefaultRankingConfig()
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		title string
		want  float64
	}{
		{"Student Web Design Course", 1.0},
		{"Teaching JavaScript to freshmen", 1.0},
		{"E-Learning platforms", 1.0}, // "learning" and "e-learning"
		{"A survey of CSS frameworks", 0.5},
		{"Student motivation in physics", 0.5},
		{"Quantum chromodynamics", 0.0},
		{"", 0.0},
		{"XHTMLParser internals", 0.5}, // crude substring match on "html"
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Relevance(tt.title); got != tt.want {
				t.Errorf("Relevance(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestRelevanceRange(t *testing.T) {
	for _, title := range []string{"a", "html", "student", "student html", "LEARNER WEBSITE", "web page course training"} {
		s := Relevance(title)
		assert.Contains(t, []float64{0, 0.5, 1.0}, s, title)
	}
}

func TestScorerApply(t *testing.T) {
	recs := []*types.PaperRecord{{Title: "Student Web Design Course"}, {Title: "Biology"}}
	DefaultScorer().Apply(recs)
	assert.Equal(t, 1.0, recs[0].RelevanceScore)
	assert.Equal(t, 0.0, recs[1].RelevanceScore)
}

func TestScore_ConcreteScenario(t *testing.T) {
	r := &types.PaperRecord{
		Title:     "x",
		Citations: 99,
		Year:      2024,
		PDFURL:    "x",
		Venue:     "IEEE Transactions",
	}
	assert.InDelta(t, 69.0, Score(r, testCfg()), 1e-9)
}

func TestScore_Components(t *testing.T) {
	cfg := testCfg()
	tests := []struct {
		name string
		rec  types.PaperRecord
		want float64
	}{
		{"empty", types.PaperRecord{}, 0},
		{"citation cap", types.PaperRecord{Citations: 10_000_000}, 50},
		{"old paper floors at zero", types.PaperRecord{Year: 1980}, 0},
		{"reference year", types.PaperRecord{Year: 2025}, 30},
		{"pdf only", types.PaperRecord{PDFURL: "u"}, 10},
		{"venue case insensitive", types.PaperRecord{Venue: "proc. of the acm sigcse"}, 10},
		{"unknown venue", types.PaperRecord{Venue: "Local Newsletter"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			assert.InDelta(t, tt.want, Score(&rec, cfg), 1e-9)
		})
	}
}

func TestScore_MonotoneInCitations(t *testing.T) {
	cfg := testCfg()
	prev := -1.0
	for _, c := range []int{0, 1, 2, 5, 10, 99, 100, 1000, 1e5, 1e9} {
		s := Score(&types.PaperRecord{Citations: c, Year: 2020}, cfg)
		assert.GreaterOrEqual(t, s, prev, "citations=%d", c)
		prev = s
	}
}

func TestScore_MonotoneInAge(t *testing.T) {
	cfg := testCfg()
	prev := math.Inf(1)
	for year := 2025; year >= 1950; year-- {
		s := Score(&types.PaperRecord{Year: year, Citations: 3}, cfg)
		assert.LessOrEqual(t, s, prev, "year=%d", year)
		prev = s
	}
}

func TestRank_StableOnTies(t *testing.T) {
	var recs []*types.PaperRecord
	for i := 0; i < 6; i++ {
		recs = append(recs, &types.PaperRecord{ID: fmt.Sprint(i), Year: 2020})
	}
	recs = append(recs, &types.PaperRecord{ID: "top", Year: 2020, Citations: 50})

	ranked := Rank(recs, testCfg())
	require.Len(t, ranked, 7)
	assert.Equal(t, "top", ranked[0].ID)
	for i := 1; i < 7; i++ {
		assert.Equal(t, fmt.Sprint(i-1), ranked[i].ID)
	}
	// input slice order is untouched
	assert.Equal(t, "0", recs[0].ID)
}

func TestSelect(t *testing.T) {
	recs := []*types.PaperRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	sel := Select(recs, 2)
	assert.False(t, sel.Shortfall)
	assert.Len(t, sel.Records, 2)

	sel = Select(recs, 5)
	assert.True(t, sel.Shortfall)
	assert.Len(t, sel.Records, 3)
	assert.Equal(t, 2, sel.Missing())

	sel = Select(recs, 3)
	assert.False(t, sel.Shortfall)
	assert.Equal(t, 0, sel.Missing())
}

func TestSelectWithFallback_RelaxesOnce(t *testing.T) {
	recs := []*types.PaperRecord{
		{ID: "1", Title: "Student web design"},
		{ID: "2", Title: "Student HTML course"},
		{ID: "3", Title: "CSS grid"},
		{ID: "4", Title: "Student motivation"},
		{ID: "5", Title: "Rocks"},
	}
	DefaultScorer().Apply(recs)

	cfg := testCfg()
	cfg.Target = 5
	out := SelectWithFallback(recs, cfg)
	assert.True(t, out.Relaxed)
	assert.Equal(t, 0.5, out.Threshold)
	assert.Equal(t, 4, out.Candidates)
	assert.True(t, out.Shortfall)
	assert.Len(t, out.Records, 4)
}

func TestSelectWithFallback_NoRetryWhenEnough(t *testing.T) {
	recs := []*types.PaperRecord{
		{ID: "1", Title: "Student web design"},
		{ID: "2", Title: "Student HTML course"},
		{ID: "3", Title: "Learning JavaScript"},
	}
	DefaultScorer().Apply(recs)

	cfg := testCfg()
	cfg.Target = 2
	out := SelectWithFallback(recs, cfg)
	assert.False(t, out.Relaxed)
	assert.False(t, out.Shortfall)
	assert.Len(t, out.Records, 2)
	assert.Equal(t, 0.8, out.Threshold)
}

func TestSelectWithFallback_ThreeOfFive(t *testing.T) {
	recs := []*types.PaperRecord{
		{ID: "1", Title: "Student web design"},
		{ID: "2", Title: "Student HTML course"},
		{ID: "3", Title: "Learning JavaScript"},
	}
	DefaultScorer().Apply(recs)

	cfg := testCfg()
	cfg.Target = 5
	out := SelectWithFallback(recs, cfg)
	assert.True(t, out.Relaxed)
	assert.True(t, out.Shortfall)
	assert.Len(t, out.Records, 3)
}

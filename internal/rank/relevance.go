// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores, orders and selects paper records. Relevance is a
// coarse title-keyword test; rank is a weighted sum of citations, recency,
// PDF availability and venue reputation. Both are pure functions of the
// record and the configuration.
package rank

import (
	"strings"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// EducationTerms is the default education-context vocabulary.
var EducationTerms = []string{
	"student", "learning", "education", "teaching", "course", "training", "learner",
}

// TechTerms is the default web-technology vocabulary.
var TechTerms = []string{
	"web design", "web programming", "web development", "html", "css",
	"javascript", "website", "web page", "web-based", "online learning", "e-learning",
}

// Scorer computes relevance from two independent half-point criteria.
// Matching is lowercased substring search, so "html" also hits inside
// longer tokens.
type Scorer struct {
	Education []string
	Tech      []string
}

// DefaultScorer uses the built-in vocabularies.
func DefaultScorer() Scorer {
	return Scorer{Education: EducationTerms, Tech: TechTerms}
}

// Score returns 0, 0.5 or 1.0 for the title.
func (s Scorer) Score(title string) float64 {
	lower := strings.ToLower(title)
	score := 0.0
	if containsAny(lower, s.Education) {
		score += 0.5
	}
	if containsAny(lower, s.Tech) {
		score += 0.5
	}
	return score
}

// Apply sets RelevanceScore on every record.
func (s Scorer) Apply(records []*types.PaperRecord) {
	for _, r := range records {
		r.RelevanceScore = s.Score(r.Title)
	}
}

// Relevance scores a title with the default vocabularies.
func Relevance(title string) float64 {
	return DefaultScorer().Score(title)
}

// FilterRelevant returns the records whose RelevanceScore is at least
// threshold, in input order.
func FilterRelevant(records []*types.PaperRecord, threshold float64) []*types.PaperRecord {
	out := make([]*types.PaperRecord, 0, len(records))
	for _, r := range records {
		if r.RelevanceScore >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

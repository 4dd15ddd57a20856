// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup collapses paper records that refer to the same work.
// Identity is resolved by DOI, then source ID, then normalized title; the
// first occurrence always wins and later duplicates are dropped whole.
package dedup

import (
	"strings"
	"unicode"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// Reason says which identity key caused a record to be dropped.
type Reason string

const (
	ByDOI   Reason = "doi"
	ByID    Reason = "id"
	ByTitle Reason = "title"
)

// Result holds the kept records and per-reason drop counts.
type Result struct {
	Records []*types.PaperRecord
	Dropped map[Reason]int
}

// Removed returns the total number of dropped records.
func (r Result) Removed() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Deduplicate returns the records in input order with duplicates removed.
func Deduplicate(records []*types.PaperRecord) []*types.PaperRecord {
	return DeduplicateWithStats(records).Records
}

// DeduplicateWithStats is Deduplicate with drop accounting.
//
// A record whose DOI was already seen is dropped even when its title
// differs. A record with a novel DOI but a seen normalized title is also
// dropped. An empty title normalizes to "" and is recorded like any other,
// so every record without a title after the first collides.
func DeduplicateWithStats(records []*types.PaperRecord) Result {
	seenDOI := make(map[string]struct{})
	seenID := make(map[string]struct{})
	seenTitle := make(map[string]struct{})

	res := Result{
		Records: make([]*types.PaperRecord, 0, len(records)),
		Dropped: make(map[Reason]int),
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		doi := types.NormalizeDOI(rec.DOI)
		title := NormalizeTitle(rec.Title)

		if doi != "" {
			if _, ok := seenDOI[doi]; ok {
				res.Dropped[ByDOI]++
				continue
			}
		}
		if rec.ID != "" {
			if _, ok := seenID[rec.ID]; ok {
				res.Dropped[ByID]++
				continue
			}
		}
		if _, ok := seenTitle[title]; ok {
			res.Dropped[ByTitle]++
			continue
		}

		if doi != "" {
			seenDOI[doi] = struct{}{}
		}
		if rec.ID != "" {
			seenID[rec.ID] = struct{}{}
		}
		seenTitle[title] = struct{}{}
		res.Records = append(res.Records, rec)
	}
	return res
}

// NormalizeTitle lowercases the title, strips punctuation (anything that is
// not a letter, digit, underscore or whitespace), collapses whitespace runs
// and trims.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

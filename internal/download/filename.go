// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

const (
	titleRunes   = 50
	maxStemBytes = 96
)

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRun      = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Filename returns the deterministic on-disk name for a record:
// {surname}_{year}_{title prefix}.pdf, sanitized and bounded. Two records
// that agree on the truncated stem map to the same file.
func Filename(rec *types.PaperRecord) string {
	author := "Unknown"
	if parts := strings.Fields(rec.FirstAuthor()); len(parts) > 0 {
		author = parts[len(parts)-1]
	}

	year := "Unknown"
	if rec.Year > 0 {
		year = strconv.Itoa(rec.Year)
	}

	title := "Untitled"
	if rec.Title != "" {
		r := []rune(rec.Title)
		if len(r) > titleRunes {
			r = r[:titleRunes]
		}
		title = string(r)
	}

	name := truncateBytes(sanitize(fmt.Sprintf("%s_%s_%s", author, year, title)), maxStemBytes)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func sanitize(s string) string {
	s = invalidChars.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "._")
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

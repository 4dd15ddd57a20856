// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scholar builds search URLs for the Scholar result pages, parses
// those pages into paper records and follows the pagination links.
package scholar

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

var (
	titleMarker  = regexp.MustCompile(`\[(?:PDF|HTML|CITATION|BOOK)\]`)
	authorSplit  = regexp.MustCompile(`,|\sand\s`)
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	citedBy      = regexp.MustCompile(`Cited by (\d+)`)
	doiPattern   = regexp.MustCompile(`10\.\d{4,}/[^\s]+`)
	errNoTitle   = eris.New("result has no title")
	ellipsisName = map[string]bool{"…": true, "...": true}
)

// PageResult is what one result page yields.
type PageResult struct {
	Records []*types.PaperRecord

	// Skipped counts result fragments that could not be parsed.
	Skipped int

	// NextURL is the absolute URL of the following page, or "".
	NextURL string
}

// BuildURL returns a search URL for query restricted to [yearMin, yearMax].
// A zero bound is omitted.
func BuildURL(cfg types.ScholarConfig, query string, yearMin, yearMax int) string {
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	params := url.Values{
		"q":      {query},
		"hl":     {lang},
		"as_sdt": {"0,5"},
	}
	if yearMin > 0 {
		params.Set("as_ylo", strconv.Itoa(yearMin))
	}
	if yearMax > 0 {
		params.Set("as_yhi", strconv.Itoa(yearMax))
	}
	return cfg.BaseURL + "?" + params.Encode()
}

// ParsePage extracts the records on a result page. pageURL is the URL the
// page was fetched from; relative links are resolved against it. A result
// that fails to parse is counted in Skipped and its siblings still parse.
func ParsePage(html []byte, pageURL string) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return PageResult{}, eris.Wrap(err, "parsing result page")
	}

	var out PageResult
	nodes := doc.Find("div.gs_ri")
	if nodes.Length() == 0 {
		nodes = doc.Find("div.gs_r")
	}
	nodes.Each(func(_ int, sel *goquery.Selection) {
		rec, err := parseResult(sel, pageURL)
		if err != nil {
			out.Skipped++
			return
		}
		out.Records = append(out.Records, rec)
	})

	out.NextURL = nextPage(doc, pageURL)
	return out, nil
}

func parseResult(sel *goquery.Selection, pageURL string) (rec *types.PaperRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, eris.Errorf("panic parsing result: %v", r)
		}
	}()

	heading := sel.Find("h3.gs_rt").First()
	if heading.Length() == 0 {
		return nil, errNoTitle
	}
	title := CleanTitle(heading.Text())
	if title == "" {
		return nil, errNoTitle
	}

	rec = types.NewPaperRecord(title)
	rec.ID = RecordID(title)
	if href, ok := heading.Find("a").First().Attr("href"); ok {
		rec.URL = resolve(pageURL, href)
	}

	rec.Authors, rec.Venue, rec.Year = ParseMetaLine(sel.Find("div.gs_a").First().Text())
	rec.Abstract = strings.TrimSpace(sel.Find("div.gs_rs").First().Text())

	// The side column with the PDF link sits beside div.gs_ri inside div.gs_r.
	scope := sel
	if outer := sel.Closest("div.gs_r"); outer.Length() > 0 {
		scope = outer
	}

	scope.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if m := citedBy.FindStringSubmatch(a.Text()); m != nil {
			n, _ := strconv.Atoi(m[1])
			rec.SetCitations(n)
			return false
		}
		return true
	})

	rec.PDFURL = pdfLink(scope, rec.URL, pageURL)
	rec.DOI = types.NormalizeDOI(extractDOI(rec.URL, rec.Abstract))
	return rec, nil
}

// CleanTitle drops the [PDF]/[HTML]/[CITATION]/[BOOK] markers and
// collapses whitespace.
func CleanTitle(s string) string {
	s = titleMarker.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// RecordID derives a stable 12-character ID from a title.
func RecordID(title string) string {
	sum := md5.Sum([]byte(title))
	return hex.EncodeToString(sum[:])[:12]
}

// ParseMetaLine splits an "Authors - Venue, Year - Publisher" line.
func ParseMetaLine(line string) (authors []string, venue string, year int) {
	authors = []string{}
	parts := strings.Split(line, " - ")

	if names := strings.TrimSpace(parts[0]); names != "" {
		for _, a := range authorSplit.Split(names, -1) {
			a = strings.TrimSpace(a)
			if a == "" || ellipsisName[a] {
				continue
			}
			authors = append(authors, a)
		}
	}

	if len(parts) > 1 {
		vy := strings.TrimSpace(parts[1])
		if m := yearPattern.FindString(vy); m != "" {
			year, _ = strconv.Atoi(m)
			venue = strings.Trim(strings.ReplaceAll(vy, m, ""), " ,")
		} else {
			venue = vy
		}
	}
	return authors, venue, year
}

func pdfLink(scope *goquery.Selection, titleURL, pageURL string) string {
	a := scope.Find("div.gs_or_ggsm a, div.gs_ggsd a").First()
	if href, ok := a.Attr("href"); ok && href != "" {
		if strings.Contains(strings.ToLower(href), ".pdf") || strings.Contains(a.Text(), "[PDF]") {
			return resolve(pageURL, href)
		}
	}
	if strings.Contains(strings.ToLower(titleURL), ".pdf") {
		return titleURL
	}
	return ""
}

func extractDOI(link, abstract string) string {
	if m := doiPattern.FindString(link); m != "" {
		return m
	}
	return doiPattern.FindString(abstract)
}

// nextPage finds the link to the following page: an anchor labelled
// "Next", else the last link in the navigation bar when it points past
// the current offset.
func nextPage(doc *goquery.Document, pageURL string) string {
	var href string
	isNext := func(_ int, a *goquery.Selection) bool {
		return strings.TrimSpace(a.Text()) == "Next"
	}
	if a := doc.Find("#gs_n a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.Contains(a.Text(), "Next")
	}).First(); a.Length() > 0 {
		href, _ = a.Attr("href")
	} else if a := doc.Find("a").FilterFunction(isNext).First(); a.Length() > 0 {
		href, _ = a.Attr("href")
	}
	if href != "" {
		return resolve(pageURL, href)
	}

	last := doc.Find("div#gs_n a").Last()
	href, ok := last.Attr("href")
	if !ok || href == "" {
		return ""
	}
	next := resolve(pageURL, href)
	if startOffset(next) <= startOffset(pageURL) {
		return ""
	}
	return next
}

func startOffset(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(u.Query().Get("start"))
	return n
}

func resolve(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// String renders a page summary for logs.
func (p PageResult) String() string {
	return fmt.Sprintf("%d records, %d skipped, next=%t", len(p.Records), p.Skipped, p.NextURL != "")
}

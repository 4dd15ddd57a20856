// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ssemerikov/scholarextractor/pkg/types"
)

// CSLItem is one bibliography entry in CSL-YAML form, readable by Pandoc
// and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
}

// CSLName is a person's name split into family and given parts.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate holds date-parts; only the year is known for papers.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes recs as a CSL-YAML list.
func WriteCSL(w io.Writer, recs []*types.PaperRecord) error {
	items := make([]CSLItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, ToCSL(r))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ToCSL converts a record. Records with a venue are typed as journal
// articles; the rest as generic articles.
func ToCSL(r *types.PaperRecord) CSLItem {
	item := CSLItem{
		ID:             r.ID,
		Type:           "article",
		Title:          r.Title,
		ContainerTitle: r.Venue,
		DOI:            r.DOI,
		URL:            r.URL,
		Abstract:       r.Abstract,
	}
	if r.Venue != "" {
		item.Type = "article-journal"
	}
	for _, a := range r.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if r.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{r.Year}}}
	}
	return item
}

// parseAuthorName splits on the last space: the last token is the family
// name. Scholar-style initials ("AB Smith") come out as Given "AB".
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  strings.TrimSpace(name[:idx]),
		Family: name[idx+1:],
	}
}

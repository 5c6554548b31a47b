// Package domain provides the core record types and error taxonomy shared by
// every layer of the scholar aggregator.
package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// Provider names. These are the registry keys and the values stamped into
// Paper.Source once a record leaves the orchestrator.
const (
	SourceArXiv           = "arxiv"
	SourceCrossref        = "crossref"
	SourceOpenAlex        = "openalex"
	SourcePubMed          = "pubmed"
	SourceSemanticScholar = "semanticscholar"
)

// DefaultSource is the general-purpose provider used when a search names none.
const DefaultSource = SourceSemanticScholar

// KnownSources lists every provider name in registration order.
func KnownSources() []string {
	return []string{
		SourceArXiv,
		SourceCrossref,
		SourceOpenAlex,
		SourcePubMed,
		SourceSemanticScholar,
	}
}

// IsKnownSource reports whether name is one of the built-in provider names.
func IsKnownSource(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range KnownSources() {
		if s == name {
			return true
		}
	}
	return false
}

// Paper is the canonical bibliographic record every provider maps into.
type Paper struct {
	ID                       string   `json:"id"`
	Title                    string   `json:"title"`
	Authors                  []string `json:"authors"`
	Date                     string   `json:"date"`
	Abstract                 string   `json:"abstract"`
	Journal                  string   `json:"journal"`
	DOI                      string   `json:"doi,omitempty"`
	URL                      string   `json:"url"`
	Source                   string   `json:"source"`
	CitationCount            int      `json:"citation_count"`
	InfluentialCitationCount int      `json:"influential_citation_count"`
}

// Year returns the publication year parsed from the leading digits of Date.
// ok is false when Date is empty or does not start with a four digit year.
func (p *Paper) Year() (year int, ok bool) {
	d := strings.TrimSpace(p.Date)
	if len(d) < 4 {
		return 0, false
	}
	head := d[:4]
	for _, r := range head {
		if !unicode.IsDigit(r) {
			return 0, false
		}
	}
	// "20215" is not a year; "2021-05-01" and "2021" are.
	if len(d) > 4 && unicode.IsDigit(rune(d[4])) {
		return 0, false
	}
	y, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return y, true
}

// YearOrZero returns the parsed year, or 0 when it cannot be parsed.
func (p *Paper) YearOrZero() int {
	y, _ := p.Year()
	return y
}

// HasDOI reports whether the paper carries a non-blank DOI.
func (p *Paper) HasDOI() bool {
	return strings.TrimSpace(p.DOI) != ""
}

// NormalizeDOI lower-cases a DOI and strips common resolver and scheme prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return d
}

// Clone returns a deep copy of the paper.
func (p *Paper) Clone() *Paper {
	if p == nil {
		return nil
	}
	c := *p
	if p.Authors != nil {
		c.Authors = append([]string(nil), p.Authors...)
	}
	return &c
}

// Package search layers query parsing, semantic expansion, filtering and
// ranking over the orchestrator's aggregated search.
package search

import (
	"regexp"
	"strconv"
	"strings"
)

// DateRange is an inclusive publication-year range. A nil bound is open.
type DateRange struct {
	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`
}

// Filters narrows a result set. Every field is optional and a zero value
// disables that filter. Titles and DOIs are extracted from the query for
// reporting but are not enforced.
type Filters struct {
	DateRange      *DateRange `json:"date_range,omitempty"`
	Authors        []string   `json:"authors,omitempty"`
	Journals       []string   `json:"journals,omitempty"`
	MinCitations   *int       `json:"min_citations,omitempty"`
	OpenAccessOnly bool       `json:"open_access_only,omitempty"`
	Sources        []string   `json:"sources,omitempty"`
	Titles         []string   `json:"titles,omitempty"`
	DOIs           []string   `json:"dois,omitempty"`
}

// IsZero reports whether no filter is set.
func (f *Filters) IsZero() bool {
	return f == nil || (f.DateRange == nil &&
		len(f.Authors) == 0 &&
		len(f.Journals) == 0 &&
		f.MinCitations == nil &&
		!f.OpenAccessOnly &&
		len(f.Sources) == 0 &&
		len(f.Titles) == 0 &&
		len(f.DOIs) == 0)
}

// Clone returns a deep copy that shares no slices or pointers with f.
func (f *Filters) Clone() *Filters {
	if f == nil {
		return &Filters{}
	}
	c := *f
	if f.DateRange != nil {
		c.DateRange = &DateRange{Start: cloneInt(f.DateRange.Start), End: cloneInt(f.DateRange.End)}
	}
	c.MinCitations = cloneInt(f.MinCitations)
	c.Authors = append([]string(nil), f.Authors...)
	c.Journals = append([]string(nil), f.Journals...)
	c.Sources = append([]string(nil), f.Sources...)
	c.Titles = append([]string(nil), f.Titles...)
	c.DOIs = append([]string(nil), f.DOIs...)
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}

type fieldPattern struct {
	name string
	re   *regexp.Regexp
}

// Field patterns are applied in this order; each strips its matches before
// the next one runs.
var fieldPatterns = []fieldPattern{
	{"author", regexp.MustCompile(`author:"([^"]+)"|author:(\S+)`)},
	{"journal", regexp.MustCompile(`journal:"([^"]+)"|journal:(\S+)`)},
	{"year", regexp.MustCompile(`year:(\d{4})`)},
	{"doi", regexp.MustCompile(`doi:(\S+)`)},
	{"title", regexp.MustCompile(`title:"([^"]+)"`)},
}

var (
	whitespaceRe       = regexp.MustCompile(`\s+`)
	leadingOperatorRe  = regexp.MustCompile(`^\s*(AND|OR|NOT)\s+`)
	trailingOperatorRe = regexp.MustCompile(`\s+(AND|OR|NOT)\s*$`)
)

// ParseQuery extracts field-qualified filters from q and returns the
// remaining free text. Recognized fields:
//
//	author:"Full Name"  author:token
//	journal:"Name"      journal:token
//	year:YYYY           (repeatable; folds into an inclusive range)
//	doi:token
//	title:"Exact words"
//
// The clean query has whitespace collapsed and one leading and one trailing
// boolean connective (AND, OR, NOT) removed.
func ParseQuery(q string) (string, Filters) {
	var filters Filters
	clean := q

	for _, fp := range fieldPatterns {
		matches := fp.re.FindAllStringSubmatch(clean, -1)
		if len(matches) == 0 {
			continue
		}

		var values []string
		for _, m := range matches {
			for _, group := range m[1:] {
				if group != "" {
					values = append(values, group)
				}
			}
		}

		switch fp.name {
		case "author":
			filters.Authors = append(filters.Authors, values...)
		case "journal":
			filters.Journals = append(filters.Journals, values...)
		case "title":
			filters.Titles = append(filters.Titles, values...)
		case "doi":
			filters.DOIs = append(filters.DOIs, values...)
		case "year":
			filters.DateRange = yearRange(values)
		}

		clean = strings.TrimSpace(fp.re.ReplaceAllString(clean, ""))
	}

	clean = strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))
	clean = leadingOperatorRe.ReplaceAllString(clean, "")
	clean = trailingOperatorRe.ReplaceAllString(clean, "")

	return clean, filters
}

func yearRange(values []string) *DateRange {
	var lo, hi int
	for i, v := range values {
		y, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		if i == 0 || y < lo {
			lo = y
		}
		if i == 0 || y > hi {
			hi = y
		}
	}
	return &DateRange{Start: &lo, End: &hi}
}

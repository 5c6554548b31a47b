package search

import (
	"slices"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// ApplyFilters returns the papers passing every active filter, in input
// order. A nil or zero Filters returns papers unchanged.
func ApplyFilters(papers []*domain.Paper, f *Filters) []*domain.Paper {
	if f.IsZero() {
		return papers
	}
	out := make([]*domain.Paper, 0, len(papers))
	for _, p := range papers {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *Filters) matches(p *domain.Paper) bool {
	if f.DateRange != nil && !f.DateRange.contains(p) {
		return false
	}
	if len(f.Authors) > 0 && !matchesAnyAuthor(p.Authors, f.Authors) {
		return false
	}
	if len(f.Journals) > 0 && !containsAnyFold(p.Journal, f.Journals) {
		return false
	}
	if f.MinCitations != nil && p.CitationCount < *f.MinCitations {
		return false
	}
	if f.OpenAccessOnly && !IsOpenAccess(p.URL) {
		return false
	}
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, p.Source) {
		return false
	}
	return true
}

// contains reports whether the paper's year is inside the range. Papers with
// a missing or unparseable date always pass.
func (r *DateRange) contains(p *domain.Paper) bool {
	year, ok := p.Year()
	if !ok {
		return true
	}
	if r.Start != nil && year < *r.Start {
		return false
	}
	if r.End != nil && year > *r.End {
		return false
	}
	return true
}

func matchesAnyAuthor(authors, wanted []string) bool {
	for _, a := range authors {
		if containsAnyFold(a, wanted) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// IsOpenAccess applies the open-access heuristic: the URL points straight at
// a PDF or carries an "openaccess" marker.
func IsOpenAccess(url string) bool {
	return strings.HasSuffix(url, ".pdf") ||
		strings.HasSuffix(url, ".PDF") ||
		strings.Contains(strings.ToLower(url), "openaccess")
}

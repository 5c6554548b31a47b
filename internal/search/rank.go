package search

import (
	"math"
	"slices"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// RankingMode selects how results are ordered.
type RankingMode string

const (
	RankRelevance RankingMode = "relevance"
	RankDate      RankingMode = "date"
	RankCitations RankingMode = "citations"
)

// Normalize maps unknown or empty modes to RankRelevance.
func (m RankingMode) Normalize() RankingMode {
	switch RankingMode(strings.ToLower(string(m))) {
	case RankDate:
		return RankDate
	case RankCitations:
		return RankCitations
	default:
		return RankRelevance
	}
}

// Score weights.
const (
	titleWeight    = 10
	abstractWeight = 5
	authorWeight   = 3
	maxCitationPts = 20
	maxRecencyPts  = 5
	recencyDecay   = 0.5
)

// Rank returns a newly ordered copy of papers. All modes sort stably so ties
// keep their input order; papers itself is never modified.
func Rank(papers []*domain.Paper, mode RankingMode, query string, referenceYear int) []*domain.Paper {
	out := slices.Clone(papers)

	switch mode.Normalize() {
	case RankDate:
		slices.SortStableFunc(out, func(a, b *domain.Paper) int {
			return b.YearOrZero() - a.YearOrZero()
		})
	case RankCitations:
		slices.SortStableFunc(out, func(a, b *domain.Paper) int {
			return b.CitationCount - a.CitationCount
		})
	default:
		terms := QueryTerms(query)
		scores := make(map[*domain.Paper]float64, len(out))
		for _, p := range out {
			scores[p] = RelevanceScore(p, terms, referenceYear)
		}
		slices.SortStableFunc(out, func(a, b *domain.Paper) int {
			return compareDesc(scores[a], scores[b])
		})
	}
	return out
}

// QueryTerms splits query on whitespace into unique lower-cased terms,
// keeping first-seen order.
func QueryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(terms, f) {
			terms = append(terms, f)
		}
	}
	return terms
}

// RelevanceScore is
//
//	10*title_hits + 5*abstract_hits + 3*author_hits
//	  + min(sqrt(citations), 20)
//	  + max(0, 5 - 0.5*(referenceYear - year))
//
// where a hit is a term occurring as a substring. The recency term is
// skipped for papers without a parseable year.
func RelevanceScore(p *domain.Paper, terms []string, referenceYear int) float64 {
	score := TermScore(p, terms)
	score += CitationBonus(p.CitationCount)
	if year, ok := p.Year(); ok {
		score += RecencyBonus(float64(referenceYear - year))
	}
	return score
}

// TermScore weights term hits in the title, abstract and author list.
func TermScore(p *domain.Paper, terms []string) float64 {
	title := strings.ToLower(p.Title)
	abstract := strings.ToLower(p.Abstract)
	authors := strings.ToLower(strings.Join(p.Authors, " "))

	var score float64
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += titleWeight
		}
		if strings.Contains(abstract, t) {
			score += abstractWeight
		}
		if strings.Contains(authors, t) {
			score += authorWeight
		}
	}
	return score
}

// CitationBonus is min(sqrt(citations), 20), or 0 for non-positive counts.
func CitationBonus(citations int) float64 {
	if citations <= 0 {
		return 0
	}
	return math.Min(math.Sqrt(float64(citations)), maxCitationPts)
}

// RecencyBonus is max(0, 5 - 0.5*distance), where distance is in years.
func RecencyBonus(distance float64) float64 {
	return math.Max(0, maxRecencyPts-recencyDecay*distance)
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

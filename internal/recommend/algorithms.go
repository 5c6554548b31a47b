package recommend

import (
	"context"
	"math"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/dedup"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/search"
)

// Candidate generation limits and fixed scores.
const (
	candidateFactor = 2

	maxInterests       = 3
	maxLikedForAuthors = 5
	maxAuthorsPerPaper = 2
	authorSearchLimit  = 5
	maxLikedForJournal = 3
	journalSearchLimit = 10

	preferredAuthorBonus  = 2.0
	preferredJournalBonus = 1.5

	collaborativeScore = 0.8
	citationScore      = 0.7
)

// Reasons attached to candidates.
const (
	reasonInterestPrefix = "Related to interest: "
	reasonCollaborative  = "Similar users liked this paper"
	reasonCitation       = "Frequently cited in your field"
	reasonSeparator      = "; "
)

// run is the per-request state shared by the algorithms.
type run struct {
	engine  *Engine
	profile UserProfile
	lookup  *paperLookup
}

// content searches the first three interests and scores each candidate on
// interest term hits, citations, profile preferences and recency.
func (r *run) content(ctx context.Context, limit int) ([]Recommendation, error) {
	var recs []Recommendation
	for _, term := range head(r.profile.Interests, maxInterests) {
		papers, err := r.engine.finder.Search(ctx, term, nil, limit*candidateFactor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.engine.logger.Warn().Err(err).Str("interest", term).Msg("interest search failed")
			continue
		}
		terms := search.QueryTerms(term)
		for _, p := range papers {
			recs = append(recs, Recommendation{
				Paper:  p,
				Score:  r.contentScore(p, terms),
				Reason: reasonInterestPrefix + term,
			})
		}
	}

	recs = uniqueByID(recs)
	sortByScore(recs)
	return head(recs, limit), nil
}

func (r *run) contentScore(p *domain.Paper, terms []string) float64 {
	score := search.TermScore(p, terms) + search.CitationBonus(p.CitationCount)

	for _, a := range p.Authors {
		if containsFold(r.profile.PreferredAuthors, a) {
			score += preferredAuthorBonus
		}
	}
	if p.Journal != "" && containsFold(r.profile.PreferredJournals, p.Journal) {
		score += preferredJournalBonus
	}

	if year, ok := p.Year(); ok {
		if mean := r.profile.TemporalPreference; mean != nil {
			score += search.RecencyBonus(math.Abs(float64(year) - *mean))
		} else {
			score += search.RecencyBonus(float64(r.engine.referenceYear() - year))
		}
	}
	return score
}

// collaborative searches by the leading authors of liked papers.
func (r *run) collaborative(ctx context.Context, limit int) ([]Recommendation, error) {
	excluded := r.likedSet()
	var recs []Recommendation

	for _, id := range head(r.profile.LikedPapers, maxLikedForAuthors) {
		liked, err := r.lookup.get(ctx, id)
		if err != nil || liked == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if liked.ID != "" {
			excluded[liked.ID] = struct{}{}
		}
		for _, author := range head(liked.Authors, maxAuthorsPerPaper) {
			papers, err := r.engine.finder.Search(ctx, `author:"`+author+`"`, nil, authorSearchLimit)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.engine.logger.Warn().Err(err).Str("author", author).Msg("author search failed")
				continue
			}
			for _, p := range papers {
				recs = append(recs, Recommendation{Paper: p, Score: collaborativeScore, Reason: reasonCollaborative})
			}
		}
	}

	return head(uniqueByID(exclude(recs, excluded)), limit), nil
}

// citation searches the journals of liked papers.
func (r *run) citation(ctx context.Context, limit int) ([]Recommendation, error) {
	excluded := r.likedSet()
	var recs []Recommendation

	for _, id := range head(r.profile.LikedPapers, maxLikedForJournal) {
		liked, err := r.lookup.get(ctx, id)
		if err != nil || liked == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if liked.ID != "" {
			excluded[liked.ID] = struct{}{}
		}
		if liked.Journal == "" {
			continue
		}
		papers, err := r.engine.finder.Search(ctx, `journal:"`+liked.Journal+`"`, nil, journalSearchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.engine.logger.Warn().Err(err).Str("journal", liked.Journal).Msg("journal search failed")
			continue
		}
		for _, p := range papers {
			recs = append(recs, Recommendation{Paper: p, Score: citationScore, Reason: reasonCitation})
		}
	}

	return head(uniqueByID(exclude(recs, excluded)), limit), nil
}

// hybrid runs the three strategies concurrently and merges their candidates
// by id. Merged scores are the mean of the contributing scores and reasons
// are joined in contribution order.
func (r *run) hybrid(ctx context.Context, limit int) ([]Recommendation, error) {
	strategies := []func(context.Context, int) ([]Recommendation, error){
		r.content,
		r.collaborative,
		r.citation,
	}
	results := make([][]Recommendation, len(strategies))

	var g errgroup.Group
	for i, strategy := range strategies {
		g.Go(func() error {
			recs, err := strategy(ctx, limit*candidateFactor)
			if err != nil {
				r.engine.logger.Warn().Err(err).Msg("recommendation strategy failed")
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type merged struct {
		rec     Recommendation
		sum     float64
		n       int
		reasons []string
	}
	var order []string
	byKey := make(map[string]*merged)
	for _, recs := range results {
		for _, rec := range recs {
			key := recKey(rec.Paper)
			m, ok := byKey[key]
			if !ok {
				m = &merged{rec: rec}
				byKey[key] = m
				order = append(order, key)
			}
			m.sum += rec.Score
			m.n++
			m.reasons = append(m.reasons, rec.Reason)
		}
	}

	out := make([]Recommendation, 0, len(order))
	for _, key := range order {
		m := byKey[key]
		rec := m.rec
		// Arithmetic mean over every algorithm that found the paper. A pairwise
		// running fold ((a+b)/2+c)/2 would overweight the last algorithm.
		rec.Score = m.sum / float64(m.n)
		rec.Reason = strings.Join(m.reasons, reasonSeparator)
		out = append(out, rec)
	}
	sortByScore(out)
	return head(out, limit), nil
}

func (r *run) likedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.profile.LikedPapers))
	for _, id := range r.profile.LikedPapers {
		set[id] = struct{}{}
	}
	return set
}

// recKey is the paper id, or the dedup key for papers without one.
func recKey(p *domain.Paper) string {
	if p.ID != "" {
		return p.ID
	}
	return dedup.Key(p)
}

func uniqueByID(recs []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Paper == nil {
			continue
		}
		key := recKey(rec.Paper)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func exclude(recs []Recommendation, ids map[string]struct{}) []Recommendation {
	return slices.DeleteFunc(recs, func(rec Recommendation) bool {
		if rec.Paper == nil {
			return true
		}
		_, skip := ids[rec.Paper.ID]
		return skip
	})
}

func sortByScore(recs []Recommendation) {
	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

func containsFold(values []string, v string) bool {
	return slices.ContainsFunc(values, func(x string) bool { return strings.EqualFold(x, v) })
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

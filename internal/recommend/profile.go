package recommend

import (
	"context"
	"slices"
)

// Profile sampling limits.
const (
	maxSampledPapers = 20
	topSources       = 3
	topAuthors       = 5
	topJournals      = 3
)

// UserProfile summarizes a user's interaction history. It is rebuilt on
// every request.
type UserProfile struct {
	UserID             string   `json:"user_id,omitempty"`
	LikedPapers        []string `json:"liked_papers"`
	ReadPapers         []string `json:"read_papers"`
	Interests          []string `json:"interests"`
	PreferredSources   []string `json:"preferred_sources"`
	PreferredAuthors   []string `json:"preferred_authors"`
	PreferredJournals  []string `json:"preferred_journals"`
	TemporalPreference *float64 `json:"temporal_preference,omitempty"`
	SampledPapers      int      `json:"sampled_papers"`
}

// BuildProfile fetches up to 20 sampled papers, liked before read, and ranks
// their sources, authors and journals by frequency. Fetch failures and
// absent papers are skipped.
func BuildProfile(ctx context.Context, lookup *paperLookup, req Request) UserProfile {
	profile := UserProfile{
		UserID:            req.UserID,
		LikedPapers:       nonNil(req.LikedPapers),
		ReadPapers:        nonNil(req.ReadPapers),
		Interests:         nonNil(req.Interests),
		PreferredSources:  []string{},
		PreferredAuthors:  []string{},
		PreferredJournals: []string{},
	}

	ids := append(append([]string{}, req.LikedPapers...), req.ReadPapers...)
	if len(ids) > maxSampledPapers {
		ids = ids[:maxSampledPapers]
	}

	var sources, authors, journals counter
	yearSum, yearCount := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		p, err := lookup.get(ctx, id)
		if err != nil || p == nil {
			continue
		}
		profile.SampledPapers++
		sources.add(p.Source)
		for _, a := range p.Authors {
			authors.add(a)
		}
		journals.add(p.Journal)
		if y, ok := p.Year(); ok {
			yearSum += y
			yearCount++
		}
	}

	profile.PreferredSources = sources.top(topSources)
	profile.PreferredAuthors = authors.top(topAuthors)
	profile.PreferredJournals = journals.top(topJournals)
	if yearCount > 0 {
		mean := float64(yearSum) / float64(yearCount)
		profile.TemporalPreference = &mean
	}
	return profile
}

// counter counts non-empty values and remembers first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func (c *counter) add(v string) {
	if v == "" {
		return
	}
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, seen := c.counts[v]; !seen {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

// top returns the n most frequent values. Ties keep first-seen order.
func (c *counter) top(n int) []string {
	ranked := slices.Clone(c.order)
	slices.SortStableFunc(ranked, func(a, b string) int {
		return c.counts[b] - c.counts[a]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		return []string{}
	}
	return ranked
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

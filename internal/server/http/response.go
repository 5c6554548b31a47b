package httpserver

import (
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/search"
)

type sourcesResponse struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

type searchResponse struct {
	Query   string          `json:"query"`
	Sources []string        `json:"sources,omitempty"`
	Papers  []*domain.Paper `json:"papers"`
	Count   int             `json:"count"`
}

type batchFetchResponse struct {
	Papers    []*domain.Paper `json:"papers"`
	Requested int             `json:"requested"`
	Found     int             `json:"found"`
	// Missing lists requested ids that resolved to nothing, in request order.
	Missing []string `json:"missing,omitempty"`
}

type parseQueryResponse struct {
	OriginalQuery string         `json:"original_query"`
	CleanQuery    string         `json:"clean_query"`
	Filters       search.Filters `json:"filters"`
}

func papersOrEmpty(papers []*domain.Paper) []*domain.Paper {
	if papers == nil {
		return []*domain.Paper{}
	}
	return papers
}

// missingIDs returns the ids no paper in found was fetched for. A paper
// matches an id by provider id or DOI, so the result is best effort for
// ids that a provider rewrote.
func missingIDs(ids []string, found []*domain.Paper) []string {
	seen := make(map[string]struct{}, len(found)*2)
	for _, p := range found {
		if p.ID != "" {
			seen[p.ID] = struct{}{}
		}
		if doi := domain.NormalizeDOI(p.DOI); doi != "" {
			seen[doi] = struct{}{}
		}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, ok := seen[domain.NormalizeDOI(id)]; ok {
			continue
		}
		missing = append(missing, id)
	}
	return missing
}

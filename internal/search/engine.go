package search

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/dedup"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

const (
	// EngineVersion is reported in every response's metadata.
	EngineVersion = "2.0.0"

	// DefaultLimit applies when a request carries a non-positive limit.
	DefaultLimit = 20

	// DefaultMaxConcurrency bounds in-flight (query, source) searches.
	DefaultMaxConcurrency = 8

	// overfetchFactor widens each per-source search so filtering still
	// leaves enough results to fill the limit.
	overfetchFactor = 2
)

// Searcher is the aggregated search the engine builds on.
// *fetcher.Orchestrator satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, error)
	AvailableSources() []string
}

// Config tunes the engine.
type Config struct {
	// ReferenceYear anchors the recency bonus. Zero means the clock's year.
	ReferenceYear int
	// MaxConcurrency bounds concurrent (query, source) searches.
	MaxConcurrency int
	// Now is the engine clock. Defaults to time.Now.
	Now func() time.Time
}

// Request is an advanced search request.
type Request struct {
	Query       string
	Sources     []string
	Limit       int
	Filters     *Filters
	Semantic    bool
	RankingMode RankingMode
}

// Metadata describes how a response was produced.
type Metadata struct {
	OriginalQuery       string         `json:"original_query"`
	CleanQuery          string         `json:"clean_query"`
	ExpandedQueries     []string       `json:"expanded_queries"`
	QueryExpansionUsed  bool           `json:"query_expansion_used"`
	SourcesSearched     []string       `json:"sources_searched"`
	SourceResults       map[string]int `json:"source_results"`
	TotalResultsFound   int            `json:"total_results_found"`
	ResultsReturned     int            `json:"results_returned"`
	FiltersApplied      Filters        `json:"filters_applied"`
	SearchTimestamp     time.Time      `json:"search_timestamp"`
	SearchEngineVersion string         `json:"search_engine_version"`
	RankingMethod       RankingMode    `json:"ranking_method"`
}

// Response is an advanced search result. TotalFound counts unique papers
// before filtering and TotalFiltered counts those surviving the filters.
type Response struct {
	Query         string          `json:"query"`
	Results       []*domain.Paper `json:"results"`
	Metadata      Metadata        `json:"metadata"`
	TotalFound    int             `json:"total_found"`
	TotalFiltered int             `json:"total_filtered"`
	TotalReturned int             `json:"total_returned"`
}

// Engine runs advanced searches over a Searcher.
type Engine struct {
	searcher Searcher
	expander Expander
	cfg      Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates an engine. metrics may be nil.
func NewEngine(searcher Searcher, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Engine{
		searcher: searcher,
		expander: Expander{Now: cfg.Now},
		cfg:      cfg,
		logger:   observability.ComponentLogger(logger, "search"),
		metrics:  metrics,
	}
}

// AdvancedSearch parses, expands, fans out, then dedups, filters, ranks and
// truncates. Individual (query, source) failures are logged and dropped; the
// call itself only fails if ctx is done before any work completes.
func (e *Engine) AdvancedSearch(ctx context.Context, req Request) (*Response, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	mode := req.RankingMode.Normalize()

	clean, parsed := ParseQuery(req.Query)
	filters := mergeFilters(req.Filters, parsed)

	queries := e.expander.Expand(clean, req.Semantic)

	sources := req.Sources
	if len(sources) == 0 {
		sources = e.searcher.AvailableSources()
	}

	raw, counts := e.fanOut(ctx, queries, sources, limit*overfetchFactor)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unique := dedup.Deduplicate(raw)
	filtered := ApplyFilters(unique, filters)
	ranked := Rank(filtered, mode, clean, e.referenceYear())
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	searched := slices.Clone(sources)
	slices.Sort(searched)
	searched = slices.Compact(searched)

	total := 0
	for _, n := range counts {
		total += n
	}

	e.metrics.RecordAdvancedSearch()
	e.logger.Info().
		Str("query", req.Query).
		Str("clean_query", clean).
		Int("expanded_queries", len(queries)).
		Int("found", len(unique)).
		Int("filtered", len(filtered)).
		Int("returned", len(ranked)).
		Msg("advanced search completed")

	return &Response{
		Query:   req.Query,
		Results: ranked,
		Metadata: Metadata{
			OriginalQuery:       req.Query,
			CleanQuery:          clean,
			ExpandedQueries:     queries,
			QueryExpansionUsed:  len(queries) > 1,
			SourcesSearched:     searched,
			SourceResults:       counts,
			TotalResultsFound:   total,
			ResultsReturned:     len(ranked),
			FiltersApplied:      *filters,
			SearchTimestamp:     e.cfg.Now(),
			SearchEngineVersion: EngineVersion,
			RankingMethod:       mode,
		},
		TotalFound:    len(unique),
		TotalFiltered: len(filtered),
		TotalReturned: len(ranked),
	}, nil
}

// fanOut searches every (query, source) pair. Results are merged in pair
// order so output is independent of completion order.
func (e *Engine) fanOut(ctx context.Context, queries, sources []string, limit int) ([]*domain.Paper, map[string]int) {
	type pair struct{ query, source string }
	pairs := make([]pair, 0, len(queries)*len(sources))
	for _, q := range queries {
		for _, s := range sources {
			pairs = append(pairs, pair{q, s})
		}
	}

	results := make([][]*domain.Paper, len(pairs))
	counts := make(map[string]int, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, p := range pairs {
		g.Go(func() error {
			papers, err := e.searcher.Search(gctx, p.query, []string{p.source}, limit)
			if err != nil {
				l := observability.WithSearchContext(e.logger, p.query, p.source)
				l.Warn().Err(err).Msg("advanced search leg failed")
				return nil
			}
			results[i] = papers
			mu.Lock()
			counts[p.source] += len(papers)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var merged []*domain.Paper
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, counts
}

func (e *Engine) referenceYear() int {
	if e.cfg.ReferenceYear != 0 {
		return e.cfg.ReferenceYear
	}
	return e.cfg.Now().Year()
}

// mergeFilters folds query-parsed filters into the explicit ones. Authors,
// journals, titles and DOIs accumulate; a parsed year range applies only
// when no explicit range was given.
func mergeFilters(explicit *Filters, parsed Filters) *Filters {
	f := explicit.Clone()
	f.Authors = append(f.Authors, parsed.Authors...)
	f.Journals = append(f.Journals, parsed.Journals...)
	f.Titles = append(f.Titles, parsed.Titles...)
	f.DOIs = append(f.DOIs, parsed.DOIs...)
	if f.DateRange == nil && parsed.DateRange != nil {
		f.DateRange = parsed.DateRange
	}
	return f
}

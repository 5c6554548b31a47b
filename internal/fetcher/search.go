package fetcher

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/dedup"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// Search outcome labels used for metrics.
const (
	statusOK      = "ok"
	statusPartial = "partial"
	statusCached  = "cached"
	statusError   = "error"
)

// SearchReport describes how an aggregated search was served.
type SearchReport struct {
	Query string `json:"query"`
	// SourcesUsed are the registered providers that were called, in request order.
	SourcesUsed []string `json:"sources_used"`
	// SourcesDropped are requested names with no registered provider.
	SourcesDropped []string `json:"sources_dropped,omitempty"`
	// Counts holds the number of papers each provider returned before merging.
	Counts map[string]int `json:"counts"`
	// Errors holds the final error message of every provider that failed.
	Errors map[string]string `json:"errors,omitempty"`
	// Duplicates is the number of records removed while merging.
	Duplicates int  `json:"duplicates"`
	CacheHit   bool `json:"cache_hit"`
}

// Failed returns the names of providers that failed, sorted.
func (r *SearchReport) Failed() []string {
	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CacheKey derives the deterministic cache key for a search. The source set
// is lower-cased, deduplicated and sorted; an empty set is "default".
func CacheKey(query string, sources []string, limit int) string {
	return fmt.Sprintf("search:%s:%s:%d", query, normalizeSourceSet(sources), limit)
}

func normalizeSourceSet(sources []string) string {
	set := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set = append(set, s)
		}
	}
	if len(set) == 0 {
		return "default"
	}
	sort.Strings(set)
	return strings.Join(slices.Compact(set), ",")
}

// Search runs query against the requested sources concurrently and returns
// the merged, deduplicated result sorted newest first, capped at limit.
//
// Provider failures never fail the search; they are logged and counted. The
// only error returned is an *domain.OrchestrationError when no requested
// source is registered.
func (o *Orchestrator) Search(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, error) {
	papers, _, err := o.SearchDetailed(ctx, query, sources, limit)
	return papers, err
}

// SearchDetailed is Search plus a report of what each provider contributed.
func (o *Orchestrator) SearchDetailed(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, *SearchReport, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := o.now()
	logger := observability.WithRequestContext(ctx, o.logger).With().Str("query", query).Logger()
	report := &SearchReport{Query: query, Counts: map[string]int{}}

	key := CacheKey(query, sources, limit)
	cached, hit, err := o.cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("cache_key", key).Msg("cache read failed, treating as miss")
	}
	if hit {
		o.metrics.RecordCacheHit()
		o.metrics.RecordSearch(statusCached, o.now().Sub(start).Seconds())
		report.CacheHit = true
		return cached, report, nil
	}
	o.metrics.RecordCacheMiss()

	valid, dropped := o.resolveSources(sources)
	report.SourcesUsed = valid
	report.SourcesDropped = dropped
	for _, name := range dropped {
		logger.Warn().Str("source", name).Msg("unknown source requested, skipping")
	}
	if len(valid) == 0 {
		o.metrics.RecordSearch(statusError, o.now().Sub(start).Seconds())
		return nil, report, domain.NewOrchestrationError("search", query, dropped, domain.ErrNoValidSources)
	}

	perSource := o.fanOut(ctx, query, valid, limit, report)

	merged := make([]*domain.Paper, 0)
	for i, name := range valid {
		for _, p := range perSource[i] {
			if p == nil {
				continue
			}
			if p.Source == "" {
				p.Source = name
			}
			merged = append(merged, p)
		}
	}

	unique := dedup.Deduplicate(merged)
	report.Duplicates = len(merged) - len(unique)
	o.metrics.RecordPaperDuplicates(report.Duplicates)

	SortByYearThenTitle(unique)
	result := papersources.TruncatePapers(unique, limit)

	status := statusOK
	if len(report.Errors) > 0 {
		status = statusPartial
	} else if ctx.Err() == nil {
		if err := o.cache.Set(ctx, key, result, o.cacheTTL); err != nil {
			logger.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
		}
	}

	elapsed := o.now().Sub(start)
	o.metrics.RecordSearch(status, elapsed.Seconds())
	logger.Info().
		Strs("sources", valid).
		Int("results", len(result)).
		Int("duplicates", report.Duplicates).
		Strs("failed_sources", report.Failed()).
		Dur("duration", elapsed).
		Msg("search completed")

	o.publishSearchCompleted(ctx, report, len(result), elapsed)

	return result, report, nil
}

// resolveSources maps the requested names onto registered providers, keeping
// request order and dropping duplicates. An empty request selects the
// default source.
func (o *Orchestrator) resolveSources(requested []string) (valid, dropped []string) {
	if len(requested) == 0 {
		requested = []string{o.defaultSource}
	}
	seen := make(map[string]struct{}, len(requested))
	for _, raw := range requested {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := o.registry.Resolve(name); ok {
			valid = append(valid, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	return valid, dropped
}

// fanOut calls every source concurrently. Branches never return errors so
// one failure cannot cancel its siblings.
func (o *Orchestrator) fanOut(ctx context.Context, query string, sources []string, limit int, report *SearchReport) [][]*domain.Paper {
	results := make([][]*domain.Paper, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)

	for i, name := range sources {
		provider, _ := o.registry.Resolve(name)
		g.Go(func() error {
			papers, err := callProvider(gctx, o, name, "search", func(ctx context.Context) ([]*domain.Paper, error) {
				return provider.Search(ctx, query, limit)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = ensureMap(report.Errors)
				report.Errors[name] = err.Error()
				l := observability.WithSearchContext(o.logger, query, name)
				l.Warn().Err(err).Msg("provider search failed")
				return nil
			}
			report.Counts[name] = len(papers)
			results[i] = papers
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// callProvider runs one provider operation behind the shared limiter, a
// per-call timeout and the retry policy, recording metrics as it goes.
func callProvider[T any](ctx context.Context, o *Orchestrator, source, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	start := o.now()
	var zero T

	if err := o.limiter.Wait(ctx); err != nil {
		o.metrics.RecordProviderFailure(source, operation, 0)
		return zero, fmt.Errorf("request limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	notify := func(err error, wait time.Duration) {
		o.metrics.RecordProviderRetry(source)
		o.logger.Debug().
			Err(err).
			Str("source", source).
			Str("operation", operation).
			Dur("wait", wait).
			Msg("retrying provider call")
	}

	res, err := Do(callCtx, o.retry, notify, op)
	elapsed := o.now().Sub(start).Seconds()
	if err != nil {
		o.metrics.RecordProviderFailure(source, operation, elapsed)
		return zero, err
	}
	o.metrics.RecordProviderRequest(source, operation, elapsed)
	return res, nil
}

func (o *Orchestrator) publishSearchCompleted(ctx context.Context, report *SearchReport, count int, elapsed time.Duration) {
	err := o.events.Dispatch(ctx, events.EmitParams{
		AggregateID:   report.Query,
		EventType:     events.TypeSearchCompleted,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		Payload: events.SearchCompleted{
			Query:         report.Query,
			Sources:       report.SourcesUsed,
			FailedSources: report.Failed(),
			ResultCount:   count,
			Cached:        report.CacheHit,
			DurationMS:    elapsed.Milliseconds(),
		},
	})
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to publish search event")
	}
}

// SortByYearThenTitle orders papers by publication year descending, then by
// title descending. Unparseable years sort as 0. The sort is stable.
func SortByYearThenTitle(papers []*domain.Paper) {
	slices.SortStableFunc(papers, func(a, b *domain.Paper) int {
		if ya, yb := a.YearOrZero(), b.YearOrZero(); ya != yb {
			return yb - ya
		}
		return strings.Compare(b.Title, a.Title)
	})
}

func ensureMap(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return m
}

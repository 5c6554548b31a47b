package fetcher

import (
	"context"
	"errors"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// Fetch result labels used for metrics.
const (
	fetchFound  = "found"
	fetchAbsent = "absent"
	fetchError  = "error"
)

// priorityByKind seeds the fallback chain for each identifier kind. The
// generic catalogue answers bare numeric ids before the biomedical index.
var priorityByKind = map[papersources.IdentifierKind][]string{
	papersources.KindNumeric: {domain.SourceSemanticScholar, domain.SourcePubMed},
	papersources.KindDomain:  {domain.SourceArXiv, domain.SourceSemanticScholar},
	papersources.KindDOI:     {domain.SourceCrossref, domain.SourceSemanticScholar},
	papersources.KindUnknown: {domain.SourceSemanticScholar},
}

// FetchOrder returns the providers Fetch would try for identifier, in order.
// A registered source hint goes first, then the kind-specific priority list,
// then every other registered provider in registration order.
func (o *Orchestrator) FetchOrder(identifier, source string) []string {
	order := make([]string, 0, o.registry.Len())
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		if _, ok := o.registry.Resolve(name); !ok {
			return
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}

	add(source)
	for _, name := range priorityByKind[papersources.Classify(identifier)] {
		add(name)
	}
	for _, name := range o.registry.ListAll() {
		add(name)
	}
	return order
}

// Fetch resolves identifier by trying providers one at a time in FetchOrder.
// The first provider returning a record wins; later providers are not
// called. It returns (nil, nil) when every provider reported the record
// absent or failed.
//
// With no providers registered it returns an *domain.OrchestrationError
// wrapping domain.ErrNoProviders. If ctx ends mid-chain the context error is
// returned.
func (o *Orchestrator) Fetch(ctx context.Context, identifier, source string) (*domain.Paper, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewValidationError("identifier", "cannot be empty")
	}
	if o.registry.Len() == 0 {
		o.metrics.RecordFetch(fetchError)
		return nil, domain.NewOrchestrationError("fetch", identifier, nil, domain.ErrNoProviders)
	}

	kind := papersources.Classify(identifier)
	logger := observability.WithFetchContext(observability.WithRequestContext(ctx, o.logger), identifier, string(kind))
	order := o.FetchOrder(identifier, source)

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			o.metrics.RecordFetch(fetchError)
			return nil, err
		}

		provider, _ := o.registry.Resolve(name)
		paper, err := callProvider(ctx, o, name, "fetch", func(ctx context.Context) (*domain.Paper, error) {
			return provider.Fetch(ctx, identifier)
		})
		if err != nil {
			logger.Warn().Err(err).Str("source", name).Msg("provider fetch failed, trying next")
			continue
		}
		if paper == nil {
			logger.Debug().Str("source", name).Msg("not found at provider")
			continue
		}

		if paper.Source == "" {
			paper.Source = name
		}
		o.metrics.RecordFetch(fetchFound)
		logger.Debug().Str("source", name).Msg("paper fetched")
		return paper, nil
	}

	if err := ctx.Err(); err != nil {
		o.metrics.RecordFetch(fetchError)
		return nil, err
	}
	o.metrics.RecordFetch(fetchAbsent)
	logger.Info().Strs("attempted", order).Msg("paper not found at any provider")
	return nil, nil
}

// BatchFetch resolves ids one after another through Fetch. Absent ids and
// per-id failures are skipped; found papers are returned in input order.
// Only an orchestration failure or context cancellation stops the batch,
// in which case the papers found so far are returned with the error.
func (o *Orchestrator) BatchFetch(ctx context.Context, ids []string) ([]*domain.Paper, error) {
	found := make([]*domain.Paper, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		paper, err := o.Fetch(ctx, id, "")
		if err != nil {
			if isBatchFatal(ctx, err) {
				return found, err
			}
			o.logger.Warn().Err(err).Str("identifier", id).Msg("batch fetch: skipping id")
			continue
		}
		if paper != nil {
			found = append(found, paper)
		}
	}
	return found, nil
}

func isBatchFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var oe *domain.OrchestrationError
	return errors.As(err, &oe)
}

// Package papersources defines the provider contract every bibliographic source
// implements, the registry that resolves providers by name, the identifier
// classifier used to order fallback lookups, and the rate-limited HTTP client
// the concrete providers share.
//
// Example usage:
//
//	registry := papersources.NewRegistry()
//	registry.Register(arxiv.New(arxiv.Config{}))
//	registry.Register(semanticscholar.New(semanticscholar.Config{}))
//
//	p, ok := registry.Resolve("arxiv")
//	papers, err := p.Search(ctx, "graph neural networks", 10)
package papersources

import (
	"context"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Provider is a read-only adapter over one external bibliographic source.
// Implementations map their native response format into domain.Paper and are
// solely responsible for that mapping.
type Provider interface {
	// Name returns the lowercase registry name of the provider
	// (for example "arxiv" or "semanticscholar").
	Name() string

	// Search returns at most limit papers matching query. Zero matches is
	// an empty slice and a nil error; an error means the call failed.
	//
	// Errors are classified: *domain.NetworkError and *domain.RateLimitError
	// are transient, *domain.ExternalAPIError is transient only for 5xx.
	Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error)

	// Fetch retrieves a single paper by identifier. It returns (nil, nil)
	// when the identifier is well formed but unknown to the provider.
	Fetch(ctx context.Context, identifier string) (*domain.Paper, error)
}

// ProviderFunc adapts plain functions to the Provider interface.
// It is mostly useful in tests and for composing decorators.
type ProviderFunc struct {
	ProviderName string
	SearchFunc   func(ctx context.Context, query string, limit int) ([]*domain.Paper, error)
	FetchFunc    func(ctx context.Context, identifier string) (*domain.Paper, error)
}

// Name implements Provider.
func (f *ProviderFunc) Name() string {
	return f.ProviderName
}

// Search implements Provider. A nil SearchFunc returns no results.
func (f *ProviderFunc) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if f.SearchFunc == nil {
		return []*domain.Paper{}, nil
	}
	return f.SearchFunc(ctx, query, limit)
}

// Fetch implements Provider. A nil FetchFunc reports the identifier as absent.
func (f *ProviderFunc) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	if f.FetchFunc == nil {
		return nil, nil
	}
	return f.FetchFunc(ctx, identifier)
}

// TruncatePapers caps papers at limit. A non-positive limit yields an empty slice.
func TruncatePapers(papers []*domain.Paper, limit int) []*domain.Paper {
	if limit <= 0 {
		return []*domain.Paper{}
	}
	if len(papers) > limit {
		return papers[:limit]
	}
	return papers
}

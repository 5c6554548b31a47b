// Package cache stores aggregated search results under a deterministic key
// with a time-to-live. Backends: an in-process LRU, a Postgres table, and a
// no-op used when caching is disabled.
package cache

import (
	"context"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Cache is a TTL key/value store for search results.
//
// Get reports ok=false for a missing or expired entry; an error means the
// backend itself failed and callers treat it as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]*domain.Paper, bool, error)
	Set(ctx context.Context, key string, papers []*domain.Paper, ttl time.Duration) error
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// Noop is a Cache that never stores anything.
type Noop struct{}

var _ Cache = Noop{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]*domain.Paper, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (Noop) Set(context.Context, string, []*domain.Paper, time.Duration) error {
	return nil
}

func clonePapers(papers []*domain.Paper) []*domain.Paper {
	out := make([]*domain.Paper, len(papers))
	for i, p := range papers {
		out[i] = p.Clone()
	}
	return out
}

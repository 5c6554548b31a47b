// Package fetcher coordinates concurrent searches across the registered
// providers and single-record lookups with priority fallback.
//
// The Orchestrator owns the cross-cutting concerns around provider calls:
// caching, bounded retries, a shared request limiter, per-call timeouts,
// merging and deduplication. Providers themselves stay single-shot.
package fetcher

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/cache"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultLimit           = 10
	DefaultCacheTTL        = time.Hour
	DefaultMaxConcurrency  = 8
	DefaultProviderTimeout = 30 * time.Second
)

// Options configures an Orchestrator. Only Registry is required.
type Options struct {
	Registry *papersources.Registry

	// Cache stores search results. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Limiter gates every provider call across the whole process. Nil disables it.
	Limiter *papersources.RateLimiter

	Retry RetryPolicy

	// DefaultSource is searched when a request names no sources.
	DefaultSource string

	MaxConcurrency  int
	ProviderTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
	Events  *events.Emitter

	// Now is the clock used for durations. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator fans searches out over providers and resolves identifiers
// through a fallback chain. It is safe for concurrent use.
type Orchestrator struct {
	registry        *papersources.Registry
	cache           cache.Cache
	cacheTTL        time.Duration
	limiter         *papersources.RateLimiter
	retry           RetryPolicy
	defaultSource   string
	maxConcurrency  int
	providerTimeout time.Duration
	logger          zerolog.Logger
	metrics         *observability.Metrics
	events          *events.Emitter
	now             func() time.Time
}

// New creates an Orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("fetcher: registry is required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.DefaultSource == "" {
		opts.DefaultSource = domain.DefaultSource
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		registry:        opts.Registry,
		cache:           opts.Cache,
		cacheTTL:        opts.CacheTTL,
		limiter:         opts.Limiter,
		retry:           opts.Retry.withDefaults(),
		defaultSource:   opts.DefaultSource,
		maxConcurrency:  opts.MaxConcurrency,
		providerTimeout: opts.ProviderTimeout,
		logger:          observability.ComponentLogger(opts.Logger, "fetcher"),
		metrics:         opts.Metrics,
		events:          opts.Events,
		now:             opts.Now,
	}, nil
}

// AvailableSources returns the registered provider names in registration order.
func (o *Orchestrator) AvailableSources() []string {
	return o.registry.ListAll()
}

// IsSourceAvailable reports whether name is registered.
func (o *Orchestrator) IsSourceAvailable(name string) bool {
	_, ok := o.registry.Resolve(name)
	return ok
}

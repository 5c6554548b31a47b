// Package app assembles the providers, cache, orchestrator and engines from
// configuration. cmd/server and cmd/scholarctl share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/cache"
	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/database"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/fetcher"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/papersources/arxiv"
	"github.com/helixir/scholar-aggregator/internal/papersources/crossref"
	"github.com/helixir/scholar-aggregator/internal/papersources/openalex"
	"github.com/helixir/scholar-aggregator/internal/papersources/pubmed"
	"github.com/helixir/scholar-aggregator/internal/papersources/semanticscholar"
	"github.com/helixir/scholar-aggregator/internal/recommend"
	"github.com/helixir/scholar-aggregator/internal/search"
)

// App holds the assembled components.
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Metrics      *observability.Metrics
	Registry     *papersources.Registry
	Orchestrator *fetcher.Orchestrator
	Search       *search.Engine
	Recommend    *recommend.Engine

	// DB and PostgresCache are set only for the postgres cache backend.
	DB            *database.DB
	PostgresCache *cache.PostgresCache

	emitter *events.Emitter
}

// Options tunes assembly.
type Options struct {
	// Registerer receives the metrics. Nil uses the default registry.
	Registerer prometheus.Registerer

	// Publisher overrides the Kafka publisher built from config.
	Publisher events.Publisher

	// Now is the clock for caches, events and engines. Defaults to time.Now.
	Now func() time.Time
}

// New builds every component cfg enables. The caller must Close the result.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  observability.NewMetricsWithRegistry(cfg.Metrics.Namespace, opts.Registerer),
		Registry: papersources.NewRegistry(),
	}
	RegisterPaperSources(a.Registry, &cfg.PaperSources, logger)

	store, err := a.buildCache(ctx, opts.Now)
	if err != nil {
		return nil, err
	}

	publisher := opts.Publisher
	if publisher == nil && cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka event publisher enabled")
	}
	a.emitter = events.NewEmitter(events.EmitterConfig{
		Now:    opts.Now,
		Logger: logger.With().Str("component", "events").Logger(),
	}, publisher)

	var limiter *papersources.RateLimiter
	if cfg.Fetcher.RequestRate > 0 {
		limiter = papersources.NewRateLimiter(cfg.Fetcher.RequestRate, cfg.Fetcher.RequestBurst)
	}

	a.Orchestrator, err = fetcher.New(fetcher.Options{
		Registry: a.Registry,
		Cache:    store,
		CacheTTL: cfg.Cache.TTL,
		Limiter:  limiter,
		Retry: fetcher.RetryPolicy{
			MaxAttempts: cfg.Fetcher.MaxRetries,
			Unit:        cfg.Fetcher.BackoffUnit,
		},
		DefaultSource:   cfg.Fetcher.DefaultSource,
		MaxConcurrency:  cfg.Fetcher.MaxConcurrency,
		ProviderTimeout: cfg.Fetcher.ProviderTimeout,
		Logger:          logger,
		Metrics:         a.Metrics,
		Events:          a.emitter,
		Now:             opts.Now,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	a.Search = search.NewEngine(a.Orchestrator, search.Config{
		ReferenceYear:  cfg.Ranking.ReferenceYear,
		MaxConcurrency: cfg.Fetcher.MaxConcurrency,
		Now:            opts.Now,
	}, logger, a.Metrics)

	a.Recommend = recommend.NewEngine(a.Orchestrator, recommend.Config{
		ReferenceYear: cfg.Ranking.ReferenceYear,
		Now:           opts.Now,
	}, logger, a.Metrics, a.emitter)

	return a, nil
}

func (a *App) buildCache(ctx context.Context, now func() time.Time) (cache.Cache, error) {
	switch strings.ToLower(a.Config.Cache.Backend) {
	case config.CacheBackendNone:
		a.Logger.Info().Msg("search cache disabled")
		return cache.Noop{}, nil

	case config.CacheBackendPostgres:
		db, err := database.New(ctx, &a.Config.Database, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.DB = db
		a.PostgresCache = cache.NewPostgresCache(db, now)
		a.Logger.Info().Msg("search cache backed by postgres")
		return a.PostgresCache, nil

	default:
		mem, err := cache.NewMemoryCache(a.Config.Cache.Size, now)
		if err != nil {
			return nil, fmt.Errorf("create memory cache: %w", err)
		}
		a.Logger.Info().Int("size", a.Config.Cache.Size).Msg("search cache in memory")
		return mem, nil
	}
}

// Close releases the event publisher and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.emitter != nil {
		if err := a.emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event publisher: %w", err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}

// RegisterPaperSources registers every enabled source with the registry in
// domain.KnownSources order, which is also the tail of every fetch fallback.
func RegisterPaperSources(registry *papersources.Registry, cfg *config.PaperSourcesConfig, logger zerolog.Logger) {
	for _, name := range domain.KnownSources() {
		c, ok := cfg.Source(name)
		if !ok || !c.Enabled {
			continue
		}
		provider := newProvider(name, c)
		if provider == nil {
			continue
		}
		registry.Register(provider)
		logger.Info().
			Str("source", name).
			Bool("api_key", c.APIKey != "").
			Msg("registered paper source")
	}
}

func newProvider(name string, c config.PaperSourceConfig) papersources.Provider {
	switch name {
	case domain.SourceArXiv:
		return arxiv.New(arxiv.Config{
			BaseURL:   c.BaseURL,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
			BurstSize: c.BurstSize,
		})
	case domain.SourceCrossref:
		return crossref.New(crossref.Config{
			BaseURL:   c.BaseURL,
			UserAgent: c.UserAgent,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
			BurstSize: c.BurstSize,
		})
	case domain.SourceOpenAlex:
		return openalex.New(openalex.Config{
			BaseURL:   c.BaseURL,
			Email:     c.Email,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
			BurstSize: c.BurstSize,
		})
	case domain.SourcePubMed:
		return pubmed.New(pubmed.Config{
			BaseURL:   c.BaseURL,
			APIKey:    c.APIKey,
			Email:     c.Email,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
			BurstSize: c.BurstSize,
		})
	case domain.SourceSemanticScholar:
		return semanticscholar.New(semanticscholar.Config{
			BaseURL:   c.BaseURL,
			APIKey:    c.APIKey,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
			BurstSize: c.BurstSize,
		}, nil)
	default:
		return nil
	}
}

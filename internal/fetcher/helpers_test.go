package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/cache"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// waitRecorder collects backoff waits without sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *waitRecorder) newTimer() backoff.Timer {
	return &instantTimer{rec: r, c: make(chan time.Time, 1)}
}

func (r *waitRecorder) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

type instantTimer struct {
	rec *waitRecorder
	c   chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.rec.mu.Lock()
	t.rec.waits = append(t.rec.waits, d)
	t.rec.mu.Unlock()
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

// countingProvider wraps fixed behavior and counts calls.
type countingProvider struct {
	name        string
	searchCalls atomic.Int32
	fetchCalls  atomic.Int32
	search      func(ctx context.Context, query string, limit int) ([]*domain.Paper, error)
	fetch       func(ctx context.Context, id string) (*domain.Paper, error)
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	p.searchCalls.Add(1)
	if p.search == nil {
		return []*domain.Paper{}, nil
	}
	return p.search(ctx, query, limit)
}

func (p *countingProvider) Fetch(ctx context.Context, id string) (*domain.Paper, error) {
	p.fetchCalls.Add(1)
	if p.fetch == nil {
		return nil, nil
	}
	return p.fetch(ctx, id)
}

func returning(papers ...*domain.Paper) func(context.Context, string, int) ([]*domain.Paper, error) {
	return func(context.Context, string, int) ([]*domain.Paper, error) {
		out := make([]*domain.Paper, len(papers))
		for i, p := range papers {
			out[i] = p.Clone()
		}
		return out, nil
	}
}

func failingWith(err error) func(context.Context, string, int) ([]*domain.Paper, error) {
	return func(context.Context, string, int) ([]*domain.Paper, error) {
		return nil, err
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type harness struct {
	orch      *Orchestrator
	registry  *papersources.Registry
	cache     *cache.MemoryCache
	waits     *waitRecorder
	metrics   *observability.Metrics
	published *recordingPublisher
	emitter   *events.Emitter
}

func newHarness(t *testing.T, providers ...papersources.Provider) *harness {
	t.Helper()

	registry := papersources.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}

	memCache, err := cache.NewMemoryCache(64, nil)
	require.NoError(t, err)

	waits := &waitRecorder{}
	metrics := observability.NewMetricsWithRegistry("fetcher_test", prometheus.NewRegistry())
	pub := &recordingPublisher{}
	emitter := events.NewEmitter(events.EmitterConfig{}, pub)
	t.Cleanup(emitter.Wait)

	orch, err := New(Options{
		Registry: registry,
		Cache:    memCache,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Unit:        time.Second,
			NewTimer:    waits.newTimer,
		},
		MaxConcurrency:  4,
		ProviderTimeout: 5 * time.Second,
		Logger:          zerolog.Nop(),
		Metrics:         metrics,
		Events:          emitter,
	})
	require.NoError(t, err)

	return &harness{
		orch:      orch,
		registry:  registry,
		cache:     memCache,
		waits:     waits,
		metrics:   metrics,
		published: pub,
		emitter:   emitter,
	}
}

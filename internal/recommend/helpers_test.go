package recommend

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

var errBoom = errors.New("provider exploded")

type finderCall struct {
	query string
	limit int
}

// fakeFinder answers searches by exact query and fetches by id.
type fakeFinder struct {
	mu       sync.Mutex
	results  map[string][]*domain.Paper
	papers   map[string]*domain.Paper
	failing  map[string]bool
	searches []finderCall
	fetches  []string
}

func newFakeFinder() *fakeFinder {
	return &fakeFinder{
		results: map[string][]*domain.Paper{},
		papers:  map[string]*domain.Paper{},
		failing: map[string]bool{},
	}
}

func (f *fakeFinder) Search(_ context.Context, query string, _ []string, limit int) ([]*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, finderCall{query: query, limit: limit})
	if f.failing[query] {
		return nil, domain.NewNetworkError("fake", errBoom)
	}
	out := make([]*domain.Paper, 0, len(f.results[query]))
	for _, p := range f.results[query] {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeFinder) Fetch(_ context.Context, identifier, _ string) (*domain.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, identifier)
	if f.failing[identifier] {
		return nil, errBoom
	}
	return f.papers[identifier].Clone(), nil
}

func (f *fakeFinder) searchCalls() []finderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.searches)
	slices.SortFunc(out, func(a, b finderCall) int {
		switch {
		case a.query < b.query:
			return -1
		case a.query > b.query:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (f *fakeFinder) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, finder PaperFinder, pub events.Publisher) (*Engine, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsWithRegistry("recommend_test", prometheus.NewRegistry())
	emitter := events.NewEmitter(events.EmitterConfig{ServiceName: "test", Now: func() time.Time { return testNow }}, pub)
	engine := NewEngine(finder, Config{
		ReferenceYear: 2024,
		Now:           func() time.Time { return testNow },
	}, zerolog.Nop(), metrics, emitter)
	return engine, metrics
}

func ids(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

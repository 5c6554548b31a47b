package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/events"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func allSources() config.PaperSourcesConfig {
	on := config.PaperSourceConfig{Enabled: true}
	return config.PaperSourcesConfig{
		SemanticScholar: on,
		ArXiv:           on,
		PubMed:          on,
		Crossref:        on,
		OpenAlex:        on,
	}
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		Metrics: config.MetricsConfig{Namespace: "scholar_test"},
		Cache:   config.CacheConfig{Backend: backend, TTL: time.Hour, Size: 16},
		Fetcher: config.FetcherConfig{
			DefaultSource:   "arxiv",
			MaxRetries:      2,
			BackoffUnit:     time.Millisecond,
			ProviderTimeout: time.Second,
			MaxConcurrency:  4,
			RequestRate:     50,
			RequestBurst:    5,
		},
		PaperSources: config.PaperSourcesConfig{
			ArXiv:  config.PaperSourceConfig{Enabled: true},
			PubMed: config.PaperSourceConfig{Enabled: true},
		},
	}
}

func TestRegisterPaperSources_OrderMatchesConfig(t *testing.T) {
	cfg := allSources()
	registry := papersources.NewRegistry()

	RegisterPaperSources(registry, &cfg, zerolog.Nop())

	assert.Equal(t, cfg.EnabledNames(), registry.ListAll())
	assert.Equal(t, domain.KnownSources(), registry.ListAll())
}

func TestNew_FetchFallbackTailFollowsRegistrationOrder(t *testing.T) {
	cfg := testConfig(config.CacheBackendNone)
	cfg.PaperSources = allSources()

	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t,
		[]string{"crossref", "semanticscholar", "arxiv", "openalex", "pubmed"},
		a.Orchestrator.FetchOrder("10.1000/xyz", ""))
	assert.Equal(t,
		[]string{"arxiv", "semanticscholar", "crossref", "openalex", "pubmed"},
		a.Orchestrator.FetchOrder("2401.12345", ""))
}

func TestRegisterPaperSources_SkipsDisabled(t *testing.T) {
	cfg := config.PaperSourcesConfig{Crossref: config.PaperSourceConfig{Enabled: true}}
	registry := papersources.NewRegistry()

	RegisterPaperSources(registry, &cfg, zerolog.Nop())

	assert.Equal(t, []string{"crossref"}, registry.ListAll())
}

func TestNew_MemoryBackend(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Close").Return(nil).Once()

	a, err := New(context.Background(), testConfig(config.CacheBackendMemory), zerolog.Nop(), Options{
		Registerer: prometheus.NewRegistry(),
		Publisher:  pub,
	})
	require.NoError(t, err)

	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Recommend)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.PostgresCache)
	assert.Equal(t, []string{"arxiv", "pubmed"}, a.Orchestrator.AvailableSources())
	assert.True(t, a.Orchestrator.IsSourceAvailable("PubMed"))

	require.NoError(t, a.Close())
	pub.AssertExpectations(t)
}

func TestNew_NoCacheBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(config.CacheBackendNone), zerolog.Nop(), Options{
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.PostgresCache)
	assert.False(t, a.Orchestrator.IsSourceAvailable("crossref"))
}

func TestNew_PostgresBackendFailsWithoutDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}

	cfg := testConfig(config.CacheBackendPostgres)
	cfg.Database = config.DatabaseConfig{
		Host:              "192.0.2.1",
		Port:              5432,
		Name:              "scholar",
		User:              "scholar",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          1,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    500 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := New(ctx, cfg, zerolog.Nop(), Options{Registerer: prometheus.NewRegistry()})
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "connect to database")
}

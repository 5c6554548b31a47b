package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each test uses its own registry so metric names never collide.
func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetricsWithRegistry("test_scholar", prometheus.NewRegistry())
}

func TestNewMetrics(t *testing.T) {
	// Use unique namespace to avoid conflicts with the default registry.
	m := NewMetrics("test_scholar_default")

	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.ProviderRequestsTotal)
	assert.NotNil(t, m.ProviderFailuresTotal)
	assert.NotNil(t, m.ProviderRequestDuration)
	assert.NotNil(t, m.ProviderRetriesTotal)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
	assert.NotNil(t, m.PapersDeduplicated)
	assert.NotNil(t, m.FetchesTotal)
	assert.NotNil(t, m.RecommendationsGenerated)
	assert.NotNil(t, m.AdvancedSearchesTotal)
}

func TestNewMetricsWithRegistry_DuplicateNamespacePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWithRegistry("dup", reg)
	assert.Panics(t, func() { NewMetricsWithRegistry("dup", reg) })
}

func TestRecordSearch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSearch("ok", 0.5)
	m.RecordSearch("partial", 1.5)
	m.RecordSearch("ok", 0.1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("partial")))

	histCount, err := getHistogramSampleCount(m.SearchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), histCount)
}

func TestRecordProviderCalls(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordProviderRequest("arxiv", "search", 0.2)
	m.RecordProviderFailure("arxiv", "search", 1.2)
	m.RecordProviderRetry("arxiv")
	m.RecordProviderRetry("arxiv")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("arxiv", "search")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderFailuresTotal.WithLabelValues("arxiv", "search")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProviderRetriesTotal.WithLabelValues("arxiv")))
}

func TestRecordCache(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMisses))
}

func TestRecordPaperDuplicates(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPaperDuplicates(3)
	m.RecordPaperDuplicates(0)
	m.RecordPaperDuplicates(-1)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.PapersDeduplicated))
}

func TestRecordFetchAndRecommendations(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFetch("found")
	m.RecordFetch("absent")
	m.RecordRecommendations("hybrid")
	m.RecordAdvancedSearch()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchesTotal.WithLabelValues("found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchesTotal.WithLabelValues("absent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecommendationsGenerated.WithLabelValues("hybrid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AdvancedSearchesTotal))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSearch("ok", 1)
		m.RecordProviderRequest("arxiv", "fetch", 1)
		m.RecordProviderFailure("arxiv", "fetch", 1)
		m.RecordProviderRetry("arxiv")
		m.RecordCacheHit()
		m.RecordCacheMiss()
		m.RecordPaperDuplicates(2)
		m.RecordFetch("found")
		m.RecordRecommendations("content")
		m.RecordAdvancedSearch()
	})
}

func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}

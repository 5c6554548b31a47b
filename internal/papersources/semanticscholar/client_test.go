package semanticscholar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, RateLimit: 100, BurstSize: 100}, nil)
}

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		client := New(Config{}, nil)

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
		assert.Equal(t, "semanticscholar", client.Name())
	})

	t.Run("uses provided HTTP client", func(t *testing.T) {
		httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 100})
		client := New(Config{}, httpClient)
		assert.Same(t, httpClient, client.httpClient)
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("maps results into papers", func(t *testing.T) {
		response := SearchResponse{
			Total: 2,
			Data: []PaperResult{
				{
					PaperID:                  "abc123",
					Title:                    "CRISPR Gene Editing: A Review",
					Abstract:                 "This paper reviews CRISPR technology.",
					Year:                     2023,
					PublicationDate:          "2023-06-15",
					Venue:                    "Nature Reviews",
					Journal:                  &Journal{Name: "Nature Reviews Genetics"},
					Authors:                  []Author{{AuthorID: "a1", Name: "Jane Doe"}, {Name: "John Smith"}},
					CitationCount:            50,
					InfluentialCitationCount: 7,
					OpenAccessPDF:            &OpenAccessPDF{URL: "https://example.com/paper.pdf"},
					ExternalIDs:              &ExternalIDs{DOI: "10.1038/s41576-023-00001-1"},
				},
				{
					PaperID: "def456",
					Title:   "Gene Therapy Applications",
					Year:    2022,
					Venue:   "Cell",
					Authors: []Author{{Name: "Alice Johnson"}},
				},
			},
		}

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/paper/search", r.URL.Path)
			assert.Equal(t, "CRISPR gene editing", r.URL.Query().Get("query"))
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			assert.Contains(t, r.URL.Query().Get("fields"), "influentialCitationCount")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(response)
		})

		papers, err := client.Search(context.Background(), "CRISPR gene editing", 10)
		require.NoError(t, err)
		require.Len(t, papers, 2)

		first := papers[0]
		assert.Equal(t, "abc123", first.ID)
		assert.Equal(t, "2023-06-15", first.Date)
		assert.Equal(t, "Nature Reviews Genetics", first.Journal)
		assert.Equal(t, []string{"Jane Doe", "John Smith"}, first.Authors)
		assert.Equal(t, "https://example.com/paper.pdf", first.URL)
		assert.Equal(t, "10.1038/s41576-023-00001-1", first.DOI)
		assert.Equal(t, 50, first.CitationCount)
		assert.Equal(t, 7, first.InfluentialCitationCount)
		assert.Equal(t, "semanticscholar", first.Source)

		second := papers[1]
		assert.Equal(t, "2022", second.Date)
		assert.Equal(t, "Cell", second.Journal)
		assert.Equal(t, "https://www.semanticscholar.org/paper/def456", second.URL)
	})

	t.Run("caps page size", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"total":0,"data":[]}`))
		})

		papers, err := client.Search(context.Background(), "q", 500)
		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("zero limit makes no request", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})

		papers, err := client.Search(context.Background(), "q", 0)
		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("rate limited", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.Search(context.Background(), "q", 5)

		var rlErr *domain.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, 3*time.Second, rlErr.RetryAfter)
	})

	t.Run("malformed body is permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})

		_, err := client.Search(context.Background(), "q", 5)
		require.Error(t, err)
		assert.False(t, domain.IsTransient(err))
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("found by DOI", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/paper/DOI:10.1000/xyz", r.URL.Path)
			_ = json.NewEncoder(w).Encode(PaperResult{PaperID: "p1", Title: "Found", Year: 2020})
		})

		paper, err := client.Fetch(context.Background(), "10.1000/xyz")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "Found", paper.Title)
		assert.Equal(t, "2020", paper.Date)
	})

	t.Run("not found is absent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"Paper not found"}`, http.StatusNotFound)
		})

		paper, err := client.Fetch(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, paper)
	})

	t.Run("server error is transient", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		paper, err := client.Fetch(context.Background(), "abc")
		require.Error(t, err)
		assert.Nil(t, paper)
		assert.True(t, domain.IsTransient(err))
	})

	t.Run("blank identifier is absent", func(t *testing.T) {
		client := New(Config{}, nil)
		paper, err := client.Fetch(context.Background(), "  ")
		require.NoError(t, err)
		assert.Nil(t, paper)
	})
}

func TestLookupID(t *testing.T) {
	assert.Equal(t, "PMID:12345", LookupID("12345"))
	assert.Equal(t, "PMID:12345", LookupID("PMID:12345"))
	assert.Equal(t, "ARXIV:1706.03762", LookupID("arXiv:1706.03762"))
	assert.Equal(t, "DOI:10.1/abc", LookupID("doi:10.1/abc"))
	assert.Equal(t, "649def34f8be52c8b66281af98ae884c09aef38b", LookupID("649def34f8be52c8b66281af98ae884c09aef38b"))
}

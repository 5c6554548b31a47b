package openalex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const searchBody = `{
  "meta": {"count": 1, "per_page": 5},
  "results": [
    {
      "id": "https://openalex.org/W2741809807",
      "doi": "https://doi.org/10.7717/peerj.4375",
      "display_name": "The state of OA",
      "publication_year": 2018,
      "publication_date": "2018-02-13",
      "cited_by_count": 812,
      "authorships": [
        {"author": {"display_name": "Heather Piwowar"}},
        {"author": {"display_name": "Jason Priem"}}
      ],
      "primary_location": {
        "source": {"display_name": "PeerJ"},
        "landing_page_url": "https://peerj.com/articles/4375"
      },
      "abstract_inverted_index": {"Despite": [0], "growing": [1], "interest": [2]}
    }
  ]
}`

func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.BaseURL = server.URL
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    domain.SourceOpenAlex,
		RateLimit: 100,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

func TestNew(t *testing.T) {
	client := New(Config{Email: "dev@example.com"})
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, "openalex", client.Name())
}

func TestClient_Search(t *testing.T) {
	t.Run("maps works", func(t *testing.T) {
		client := newTestClient(t, Config{Email: "dev@example.com"}, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			assert.Equal(t, "open access", r.URL.Query().Get("search"))
			assert.Equal(t, "5", r.URL.Query().Get("per-page"))
			assert.Equal(t, "dev@example.com", r.URL.Query().Get("mailto"))
			_, _ = w.Write([]byte(searchBody))
		})

		papers, err := client.Search(context.Background(), "open access", 5)
		require.NoError(t, err)
		require.Len(t, papers, 1)

		p := papers[0]
		assert.Equal(t, "W2741809807", p.ID)
		assert.Equal(t, "The state of OA", p.Title)
		assert.Equal(t, "10.7717/peerj.4375", p.DOI)
		assert.Equal(t, "2018-02-13", p.Date)
		assert.Equal(t, []string{"Heather Piwowar", "Jason Priem"}, p.Authors)
		assert.Equal(t, "PeerJ", p.Journal)
		assert.Equal(t, "https://peerj.com/articles/4375", p.URL)
		assert.Equal(t, "Despite growing interest", p.Abstract)
		assert.Equal(t, 812, p.CitationCount)
		assert.Equal(t, "openalex", p.Source)
	})

	t.Run("caps page size", func(t *testing.T) {
		client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "200", r.URL.Query().Get("per-page"))
			assert.Empty(t, r.URL.Query().Get("mailto"))
			_, _ = w.Write([]byte(`{"meta":{"count":0},"results":[]}`))
		})

		papers, err := client.Search(context.Background(), "q", 1000)
		require.NoError(t, err)
		assert.Empty(t, papers)
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("by DOI", func(t *testing.T) {
		client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works/doi:10.7717/peerj.4375", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":"https://openalex.org/W1","display_name":"Fetched","publication_year":2018}`))
		})

		paper, err := client.Fetch(context.Background(), "10.7717/peerj.4375")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "W1", paper.ID)
		assert.Equal(t, "2018", paper.Date)
		assert.Equal(t, "https://openalex.org/W1", paper.URL)
	})

	t.Run("404 is absent", func(t *testing.T) {
		client := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		paper, err := client.Fetch(context.Background(), "W404")
		require.NoError(t, err)
		assert.Nil(t, paper)
	})
}

func TestWorkPath(t *testing.T) {
	assert.Equal(t, "W2741809807", WorkPath("https://openalex.org/W2741809807"))
	assert.Equal(t, "W2741809807", WorkPath("W2741809807"))
	assert.Equal(t, "doi:10.1/x", WorkPath("https://doi.org/10.1/x"))
	assert.Equal(t, "doi:10.1/x", WorkPath("doi:10.1/x"))
	assert.Equal(t, "pmid:123", WorkPath("PMID:123"))
	assert.Equal(t, "", WorkPath(" "))
}

func TestReconstructAbstract(t *testing.T) {
	index := map[string][]int{
		"the":  {0, 3},
		"cat":  {1},
		"sat":  {2},
		"mat.": {5},
		"on":   {4},
	}
	assert.Equal(t, "the cat sat the on mat.", reconstructAbstract(index))
	assert.Empty(t, reconstructAbstract(nil))
}

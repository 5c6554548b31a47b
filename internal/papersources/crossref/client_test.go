package crossref

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
  "status": "ok",
  "message": {
    "total-results": 2,
    "items": [
      {
        "DOI": "10.1038/nature14539",
        "title": ["Deep learning"],
        "author": [{"given": "Yann", "family": "LeCun"}, {"family": "Bengio"}, {"name": "Consortium"}],
        "issued": {"date-parts": [[2015, 5, 27]]},
        "container-title": ["Nature"],
        "URL": "http://dx.doi.org/10.1038/nature14539",
        "link": [
          {"URL": "https://www.nature.com/articles/nature14539.xml", "content-type": "text/xml"},
          {"URL": "https://www.nature.com/articles/nature14539.pdf", "content-type": "application/pdf"}
        ],
        "abstract": "<jats:p>Deep learning allows <jats:italic>computational</jats:italic> models.</jats:p>",
        "is-referenced-by-count": 60000
      },
      {
        "DOI": "10.1000/undated",
        "title": [],
        "issued": {"date-parts": [[null]]},
        "URL": "http://dx.doi.org/10.1000/undated"
      }
    ]
  }
}`

const workBody = `{
  "status": "ok",
  "message": {
    "DOI": "10.1145/3292500.3330701",
    "title": ["Single Work"],
    "author": [{"given": "Ada", "family": "Lovelace"}],
    "issued": {"date-parts": [[2019]]},
    "URL": "http://dx.doi.org/10.1145/3292500.3330701"
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    domain.SourceCrossref,
		RateLimit: 100,
		UserAgent: "TestAgent/1.0 (mailto:test@example.com)",
	})
	return NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient)
}

func TestNew(t *testing.T) {
	client := New(Config{})
	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
	assert.Equal(t, "crossref", client.Name())
}

func TestClient_Search(t *testing.T) {
	t.Run("maps works and prefers pdf link", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			assert.Equal(t, "deep learning", r.URL.Query().Get("query"))
			assert.Equal(t, "2", r.URL.Query().Get("rows"))
			assert.Contains(t, r.URL.Query().Get("select"), "container-title")
			assert.Equal(t, "TestAgent/1.0 (mailto:test@example.com)", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(searchBody))
		})

		papers, err := client.Search(context.Background(), "deep learning", 2)
		require.NoError(t, err)
		require.Len(t, papers, 2)

		p := papers[0]
		assert.Equal(t, "10.1038/nature14539", p.ID)
		assert.Equal(t, "10.1038/nature14539", p.DOI)
		assert.Equal(t, "Deep learning", p.Title)
		assert.Equal(t, []string{"Yann LeCun", "Bengio", "Consortium"}, p.Authors)
		assert.Equal(t, "2015", p.Date)
		assert.Equal(t, "Nature", p.Journal)
		assert.Equal(t, "https://www.nature.com/articles/nature14539.pdf", p.URL)
		assert.Equal(t, "Deep learning allows computational models.", p.Abstract)
		assert.Equal(t, 60000, p.CitationCount)
		assert.Equal(t, "crossref", p.Source)

		undated := papers[1]
		assert.Empty(t, undated.Title)
		assert.Empty(t, undated.Date)
		assert.Equal(t, "http://dx.doi.org/10.1000/undated", undated.URL)
	})

	t.Run("caps rows at 100", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "100", r.URL.Query().Get("rows"))
			_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[]}}`))
		})

		papers, err := client.Search(context.Background(), "q", 1000)
		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("bad request is permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad query", http.StatusBadRequest)
		})

		_, err := client.Search(context.Background(), "q", 5)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.False(t, domain.IsTransient(err))
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("single work message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works/10.1145/3292500.3330701", r.URL.Path)
			_, _ = w.Write([]byte(workBody))
		})

		paper, err := client.Fetch(context.Background(), "doi:10.1145/3292500.3330701")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "Single Work", paper.Title)
		assert.Equal(t, []string{"Ada Lovelace"}, paper.Authors)
		assert.Equal(t, "2019", paper.Date)
	})

	t.Run("list shaped message takes the first item", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(searchBody))
		})

		paper, err := client.Fetch(context.Background(), "10.1038/nature14539")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "Deep learning", paper.Title)
	})

	t.Run("404 is absent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Resource not found.", http.StatusNotFound)
		})

		paper, err := client.Fetch(context.Background(), "10.1000/missing")
		require.NoError(t, err)
		assert.Nil(t, paper)
	})
}

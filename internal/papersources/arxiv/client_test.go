package arxiv

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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models
      are based on complex recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/hep-th/9901001v1</id>
    <published>1999-01-01T00:00:00Z</published>
    <title>Legacy Paper</title>
    <summary>Old.</summary>
    <author><name>Some Physicist</name></author>
  </entry>
</feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_garbage</id>
    <title>Error</title>
    <summary>incorrect id format for garbage</summary>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    domain.SourceArXiv,
		RateLimit: 100,
		BurstSize: 100,
	})
	return NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient)
}

func TestNew(t *testing.T) {
	client := New(Config{})

	assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
	assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
	assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
	assert.Equal(t, "arxiv", client.Name())
}

func TestClient_Search(t *testing.T) {
	t.Run("parses atom entries", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/query", r.URL.Path)
			assert.Equal(t, "all:attention", r.URL.Query().Get("search_query"))
			assert.Equal(t, "5", r.URL.Query().Get("max_results"))
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(sampleFeed))
		})

		papers, err := client.Search(context.Background(), "attention", 5)
		require.NoError(t, err)
		require.Len(t, papers, 2)

		p := papers[0]
		assert.Equal(t, "1706.03762v7", p.ID)
		assert.Equal(t, "Attention Is All You Need", p.Title)
		assert.Equal(t, "The dominant sequence transduction models are based on complex recurrent networks.", p.Abstract)
		assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
		assert.Equal(t, "2017-06-12", p.Date)
		assert.Equal(t, "10.48550/arXiv.1706.03762", p.DOI)
		assert.Equal(t, "NeurIPS 2017", p.Journal)
		assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.URL)
		assert.Equal(t, "arxiv", p.Source)

		legacy := papers[1]
		assert.Equal(t, "hep-th/9901001v1", legacy.ID)
		assert.Equal(t, "http://arxiv.org/abs/hep-th/9901001v1", legacy.URL)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Search(context.Background(), "x", 5)
		require.Error(t, err)
		assert.True(t, domain.IsTransient(err))
	})

	t.Run("malformed xml", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<feed><entry>"))
		})

		_, err := client.Search(context.Background(), "x", 5)
		require.Error(t, err)
		assert.False(t, domain.IsTransient(err))
	})
}

func TestClient_Fetch(t *testing.T) {
	t.Run("strips prefix and returns first entry", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1706.03762", r.URL.Query().Get("id_list"))
			_, _ = w.Write([]byte(sampleFeed))
		})

		paper, err := client.Fetch(context.Background(), "arXiv:1706.03762")
		require.NoError(t, err)
		require.NotNil(t, paper)
		assert.Equal(t, "1706.03762v7", paper.ID)
	})

	t.Run("error entry is absent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(errorFeed))
		})

		paper, err := client.Fetch(context.Background(), "garbage")
		require.NoError(t, err)
		assert.Nil(t, paper)
	})
}

func TestExtractArXivID(t *testing.T) {
	assert.Equal(t, "2301.12345v1", extractArXivID("http://arxiv.org/abs/2301.12345v1"))
	assert.Equal(t, "hep-th/9901001v1", extractArXivID("http://arxiv.org/abs/hep-th/9901001v1"))
	assert.Equal(t, "", extractArXivID("http://arxiv.org/api/errors#bad"))
}

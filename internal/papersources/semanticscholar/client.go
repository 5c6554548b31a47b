package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest limit the search endpoint accepts.
	MaxPageSize = 100

	apiKeyHeader = "x-api-key"

	paperFields = "paperId,url,externalIds,title,abstract,year,publicationDate,venue,journal,authors,citationCount,influentialCitationCount,openAccessPdf"

	paperPageURL = "https://www.semanticscholar.org/paper/"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key; authenticated requests have higher limits.
	APIKey string

	Timeout   time.Duration
	RateLimit float64
	BurstSize int
}

// Client implements papersources.Provider for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.Provider.
var _ papersources.Provider = (*Client)(nil)

// New creates a new Semantic Scholar client.
// If httpClient is nil, one is created from the configuration.
func New(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       domain.SourceSemanticScholar,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Name returns the registry name of this provider.
func (c *Client) Name() string {
	return domain.SourceSemanticScholar
}

// Search queries the paper search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if limit <= 0 {
		return []*domain.Paper{}, nil
	}

	searchURL, err := c.buildSearchURL(query, limit)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.Get(ctx, searchURL, "application/json")
	if err != nil {
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceSemanticScholar, 200, "malformed search response", err)
	}

	papers := make([]*domain.Paper, 0, len(searchResp.Data))
	for _, result := range searchResp.Data {
		papers = append(papers, convertToPaper(result))
	}
	return papers, nil
}

// Fetch retrieves a paper by Semantic Scholar id, DOI, PMID or arXiv id.
// A 404 is reported as an absent record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	id := LookupID(identifier)
	if id == "" {
		return nil, nil
	}

	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(id), paperFields)
	body, err := c.httpClient.Get(ctx, paperURL, "application/json")
	if err != nil {
		if papersources.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var result PaperResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceSemanticScholar, 200, "malformed paper response", err)
	}
	if result.PaperID == "" && result.Title == "" {
		return nil, nil
	}
	return convertToPaper(result), nil
}

// LookupID rewrites a raw identifier into the prefixed form the paper
// endpoint expects: DOI:, PMID: or ARXIV:. Native ids pass through.
func LookupID(identifier string) string {
	id := strings.TrimSpace(identifier)
	switch papersources.Classify(id) {
	case papersources.KindNumeric:
		return "PMID:" + papersources.StripPMIDPrefix(id)
	case papersources.KindDomain:
		return "ARXIV:" + papersources.StripArXivPrefix(id)
	case papersources.KindDOI:
		return "DOI:" + papersources.StripDOIPrefix(id)
	default:
		return id
	}
}

func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := searchURL.Query()
	q.Set("query", query)
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(limit))

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

func convertToPaper(result PaperResult) *domain.Paper {
	paper := &domain.Paper{
		ID:                       result.PaperID,
		Title:                    strings.TrimSpace(result.Title),
		Abstract:                 result.Abstract,
		Journal:                  result.Venue,
		URL:                      result.URL,
		Source:                   domain.SourceSemanticScholar,
		CitationCount:            result.CitationCount,
		InfluentialCitationCount: result.InfluentialCitationCount,
		Authors:                  make([]string, 0, len(result.Authors)),
	}

	switch {
	case result.PublicationDate != "":
		paper.Date = result.PublicationDate
	case result.Year > 0:
		paper.Date = strconv.Itoa(result.Year)
	}

	if result.Journal != nil && result.Journal.Name != "" {
		paper.Journal = result.Journal.Name
	}

	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		paper.URL = result.OpenAccessPDF.URL
	}
	if paper.URL == "" && result.PaperID != "" {
		paper.URL = paperPageURL + result.PaperID
	}

	if result.ExternalIDs != nil {
		paper.DOI = result.ExternalIDs.DOI
	}

	for _, a := range result.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	return paper
}

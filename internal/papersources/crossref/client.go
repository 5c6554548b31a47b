package crossref

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit follows the public pool guidance of roughly 50 req/s.
	DefaultRateLimit = 20.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client. Crossref routes requests carrying
	// a mailto into its polite pool.
	DefaultUserAgent = "ScholarAggregator/1.0"

	// MaxRows is the largest page Crossref serves.
	MaxRows = 100

	selectFields = "DOI,title,author,issued,link,container-title,URL,abstract,is-referenced-by-count"
)

var jatsTagRegex = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the Crossref client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64
	BurstSize int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements papersources.Provider for Crossref.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Provider = (*Client)(nil)

// New creates a new Crossref client.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    domain.SourceCrossref,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: cfg.UserAgent,
		}),
	}
}

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Name returns the registry name of this provider.
func (c *Client) Name() string {
	return domain.SourceCrossref
}

// Search queries /works with a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if limit <= 0 {
		return []*domain.Paper{}, nil
	}
	if limit > MaxRows {
		limit = MaxRows
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(limit))
	params.Set("select", selectFields)

	resp, err := c.get(ctx, c.config.BaseURL+"/works?"+params.Encode())
	if err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		papers = append(papers, workToPaper(item))
	}
	return papers, nil
}

// Fetch retrieves a work by DOI. A 404 or an empty message is an absent record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	doi := papersources.StripDOIPrefix(identifier)
	if doi == "" {
		return nil, nil
	}

	resp, err := c.get(ctx, c.config.BaseURL+"/works/"+url.PathEscape(doi))
	if err != nil {
		if papersources.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	work := resp.Message.Work
	if len(resp.Message.Items) > 0 {
		work = resp.Message.Items[0]
	}
	if work.DOI == "" && len(work.Title) == 0 {
		return nil, nil
	}
	return workToPaper(work), nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*Response, error) {
	body, err := c.httpClient.Get(ctx, rawURL, "application/json")
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceCrossref, 200, "malformed response", err)
	}
	return &resp, nil
}

func workToPaper(w Work) *domain.Paper {
	paper := &domain.Paper{
		ID:            w.DOI,
		DOI:           w.DOI,
		Title:         strings.TrimSpace(first(w.Title)),
		Journal:       strings.TrimSpace(first(w.ContainerTitle)),
		Abstract:      stripJATS(w.Abstract),
		Authors:       make([]string, 0, len(w.Author)),
		URL:           w.URL,
		Source:        domain.SourceCrossref,
		CitationCount: w.IsReferencedByCount,
	}

	for _, a := range w.Author {
		if name := authorName(a); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 && w.Issued.DateParts[0][0] > 0 {
		paper.Date = strconv.Itoa(w.Issued.DateParts[0][0])
	}

	for _, link := range w.Link {
		if link.ContentType == "application/pdf" && link.URL != "" {
			paper.URL = link.URL
			break
		}
	}

	return paper
}

func authorName(a Author) string {
	given := strings.TrimSpace(a.Given)
	family := strings.TrimSpace(a.Family)
	switch {
	case given != "" && family != "":
		return given + " " + family
	case given != "":
		return given
	case family != "":
		return family
	default:
		return strings.TrimSpace(a.Name)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// stripJATS removes the JATS XML markup Crossref wraps abstracts in.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(jatsTagRegex.ReplaceAllString(s, " ")), " ")
}

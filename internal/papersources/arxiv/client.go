package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize caps max_results per request.
	MaxPageSize = 100

	atomAccept = "application/atom+xml"
)

// arxivIDRegex extracts the short id (version included) from the entry URL.
// Error entries ("http://arxiv.org/api/errors#...") do not match.
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+)$`)

// Config holds configuration for the arXiv client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	BurstSize int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
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

// Client implements papersources.Provider for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements Provider interface.
var _ papersources.Provider = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    domain.SourceArXiv,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the registry name of this provider.
func (c *Client) Name() string {
	return domain.SourceArXiv
}

// Search queries arXiv across all fields.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if limit <= 0 {
		return []*domain.Paper{}, nil
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", strconv.Itoa(limit))

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	return feedToPapers(feed), nil
}

// Fetch retrieves a paper by arXiv id, with or without the "arXiv:" prefix.
// An empty feed is an absent record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	id := papersources.StripArXivPrefix(identifier)
	if id == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("id_list", id)

	feed, err := c.query(ctx, params)
	if err != nil {
		if papersources.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	papers := feedToPapers(feed)
	if len(papers) == 0 {
		return nil, nil
	}
	return papers[0], nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*Feed, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	baseURL.RawQuery = params.Encode()

	body, err := c.httpClient.Get(ctx, baseURL.String(), atomAccept)
	if err != nil {
		return nil, err
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceArXiv, 200, "malformed atom feed", err)
	}
	return &feed, nil
}

func feedToPapers(feed *Feed) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if paper := entryToPaper(&feed.Entries[i]); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers
}

// entryToPaper converts an Atom entry, returning nil for API error entries.
func entryToPaper(entry *Entry) *domain.Paper {
	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	date := strings.TrimSpace(entry.Published)
	if len(date) > 10 {
		date = date[:10]
	}

	paperURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paperURL = link.Href
			break
		}
	}
	if paperURL == "" {
		paperURL = strings.TrimSpace(entry.ID)
	}

	return &domain.Paper{
		ID:       arxivID,
		Title:    normalizeWhitespace(entry.Title),
		Abstract: normalizeWhitespace(entry.Summary),
		Authors:  authors,
		Date:     date,
		Journal:  normalizeWhitespace(entry.JournalRef),
		DOI:      strings.TrimSpace(entry.DOI),
		URL:      paperURL,
		Source:   domain.SourceArXiv,
	}
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" → "2301.12345v1"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace collapses runs of whitespace (arXiv wraps titles and
// abstracts across lines).
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

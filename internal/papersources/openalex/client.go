package openalex

import (
	"cmp"
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit in requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPerPage is the OpenAlex page size ceiling.
	MaxPerPage = 200

	doiPrefix        = "https://doi.org/"
	openAlexIDPrefix = "https://openalex.org/"

	maxAbstractWords = 100_000
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	BaseURL string

	// Email is sent as mailto to join the polite pool.
	Email string

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

// Client implements papersources.Provider for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.Provider = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := ""
	if cfg.Email != "" {
		userAgent = "ScholarAggregator/1.0 (mailto:" + cfg.Email + ")"
	}

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    domain.SourceOpenAlex,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: userAgent,
		}),
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Name returns the registry name of this provider.
func (c *Client) Name() string {
	return domain.SourceOpenAlex
}

// Search runs a full-text works search.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if limit <= 0 {
		return []*domain.Paper{}, nil
	}
	if limit > MaxPerPage {
		limit = MaxPerPage
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(limit))
	c.addMailto(params)

	body, err := c.httpClient.Get(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/works?"+params.Encode(), "application/json")
	if err != nil {
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceOpenAlex, 200, "malformed search response", err)
	}

	papers := make([]*domain.Paper, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		papers = append(papers, workToPaper(&searchResp.Results[i]))
	}
	return papers, nil
}

// Fetch retrieves a work by OpenAlex id (W123, full URL) or DOI.
// A 404 is an absent record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	workID := WorkPath(identifier)
	if workID == "" {
		return nil, nil
	}

	params := url.Values{}
	c.addMailto(params)
	fetchURL := strings.TrimRight(c.config.BaseURL, "/") + "/works/" + workID
	if len(params) > 0 {
		fetchURL += "?" + params.Encode()
	}

	body, err := c.httpClient.Get(ctx, fetchURL, "application/json")
	if err != nil {
		if papersources.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var work Work
	if err := json.Unmarshal(body, &work); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourceOpenAlex, 200, "malformed work response", err)
	}
	if work.ID == "" {
		return nil, nil
	}
	return workToPaper(&work), nil
}

// WorkPath maps an identifier onto the /works/{id} path segment. DOIs use
// the doi: namespace OpenAlex accepts; everything else passes through.
func WorkPath(identifier string) string {
	id := strings.TrimSpace(identifier)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, openAlexIDPrefix):
		return strings.TrimPrefix(id, openAlexIDPrefix)
	case strings.HasPrefix(id, doiPrefix):
		return "doi:" + strings.TrimPrefix(id, doiPrefix)
	case papersources.Classify(id) == papersources.KindDOI:
		return "doi:" + papersources.StripDOIPrefix(id)
	case papersources.Classify(id) == papersources.KindNumeric:
		return "pmid:" + papersources.StripPMIDPrefix(id)
	default:
		return id
	}
}

func (c *Client) addMailto(params url.Values) {
	if c.config.Email != "" {
		params.Set("mailto", c.config.Email)
	}
}

func workToPaper(work *Work) *domain.Paper {
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	paper := &domain.Paper{
		ID:            strings.TrimPrefix(work.ID, openAlexIDPrefix),
		Title:         strings.TrimSpace(title),
		Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		DOI:           strings.TrimPrefix(strings.TrimSpace(work.DOI), doiPrefix),
		Source:        domain.SourceOpenAlex,
		CitationCount: work.CitedByCount,
		Authors:       make([]string, 0, len(work.Authorships)),
	}

	switch {
	case work.PublicationDate != "":
		paper.Date = work.PublicationDate
	case work.PublicationYear > 0:
		paper.Date = strconv.Itoa(work.PublicationYear)
	}

	for _, a := range work.Authorships {
		if name := strings.TrimSpace(a.Author.DisplayName); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	if loc := work.PrimaryLocation; loc != nil {
		if loc.Source != nil {
			paper.Journal = loc.Source.DisplayName
		}
		paper.URL = cmp.Or(loc.PDFURL, loc.LandingURL)
	}
	if paper.URL == "" && work.OpenAccess != nil {
		paper.URL = work.OpenAccess.OAURL
	}
	if paper.URL == "" {
		paper.URL = work.ID
	}

	return paper
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index.
// Oversized payloads yield an empty abstract.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	total := 0
	for _, positions := range invertedIndex {
		total += len(positions)
	}
	if total > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, total)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	slices.SortFunc(pairs, func(a, b posWord) int {
		return cmp.Compare(a.pos, b.pos)
	})

	var builder strings.Builder
	builder.Grow(total * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}

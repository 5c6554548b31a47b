package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultTool is reported to NCBI as the tool parameter.
	DefaultTool = "ScholarAggregator"

	// MaxResultsLimit is the maximum retmax the API allows per request.
	MaxResultsLimit = 10000

	articleURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// Email and Tool identify the caller to NCBI.
	Email string
	Tool  string

	Timeout   time.Duration
	RateLimit float64
	BurstSize int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Tool == "" {
		c.Tool = DefaultTool
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

// Client implements papersources.Provider for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Compile-time check that Client implements Provider.
var _ papersources.Provider = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:    domain.SourcePubMed,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the registry name of this provider.
func (c *Client) Name() string {
	return domain.SourcePubMed
}

// Search runs esearch for PMIDs and then efetch for the article records.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*domain.Paper, error) {
	if limit <= 0 {
		return []*domain.Paper{}, nil
	}

	pmids, err := c.esearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	if len(pmids) == 0 {
		return []*domain.Paper{}, nil
	}

	set, err := c.efetch(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	papers := make([]*domain.Paper, 0, len(set.Articles))
	for _, article := range set.Articles {
		papers = append(papers, articleToPaper(article))
	}
	return papersources.TruncatePapers(papers, limit), nil
}

// Fetch retrieves an article by PMID, with or without the "PMID:" prefix.
// An empty article set is an absent record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*domain.Paper, error) {
	pmid := papersources.StripPMIDPrefix(identifier)
	if pmid == "" {
		return nil, nil
	}

	set, err := c.efetch(ctx, []string{pmid})
	if err != nil {
		if papersources.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("efetch: %w", err)
	}
	if len(set.Articles) == 0 {
		return nil, nil
	}
	return articleToPaper(set.Articles[0]), nil
}

func (c *Client) esearch(ctx context.Context, query string, limit int) ([]string, error) {
	if limit > MaxResultsLimit {
		limit = MaxResultsLimit
	}

	q := c.baseParams()
	q.Set("term", query)
	q.Set("retmax", strconv.Itoa(limit))
	q.Set("retmode", "json")

	body, err := c.httpClient.Get(ctx, c.config.BaseURL+"/esearch.fcgi?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}

	var resp ESearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourcePubMed, 200, "malformed esearch response", err)
	}
	if resp.Result.Error != "" {
		return nil, domain.NewExternalAPIError(domain.SourcePubMed, 200, resp.Result.Error, nil)
	}
	return resp.Result.IDList, nil
}

func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	q := c.baseParams()
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	body, err := c.httpClient.Get(ctx, c.config.BaseURL+"/efetch.fcgi?"+q.Encode(), "application/xml")
	if err != nil {
		return nil, err
	}

	// An unknown PMID yields an empty body or an empty set, not a 404.
	if len(strings.TrimSpace(string(body))) == 0 {
		return &PubmedArticleSet{}, nil
	}

	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.NewExternalAPIError(domain.SourcePubMed, 200, "malformed efetch response", err)
	}
	return &set, nil
}

func (c *Client) baseParams() url.Values {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("tool", c.config.Tool)
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	return q
}

func articleToPaper(article PubmedArticle) *domain.Paper {
	citation := article.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID)

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	paper := &domain.Paper{
		ID:       "PMID:" + pmid,
		Title:    strings.TrimSpace(citation.Article.ArticleTitle),
		Abstract: extractAbstract(citation.Article.Abstract),
		Authors:  extractAuthors(citation.Article.AuthorList),
		Date:     extractDate(citation.Article),
		Journal:  strings.TrimSpace(journal),
		DOI:      extractDOI(citation.Article, article.PubmedData),
		Source:   domain.SourcePubMed,
	}
	if pmid != "" {
		paper.URL = articleURLPrefix + pmid + "/"
	}
	return paper
}

// extractDOI checks ArticleIdList first, then ELocationID.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" && strings.TrimSpace(aid.Value) != "" {
			return strings.TrimSpace(aid.Value)
		}
	}
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return strings.TrimSpace(eloc.Value)
		}
	}
	return ""
}

// extractDate returns the issue PubDate as YYYY[-MM[-DD]], falling back to
// the MedlineDate year and then the electronic ArticleDate.
func extractDate(article Article) string {
	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		return formatDate(pubDate.Year, pubDate.Month, pubDate.Day)
	}
	if pubDate.MedlineDate != "" {
		// "2020 Jan-Feb", "2020-2021", "2020 Spring"
		fields := strings.Fields(pubDate.MedlineDate)
		if len(fields) > 0 {
			year := strings.Split(fields[0], "-")[0]
			if _, err := strconv.Atoi(year); err == nil && len(year) == 4 {
				return year
			}
		}
	}
	for _, ad := range article.ArticleDate {
		if ad.Year != "" {
			return formatDate(ad.Year, ad.Month, ad.Day)
		}
	}
	return ""
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

func formatDate(year, month, day string) string {
	year = strings.TrimSpace(year)
	m := parseMonth(month)
	if m == 0 {
		return year
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return fmt.Sprintf("%s-%02d", year, m)
	}
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

func parseMonth(month string) int {
	month = strings.TrimSpace(month)
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return m
	}
	if len(month) >= 3 {
		return monthNames[strings.ToLower(month[:3])]
	}
	return 0
}

// extractAbstract joins structured abstract sections as "Label: text".
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors renders "ForeName LastName", or the collective name.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil {
		return []string{}
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		name := strings.TrimSpace(a.CollectiveName)
		if name == "" {
			name = strings.TrimSpace(strings.TrimSpace(a.ForeName) + " " + strings.TrimSpace(a.LastName))
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

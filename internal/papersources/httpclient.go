package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// maxResponseBodySize caps how much of a provider response is read into memory.
const maxResponseBodySize = 16 << 20

// maxErrorBodySize caps how much of an error body is kept in the error message.
const maxErrorBodySize = 512

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source is the provider name stamped into classified errors.
	Source string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string

	// DefaultRetryAfter is reported on 429 responses that carry no Retry-After header.
	DefaultRetryAfter time.Duration
}

// HTTPClient wraps http.Client with rate limiting and error classification.
// It performs exactly one attempt per call; retry policy belongs to the
// orchestrator. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ScholarAggregator/1.0"
	}
	if cfg.DefaultRetryAfter == 0 {
		cfg.DefaultRetryAfter = time.Second
	}
	if cfg.Source == "" {
		cfg.Source = "unknown"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes one rate-limited request and classifies the outcome:
//   - transport failures become *domain.NetworkError
//   - 429 becomes *domain.RateLimitError carrying the Retry-After delay
//   - any other non-2xx status becomes *domain.ExternalAPIError
//
// If the request context is already done the context error is returned
// unwrapped. On success the caller owns the response body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	ctx := req.Context()
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewNetworkError(c.config.Source, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewRateLimitError(c.config.Source, c.getRetryDelay(resp))
	}

	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, msg, nil)
}

// Get issues a GET to rawURL with the given Accept header and returns the
// response body. Errors are classified the same way as Do.
func (c *HTTPClient) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewNetworkError(c.config.Source, fmt.Errorf("read response body: %w", err))
	}
	return body, nil
}

// Source returns the provider name used in classified errors.
func (c *HTTPClient) Source() string {
	return c.config.Source
}

// getRetryDelay reads the Retry-After header as seconds or an HTTP date,
// falling back to the configured default.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.DefaultRetryAfter
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.DefaultRetryAfter
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return c.config.DefaultRetryAfter
}

// IsNotFound reports whether err is a provider 404, which Fetch
// implementations translate into an absent record.
func IsNotFound(err error) bool {
	var apiErr *domain.ExternalAPIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Package quotes provides the HTTP client for the currency-quote provider.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/leadwire/relay/internal/models"
)

// Client polls a currency-quote provider over HTTP. The provider is a plain
// JSON API: GET {base}/latest?base=USD&symbol=BRL. Transient provider
// failures are retried with backoff, and all calls share a rate limiter so a
// burst of alerts cannot exhaust the provider's quota.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*options)

type options struct {
	retryMax       int
	requestTimeout time.Duration
	ratePerSecond  float64
}

// WithRetryMax sets the max retries per request (default 3).
func WithRetryMax(n int) Option {
	return func(o *options) { o.retryMax = n }
}

// WithRequestTimeout sets the per-request timeout (default 10s).
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithRateLimit caps outbound requests per second (default 5).
func WithRateLimit(perSecond float64) Option {
	return func(o *options) { o.ratePerSecond = perSecond }
}

// NewClient creates a quote client for the given provider base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	o := &options{
		retryMax:       3,
		requestTimeout: 10 * time.Second,
		ratePerSecond:  5,
	}
	for _, opt := range opts {
		opt(o)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.retryMax
	retryClient.HTTPClient.Timeout = o.requestTimeout
	retryClient.Logger = nil // we log at the caller

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(o.ratePerSecond), 1),
	}
}

// latestResponse is the provider's wire shape.
type latestResponse struct {
	Base      string  `json:"base"`
	Symbol    string  `json:"symbol"`
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
}

// Latest fetches the current rate for one currency pair.
func (c *Client) Latest(ctx context.Context, baseCurrency, quoteCurrency string) (*models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/latest?base=%s&symbol=%s",
		c.baseURL, url.QueryEscape(baseCurrency), url.QueryEscape(quoteCurrency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s/%s: %w", baseCurrency, quoteCurrency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote provider returned status %d for %s/%s", resp.StatusCode, baseCurrency, quoteCurrency)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	if body.Rate <= 0 {
		return nil, fmt.Errorf("quote provider returned non-positive rate %v for %s/%s", body.Rate, baseCurrency, quoteCurrency)
	}

	fetchedAt := time.Now()
	if body.Timestamp > 0 {
		fetchedAt = time.Unix(body.Timestamp, 0)
	}

	return &models.Quote{
		BaseCurrency:  baseCurrency,
		QuoteCurrency: quoteCurrency,
		Rate:          body.Rate,
		FetchedAt:     fetchedAt,
	}, nil
}

// Package navexa provides a client for the Navexa API
package navexa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
	"github.com/bobmcallan/vire-recon/internal/pms"
)

const (
	DefaultBaseURL   = "https://api.navexa.com.au"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client fetches a portfolio's reported figures from the Navexa API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Navexa client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig creates a client from the [navexa] config section
func NewClientFromConfig(cfg common.NavexaConfig, logger *common.Logger) *Client {
	opts := []ClientOption{
		WithLogger(logger),
		WithRateLimit(cfg.RateLimit),
		WithTimeout(cfg.GetTimeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return NewClient(cfg.APIKey, opts...)
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Navexa API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and decodes the "data" member
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Navexa API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("empty response from %s", path)
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func portfolioPath(portfolioID string, parts ...string) string {
	p := "/v1/portfolios/" + url.PathEscape(portfolioID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// GetPortfolio retrieves the portfolio totals
func (c *Client) GetPortfolio(ctx context.Context, portfolioID string) (*pms.NavexaPortfolio, error) {
	var p pms.NavexaPortfolio
	if err := c.get(ctx, portfolioPath(portfolioID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetHoldings retrieves the holdings of a portfolio
func (c *Client) GetHoldings(ctx context.Context, portfolioID string) ([]pms.NavexaHolding, error) {
	var holdings []pms.NavexaHolding
	if err := c.get(ctx, portfolioPath(portfolioID, "holdings"), &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

// GetPerformance retrieves portfolio performance figures
func (c *Client) GetPerformance(ctx context.Context, portfolioID string) (*pms.NavexaPerformance, error) {
	var perf pms.NavexaPerformance
	if err := c.get(ctx, portfolioPath(portfolioID, "performance"), &perf); err != nil {
		return nil, err
	}
	return &perf, nil
}

// Fetch assembles the portfolio, its holdings and performance into
// expected values. Holdings and performance fill in only what the
// portfolio call did not already carry.
func (c *Client) Fetch(ctx context.Context, portfolioID string) (*models.ExpectedValues, error) {
	p, err := c.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, err)
	}

	if len(p.Holdings) == 0 {
		holdings, err := c.GetHoldings(ctx, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("portfolio %s holdings: %w", portfolioID, err)
		}
		p.Holdings = holdings
	}

	if p.Performance == nil {
		perf, err := c.GetPerformance(ctx, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("portfolio %s performance: %w", portfolioID, err)
		}
		p.Performance = perf
	}

	exp := p.Expected()
	c.logger.Info().
		Str("portfolio", portfolioID).
		Int("metrics", len(exp.Metrics)).
		Int("positions", len(exp.Positions)).
		Msg("Fetched expected values from Navexa")
	return exp, nil
}

// Ensure Client implements ExpectedValuesFetcher
var _ interfaces.ExpectedValuesFetcher = (*Client)(nil)

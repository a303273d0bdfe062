// Package client provides the Twitter standard search client with app-only
// authentication, rate limiting, page caching and error handling.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/cache"
	"github.com/Sternrassler/tweet-datasource/pkg/collector"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/Sternrassler/tweet-datasource/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_api_requests_total",
		Help: "Total search API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datasource_api_request_duration_seconds",
		Help:    "Search API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_api_errors_total",
		Help: "Total search API errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the API host.
	DefaultBaseURL = "https://api.twitter.com"

	// SearchPath is the standard search endpoint.
	SearchPath = "/1.1/search/tweets.json"

	// TokenPath is the app-only bearer token endpoint.
	TokenPath = "/oauth2/token"

	// CreatedAtLayout is the timestamp layout of the created_at field.
	CreatedAtLayout = time.RubyDate

	// rateLimitResource names the tracked window.
	rateLimitResource = "search"

	// pageCacheNamespace prefixes cached search pages.
	pageCacheNamespace = "search"
)

// Config holds the client configuration.
type Config struct {
	// Application credentials (REQUIRED)
	ConsumerKey    string
	ConsumerSecret string

	// BaseURL of the API, default DefaultBaseURL
	BaseURL string

	// TokenURL defaults to BaseURL + TokenPath
	TokenURL string

	// Redis client for rate limit state and page caching (optional)
	Redis *redis.Client

	// Client-side pacing
	RequestsPerSecond float64
	Burst             int

	// PageCacheTTL caches search pages in Redis; 0 disables
	PageCacheTTL time.Duration

	// Retry for server and network errors
	Retry RetryConfig

	// Timeout per HTTP request
	Timeout time.Duration

	// HTTPClient supplies the transport (optional, used by tests)
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(consumerKey, consumerSecret string) Config {
	return Config{
		ConsumerKey:       consumerKey,
		ConsumerSecret:    consumerSecret,
		BaseURL:           DefaultBaseURL,
		RequestsPerSecond: 5,
		Burst:             1,
		PageCacheTTL:      0,
		Retry:             DefaultRetryConfig(),
		Timeout:           30 * time.Second,
	}
}

// Client is the search API client. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	limiter     *rate.Limiter
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// New creates a new search API client.
func New(cfg Config) (*Client, error) {
	if cfg.ConsumerKey == "" {
		return nil, fmt.Errorf("consumer key is required")
	}
	if cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("consumer secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TokenURL == "" {
		cfg.TokenURL = cfg.BaseURL + TokenPath
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "twitter-client").Logger()

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	// The token source fetches once and reuses the bearer token afterwards
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	credentials := &clientcredentials.Config{
		ClientID:     cfg.ConsumerKey,
		ClientSecret: cfg.ConsumerSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokens := credentials.TokenSource(tokenCtx)

	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: tokens, Base: base.Transport},
		Timeout:   cfg.Timeout,
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, burst),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, rateLimitResource, logger)
		if cfg.PageCacheTTL > 0 {
			c.cache = cache.NewManager(cfg.Redis)
		}
	}

	return c, nil
}

// Authenticate obtains the bearer token ahead of the first search.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.tokens.Token(); err != nil {
		c.logger.Error().Err(err).Msg("Bearer token request failed")
		return &AuthError{Err: err}
	}
	c.logger.Debug().Msg("Bearer token acquired")
	return nil
}

// User is the author of a status.
type User struct {
	ScreenName string `json:"screen_name"`
}

// Status is one search result.
type Status struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	Text      string `json:"text"`
	User      User   `json:"user"`
}

// Item converts the status to a collector item.
func (s Status) Item() (collector.Item, error) {
	item := collector.Item{
		ID:     s.ID,
		Author: s.User.ScreenName,
		Text:   s.Text,
	}
	created, err := time.Parse(CreatedAtLayout, s.CreatedAt)
	if err != nil {
		item.RawCreatedAt = s.CreatedAt
		return item, fmt.Errorf("parse created_at of %d: %w", s.ID, err)
	}
	item.CreatedAt = created
	return item, nil
}

// SearchMetadata is the paging summary returned with every page.
type SearchMetadata struct {
	MaxID       int64   `json:"max_id"`
	SinceID     int64   `json:"since_id"`
	Count       int     `json:"count"`
	Query       string  `json:"query"`
	CompletedIn float64 `json:"completed_in"`
}

// SearchResponse is the search endpoint's document.
type SearchResponse struct {
	Statuses []Status       `json:"statuses"`
	Metadata SearchMetadata `json:"search_metadata"`
}

// Search fetches one page of statuses for tmpl.
func (c *Client) Search(ctx context.Context, tmpl query.Template, page query.Page) ([]Status, error) {
	values := tmpl.Values(page)

	// Step 1: Client-side pacing
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}

	// Step 2: Check the shared rate limit window
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", SearchPath).Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(SearchPath, "rate_limited").Inc()
			return nil, &APIError{
				StatusCode: http.StatusTooManyRequests,
				ErrorClass: ErrorClassRateLimit,
				Message:    "Rate limit exceeded",
				Err:        ErrWindowExhausted,
			}
		}
	}

	// Step 3: Check the page cache
	cacheKey := cache.Key{Namespace: pageCacheNamespace, Params: values}
	if c.cache != nil {
		var cached []Status
		err := c.cache.GetJSON(ctx, cacheKey, &cached)
		switch {
		case err == nil:
			c.logger.Debug().Str("key", cacheKey.String()).Int("statuses", len(cached)).Msg("Search page served from cache")
			return cached, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	// Step 4: Execute with retry
	var body SearchResponse
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		return c.get(ctx, SearchPath, values.Encode(), &body)
	})
	if err != nil {
		return nil, err
	}

	// Step 5: Cache the page
	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, body.Statuses, c.config.PageCacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache search page")
		}
	}

	return body.Statuses, nil
}

// get performs one authenticated GET and decodes a 200 body into out.
func (c *Client) get(ctx context.Context, endpoint, rawQuery string, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	target := c.config.BaseURL + endpoint
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Str("query", rawQuery).Msg("Executing search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return &AuthError{Err: retrieveErr}
		}
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return err
	}
	defer resp.Body.Close()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		apiErr := c.responseError(resp)
		errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Int("code", apiErr.Code).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg("Search request error")
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

// responseError builds an APIError from a non-200 response.
func (c *Client) responseError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var body errorBody
		if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 {
			apiErr.Code = body.Errors[0].Code
			apiErr.Message = body.Errors[0].Message
		}
	}

	apiErr.ErrorClass = classifyStatus(resp.StatusCode, apiErr.Code)
	return apiErr
}

// FetchPage implements collector.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, tmpl query.Template, page query.Page) ([]collector.Item, error) {
	statuses, err := c.Search(ctx, tmpl, page)
	if err != nil {
		return nil, providerError(err)
	}

	items := make([]collector.Item, 0, len(statuses))
	for _, s := range statuses {
		item, err := s.Item()
		if err != nil {
			c.logger.Warn().Err(err).Int64("id", s.ID).Msg("Keeping status with unparsed timestamp")
		}
		items = append(items, item)
	}
	return items, nil
}

// providerError tags err with the failure kind the collector acts on.
func providerError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorClass == ErrorClassRateLimit {
			return collector.RateLimited(apiErr.Message, err)
		}
		return collector.Hard(apiErr.Message, err)
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return collector.Hard(authErr.Error(), err)
	}

	return collector.Hard(err.Error(), err)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

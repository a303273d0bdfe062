package client

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/tweet-datasource/internal/testutil"
	"github.com/Sternrassler/tweet-datasource/pkg/collector"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a Redis client backed by miniredis.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// newTestClient creates a client against the mock server.
func newTestClient(t *testing.T, mock *testutil.MockTwitter, modify func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(testutil.MockConsumerKey, testutil.MockConsumerSecret)
	cfg.BaseURL = mock.URL()
	cfg.HTTPClient = mock.Client()
	cfg.RequestsPerSecond = 0
	cfg.Retry = fastRetryConfig()
	if modify != nil {
		modify(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("key", "secret"),
			expectError: false,
		},
		{
			name:        "missing consumer key",
			config:      DefaultConfig("", "secret"),
			expectError: true,
			errorMsg:    "consumer key is required",
		},
		{
			name:        "missing consumer secret",
			config:      DefaultConfig("key", ""),
			expectError: true,
			errorMsg:    "consumer secret is required",
		},
		{
			name: "negative rate",
			config: Config{
				ConsumerKey:       "key",
				ConsumerSecret:    "secret",
				RequestsPerSecond: -1,
			},
			expectError: true,
			errorMsg:    "requests_per_second must be >= 0 (got -1)",
		},
		{
			name:        "zero config fills defaults",
			config:      Config{ConsumerKey: "key", ConsumerSecret: "secret"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("Error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.config.BaseURL != DefaultBaseURL {
				t.Errorf("BaseURL = %q, want %q", c.config.BaseURL, DefaultBaseURL)
			}
			if c.config.TokenURL != DefaultBaseURL+TokenPath {
				t.Errorf("TokenURL = %q", c.config.TokenURL)
			}
			if c.rateLimiter != nil || c.cache != nil {
				t.Error("Redis-backed features should be disabled without a Redis client")
			}
		})
	}
}

func TestNew_RedisFeatures(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	cfg := DefaultConfig("key", "secret")
	cfg.Redis = redisClient

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.rateLimiter == nil {
		t.Error("Expected rate limit tracker with Redis")
	}
	if c.cache != nil {
		t.Error("Expected page cache disabled with zero TTL")
	}

	cfg.PageCacheTTL = time.Minute
	c, err = New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.cache == nil {
		t.Error("Expected page cache with positive TTL")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key", "secret")

	if cfg.ConsumerKey != "key" || cfg.ConsumerSecret != "secret" {
		t.Error("Credentials not set")
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %v, want 5", cfg.RequestsPerSecond)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestAuthenticate(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	// The token is reused by later requests
	tmpl := query.NewTemplate("golang")
	if _, err := c.Search(context.Background(), tmpl, query.Page{Count: 10, MaxID: query.NoMaxID}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := mock.GetTokenCount(); got != 1 {
		t.Errorf("Token requests = %d, want 1", got)
	}
	if got := mock.GetLastAuth(); got != "Bearer "+testutil.MockBearerToken {
		t.Errorf("Authorization = %q", got)
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.ConsumerSecret = "wrong"
	})

	err := c.Authenticate(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
}

func TestSearch_Parameters(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.GenerateBacklog("golang", 30, 5000)

	c := newTestClient(t, mock, nil)

	tmpl := query.NewTemplate("golang",
		query.WithResultType(query.ResultRecent),
		query.WithLanguage("en"),
		query.WithSince("2016-03-01"),
	)
	statuses, err := c.Search(context.Background(), tmpl, query.Page{Count: 10, MaxID: 4990})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(statuses) != 10 {
		t.Fatalf("len(statuses) = %d, want 10", len(statuses))
	}
	if statuses[0].ID != 4990 {
		t.Errorf("First ID = %d, want 4990", statuses[0].ID)
	}

	queries := mock.GetSearchQueries()
	if len(queries) != 1 {
		t.Fatalf("Search requests = %d, want 1", len(queries))
	}
	q := queries[0]
	for key, want := range map[string]string{
		"q":           "golang",
		"count":       "10",
		"max_id":      "4990",
		"result_type": "recent",
		"lang":        "en",
		"since":       "2016-03-01",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestFetchPage_Items(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()
	backlog := mock.GenerateBacklog("golang", 3, 100)

	c := newTestClient(t, mock, nil)
	items, err := c.FetchPage(context.Background(), query.NewTemplate("golang"), query.Page{Count: 15, MaxID: query.NoMaxID})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.ID != backlog[i].ID {
			t.Errorf("items[%d].ID = %d, want %d", i, item.ID, backlog[i].ID)
		}
		if item.Author != backlog[i].ScreenName {
			t.Errorf("items[%d].Author = %q, want %q", i, item.Author, backlog[i].ScreenName)
		}
		if !item.CreatedAt.Equal(backlog[i].CreatedAt) {
			t.Errorf("items[%d].CreatedAt = %v, want %v", i, item.CreatedAt, backlog[i].CreatedAt)
		}
	}
}

func TestStatus_Item(t *testing.T) {
	s := Status{
		ID:        42,
		CreatedAt: "Mon Mar 14 12:00:00 +0000 2016",
		Text:      "hello",
		User:      User{ScreenName: "gopher"},
	}

	item, err := s.Item()
	if err != nil {
		t.Fatalf("Item() error = %v", err)
	}
	want := time.Date(2016, time.March, 14, 12, 0, 0, 0, time.UTC)
	if !item.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", item.CreatedAt, want)
	}

	s.CreatedAt = "yesterday"
	item, err = s.Item()
	if err == nil {
		t.Error("Expected parse error")
	}
	if item.ID != 42 || item.Author != "gopher" || item.Text != "hello" {
		t.Error("Fields other than the timestamp should survive a parse error")
	}
	if item.RawCreatedAt != "yesterday" {
		t.Errorf("RawCreatedAt = %q, want %q", item.RawCreatedAt, "yesterday")
	}
	if !item.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", item.CreatedAt)
	}
}

func TestFetchPage_ErrorKinds(t *testing.T) {
	tests := []struct {
		name        string
		response    testutil.MockResponse
		kind        collector.FailureKind
		message     string
		wantSearchN int
	}{
		{
			name:        "rate limit is not retried",
			response:    testutil.NewRateLimitResponse(),
			kind:        collector.FailureRateLimited,
			message:     "Rate limit exceeded",
			wantSearchN: 1,
		},
		{
			name:        "client error is hard",
			response:    testutil.NewClientErrorResponse(44, "count parameter is invalid"),
			kind:        collector.FailureHard,
			message:     "count parameter is invalid",
			wantSearchN: 1,
		},
		{
			name:        "server error is retried then hard",
			response:    testutil.NewServerErrorResponse(),
			kind:        collector.FailureHard,
			message:     "Over capacity",
			wantSearchN: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockTwitter()
			defer mock.Close()
			mock.SetResponse(SearchPath, tt.response)

			c := newTestClient(t, mock, nil)
			_, err := c.FetchPage(context.Background(), query.NewTemplate("golang"), query.Page{Count: 15})

			var perr *collector.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected ProviderError, got %v", err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", perr.Kind, tt.kind)
			}
			if perr.Message != tt.message {
				t.Errorf("Message = %q, want %q", perr.Message, tt.message)
			}
			if got := mock.GetSearchCount(); got != tt.wantSearchN {
				t.Errorf("Search requests = %d, want %d", got, tt.wantSearchN)
			}
		})
	}
}

func TestSearch_RetryOnServerError(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()

	calls := 0
	mock.SetHandler(SearchPath, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statuses":[{"id":7,"created_at":"Mon Mar 14 12:00:00 +0000 2016","text":"hi","user":{"screen_name":"gopher"}}]}`))
	})

	c := newTestClient(t, mock, nil)
	statuses, err := c.Search(context.Background(), query.NewTemplate("golang"), query.Page{Count: 15})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("Calls = %d, want 2", calls)
	}
	if len(statuses) != 1 || statuses[0].User.ScreenName != "gopher" {
		t.Errorf("Unexpected statuses %+v", statuses)
	}
}

func TestSearch_MalformedBody(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.SetResponse(SearchPath, testutil.MockResponse{StatusCode: http.StatusOK, Body: "{not json"})

	c := newTestClient(t, mock, nil)
	_, err := c.Search(context.Background(), query.NewTemplate("golang"), query.Page{Count: 15})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Message != "malformed response body" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSearch_RateLimitBlock(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.GenerateBacklog("golang", 50, 1000)
	mock.SetRemaining(0)

	redisClient, _ := setupTestRedis(t)
	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Redis = redisClient
	})

	tmpl := query.NewTemplate("golang")

	// The first response reports an exhausted window
	if _, err := c.Search(context.Background(), tmpl, query.Page{Count: 10}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// The second one is refused locally
	_, err := c.FetchPage(context.Background(), tmpl, query.Page{Count: 10, MaxID: 990})
	var perr *collector.ProviderError
	if !errors.As(err, &perr) || perr.Kind != collector.FailureRateLimited {
		t.Fatalf("Expected rate limited ProviderError, got %v", err)
	}
	if !errors.Is(err, ErrWindowExhausted) {
		t.Errorf("Expected ErrWindowExhausted in chain, got %v", err)
	}
	if got := mock.GetSearchCount(); got != 1 {
		t.Errorf("Search requests = %d, want 1", got)
	}
}

func TestSearch_PageCache(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.GenerateBacklog("golang", 20, 1000)

	redisClient, mr := setupTestRedis(t)
	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Redis = redisClient
		cfg.PageCacheTTL = time.Minute
	})

	tmpl := query.NewTemplate("golang")
	page := query.Page{Count: 5, MaxID: 995}

	first, err := c.Search(context.Background(), tmpl, page)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := c.Search(context.Background(), tmpl, page)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got := mock.GetSearchCount(); got != 1 {
		t.Errorf("Search requests = %d, want 1 (second served from cache)", got)
	}
	if len(first) != 5 || len(second) != 5 || first[0].ID != second[0].ID {
		t.Errorf("Cached page differs: %v vs %v", first, second)
	}

	// A different cursor is a different page
	if _, err := c.Search(context.Background(), tmpl, query.Page{Count: 5, MaxID: 990}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := mock.GetSearchCount(); got != 2 {
		t.Errorf("Search requests = %d, want 2", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Search(context.Background(), tmpl, page); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := mock.GetSearchCount(); got != 3 {
		t.Errorf("Search requests = %d, want 3 after expiry", got)
	}
}

func TestSearch_Cancelled(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()

	c := newTestClient(t, mock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, query.NewTemplate("golang"), query.Page{Count: 15})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	var perr *collector.ProviderError
	if errors.As(err, &perr) {
		t.Error("Cancellation should not be tagged as a provider failure")
	}
}

func TestSearch_Pacing(t *testing.T) {
	mock := testutil.NewMockTwitter()
	defer mock.Close()

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.RequestsPerSecond = 20
		cfg.Burst = 1
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), query.NewTemplate("q"+strconv.Itoa(i)), query.Page{Count: 1}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}

	// Two waits of 50ms after the initial burst
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Three paced requests took %v, want >= 90ms", elapsed)
	}
}

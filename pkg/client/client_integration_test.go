//go:build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/tweet-datasource/internal/testutil"
	"github.com/Sternrassler/tweet-datasource/pkg/collector"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.GenerateBacklog("integration", 250, 90000)

	cfg := DefaultConfig(testutil.MockConsumerKey, testutil.MockConsumerSecret)
	cfg.BaseURL = mock.URL()
	cfg.HTTPClient = mock.Client()
	cfg.Redis = redisClient
	cfg.PageCacheTTL = time.Minute
	cfg.RequestsPerSecond = 0

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	coll := collector.New(c, collector.DefaultConfig())
	tmpl := query.NewTemplate("integration")

	result, err := coll.Collect(ctx, tmpl, 150)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(result.Items) != 150 {
		t.Errorf("len(Items) = %d, want 150", len(result.Items))
	}
	if result.Outcome != collector.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", result.Outcome)
	}

	// Rate limit state was persisted from the response headers
	state, err := c.rateLimiter.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Limit != 180 {
		t.Errorf("Limit = %d, want 180", state.Limit)
	}

	// An identical collection is served from the page cache
	before := mock.GetSearchCount()
	if _, err := coll.Collect(ctx, tmpl, 150); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := mock.GetSearchCount(); got != before {
		t.Errorf("Search requests grew from %d to %d, want cache hits", before, got)
	}
}

func TestIntegration_SharedRateLimitWindow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockTwitter()
	defer mock.Close()
	mock.GenerateBacklog("shared", 10, 500)
	mock.SetRemaining(0)

	newClient := func() *Client {
		cfg := DefaultConfig(testutil.MockConsumerKey, testutil.MockConsumerSecret)
		cfg.BaseURL = mock.URL()
		cfg.HTTPClient = mock.Client()
		cfg.Redis = redisClient
		cfg.RequestsPerSecond = 0
		c, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	first := newClient()
	second := newClient()
	ctx := context.Background()
	tmpl := query.NewTemplate("shared")

	if _, err := first.Search(ctx, tmpl, query.Page{Count: 5}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// The exhausted window reported to the first client gates the second
	_, err := second.Search(ctx, tmpl, query.Page{Count: 5})
	if !errors.Is(err, ErrWindowExhausted) {
		t.Fatalf("Expected ErrWindowExhausted, got %v", err)
	}
	if got := mock.GetSearchCount(); got != 1 {
		t.Errorf("Search requests = %d, want 1", got)
	}
}

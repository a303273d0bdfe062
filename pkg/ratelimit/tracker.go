package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datasource_rate_limit_remaining",
		Help: "Requests remaining in the current provider rate limit window",
	}, []string{"resource"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_rate_limit_blocks_total",
		Help: "Total number of requests refused locally because the window was exhausted",
	}, []string{"resource"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_rate_limit_throttles_total",
		Help: "Total number of requests delayed because the window was nearly exhausted",
	}, []string{"resource"})
)

// Response headers carrying the window state.
const (
	HeaderLimit     = "X-Rate-Limit-Limit"
	HeaderRemaining = "X-Rate-Limit-Remaining"
	HeaderReset     = "X-Rate-Limit-Reset"
)

// DefaultThrottleDelay is the pause applied in the warning range.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors one API resource's request window and gates requests.
type Tracker struct {
	redis         *redis.Client
	resource      string
	throttleDelay time.Duration
	logger        zerolog.Logger
}

// NewTracker creates a new rate limit tracker for resource (e.g. "search").
func NewTracker(redisClient *redis.Client, resource string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		resource:      resource,
		throttleDelay: DefaultThrottleDelay,
		logger:        logger.With().Str("resource", resource).Logger(),
	}
}

// SetThrottleDelay overrides the warning-range pause.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

func (t *Tracker) key() string {
	return RedisKeyPrefix + t.resource
}

// GetState retrieves the current window state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	fields, err := t.redis.HGetAll(ctx, t.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if len(fields) == 0 {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		return &State{
			Remaining:  RemainingThresholdHealthy,
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	state := &State{}
	if state.Limit, err = atoiField(fields, fieldLimit); err != nil {
		return nil, err
	}
	if state.Remaining, err = atoiField(fields, fieldRemaining); err != nil {
		return nil, err
	}
	reset, err := atoiField(fields, fieldReset)
	if err != nil {
		return nil, err
	}
	state.ResetAt = time.Unix(int64(reset), 0)

	if raw := fields[fieldLastUpdate]; raw != "" {
		if state.LastUpdate, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state.UpdateHealth()
	return state, nil
}

func atoiField(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

// UpdateFromHeaders parses rate limit headers and updates Redis state.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		// Header not present - error responses from the token endpoint omit it
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()
	state := &State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    time.Unix(resetEpoch, 0),
		LastUpdate: now,
	}
	state.UpdateHealth()

	// Store in Redis atomically; the hash outlives the window by a minute
	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, t.key(),
		fieldLimit, limit,
		fieldRemaining, remain,
		fieldReset, resetEpoch,
		fieldLastUpdate, now.Format(time.RFC3339Nano),
	)
	pipe.ExpireAt(ctx, t.key(), state.ResetAt.Add(time.Minute))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.WithLabelValues(t.resource).Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit window exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit window nearly exhausted - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on current window state.
// Returns false if the window is exhausted and has not reset yet.
// Returns true but may pause for throttling if in the warning range.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit window exhausted - blocking request")
		rateLimitBlocksTotal.WithLabelValues(t.resource).Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.throttleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("Rate limit window nearly exhausted - throttling request")
		rateLimitThrottlesTotal.WithLabelValues(t.resource).Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// Reset clears the stored window state.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.redis.Del(ctx, t.key()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reset rate limit state: %w", err)
	}
	return nil
}

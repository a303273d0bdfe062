package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for collection runs.
var (
	collectorPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datasource_collector_pages_total",
		Help: "Total number of page fetches issued by the collector",
	})

	collectorItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datasource_collector_items",
		Help:    "Number of items returned per collection run",
		Buckets: []float64{0, 15, 50, 100, 250, 500, 1000},
	})

	collectorOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_collector_outcomes_total",
		Help: "Total collection runs by terminal outcome",
	}, []string{"outcome"})

	collectorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datasource_collector_duration_seconds",
		Help:    "Duration of collection runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

const (
	// MaxPageSize is the provider's per-request item cap.
	MaxPageSize = 100

	// DefaultTarget is used when the caller asks for a non-positive count.
	DefaultTarget = 15
)

// Item is one search result.
type Item struct {
	// ID is globally unique; larger means newer.
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	// RawCreatedAt holds the provider timestamp when it could not be parsed.
	RawCreatedAt string `json:"raw_created_at,omitempty"`
}

// PageFetcher issues a single bounded page request.
type PageFetcher interface {
	// FetchPage returns at most page.Count items with identifiers <= page.MaxID,
	// newest first. Failures should be *ProviderError values.
	FetchPage(ctx context.Context, tmpl query.Template, page query.Page) ([]Item, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, tmpl query.Template, page query.Page) ([]Item, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, tmpl query.Template, page query.Page) ([]Item, error) {
	return f(ctx, tmpl, page)
}

// Outcome is the non-error terminal state of a collection run.
type Outcome string

const (
	// OutcomeSuccess means the target count was reached.
	OutcomeSuccess Outcome = "success"

	// OutcomeExhausted means a page added no new items before the target.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeRateLimited means the provider throttled after some progress.
	OutcomeRateLimited Outcome = "rate_limited_partial"

	// OutcomeCancelled means the context ended after some progress.
	OutcomeCancelled Outcome = "cancelled_partial"
)

// Result is the materialised outcome of one collection run.
type Result struct {
	Items   []Item
	Outcome Outcome
	Pages   int
}

// Config holds collector configuration.
type Config struct {
	// PageSize is the per-request ceiling (at most MaxPageSize).
	PageSize int

	// DefaultTarget replaces non-positive targets.
	DefaultTarget int
}

// DefaultConfig returns the provider's limits.
func DefaultConfig() Config {
	return Config{
		PageSize:      MaxPageSize,
		DefaultTarget: DefaultTarget,
	}
}

// Collector drives sequential page fetches for one template at a time.
// It holds no per-run state and may be shared.
type Collector struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a collector.
func New(fetcher PageFetcher, config Config) *Collector {
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = MaxPageSize
	}
	if config.DefaultTarget <= 0 {
		config.DefaultTarget = DefaultTarget
	}

	return &Collector{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches up to target items matching tmpl.
//
// It returns a Result for every non-error terminal state: target reached,
// no further progress, rate limited after some progress, or cancelled after
// some progress. ErrNoResults is returned when nothing matched, and a
// *ProviderError when the provider failed before anything usable was
// gathered (or failed with anything other than a rate limit).
func (c *Collector) Collect(ctx context.Context, tmpl query.Template, target int) (*Result, error) {
	if target <= 0 {
		target = c.config.DefaultTarget
	}

	start := time.Now()
	logger := c.logger.With().Str("query", tmpl.Text()).Int("target", target).Logger()

	items := make([]Item, 0, min(target, c.config.PageSize))
	seen := make(map[int64]struct{}, cap(items))
	minID := query.NoMaxID
	cursor := query.NoMaxID
	pages := 0

	finish := func(outcome Outcome) *Result {
		collectorOutcomesTotal.WithLabelValues(string(outcome)).Inc()
		collectorItems.Observe(float64(len(items)))
		collectorDuration.Observe(time.Since(start).Seconds())

		logger.Info().
			Str("outcome", string(outcome)).
			Int("items", len(items)).
			Int("pages", pages).
			Dur("duration", time.Since(start)).
			Msg("Collection complete")

		return &Result{Items: items, Outcome: outcome, Pages: pages}
	}

	fail := func(outcome string, err error) error {
		collectorOutcomesTotal.WithLabelValues(outcome).Inc()
		collectorDuration.Observe(time.Since(start).Seconds())
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			if len(items) > 0 {
				logger.Warn().Err(err).Int("items", len(items)).Msg("Collection cancelled - returning partial results")
				return finish(OutcomeCancelled), nil
			}
			return nil, fail("cancelled", fmt.Errorf("collection cancelled: %w", err))
		}

		count := min(c.config.PageSize, target-len(items))
		if count <= 0 {
			return finish(OutcomeSuccess), nil
		}

		sizeAtStart := len(items)
		page := query.Page{Count: count, MaxID: cursor}

		logger.Debug().
			Int("page", pages+1).
			Int("count", count).
			Int64("max_id", cursor).
			Msg("Fetching page")

		fetched, err := c.fetcher.FetchPage(ctx, tmpl, page)
		pages++
		collectorPagesTotal.Inc()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				if len(items) > 0 {
					logger.Warn().Err(err).Int("items", len(items)).Msg("Collection cancelled during fetch - returning partial results")
					return finish(OutcomeCancelled), nil
				}
				return nil, fail("cancelled", fmt.Errorf("collection cancelled: %w", ctxErr))
			}

			perr := asProviderError(err)
			if perr.Kind == FailureRateLimited && len(items) > 0 {
				logger.Warn().
					Err(perr).
					Int("items", len(items)).
					Int("pages", pages).
					Msg("Rate limited - returning partial results")
				return finish(OutcomeRateLimited), nil
			}

			logger.Error().
				Err(perr).
				Str("kind", perr.Kind.String()).
				Int("pages", pages).
				Msg("Page fetch failed")
			return nil, fail("error", perr)
		}

		for _, item := range fetched {
			if len(items) >= target {
				break
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
			if item.ID < minID {
				minID = item.ID
			}
		}
		if len(items) > 0 {
			cursor = minID - 1
		}

		if len(items) == sizeAtStart {
			if len(items) == 0 {
				logger.Info().Int("pages", pages).Msg("No matching items")
				return nil, fail("empty", ErrNoResults)
			}
			return finish(OutcomeExhausted), nil
		}

		if len(items) >= target {
			return finish(OutcomeSuccess), nil
		}

		// Identifiers are positive; nothing can precede an item with ID 1.
		if cursor < 1 {
			return finish(OutcomeExhausted), nil
		}
	}
}

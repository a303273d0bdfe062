package geocode

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/cache"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCacheTTL is how long resolved coordinates are kept.
const DefaultCacheTTL = 24 * time.Hour

const cacheNamespace = "geocode"

// Cached stores successful resolutions of an underlying resolver.
// Failures are never cached.
type Cached struct {
	next   query.Resolver
	cache  *cache.Manager
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCached wraps next with a Redis-backed cache.
func NewCached(next query.Resolver, manager *cache.Manager, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:   next,
		cache:  manager,
		ttl:    ttl,
		logger: log.With().Str("component", "geocode-cache").Logger(),
	}
}

func cacheKey(address string) cache.Key {
	// Addresses differing only in case or surrounding space share an entry
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	return cache.Key{Namespace: cacheNamespace, Params: url.Values{"address": {normalized}}}
}

// Resolve implements query.Resolver.
func (c *Cached) Resolve(ctx context.Context, address string) (query.Coordinate, error) {
	key := cacheKey(address)

	var coord query.Coordinate
	err := c.cache.GetJSON(ctx, key, &coord)
	switch {
	case err == nil:
		c.logger.Debug().Str("address", address).Msg("Coordinate served from cache")
		return coord, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Msg("Cache get error")
	}

	coord, err = c.next.Resolve(ctx, address)
	if err != nil {
		return query.Coordinate{}, err
	}

	if err := c.cache.SetJSON(ctx, key, coord, c.ttl); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache coordinate")
	}
	return coord, nil
}

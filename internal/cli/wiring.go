package cli

import (
	"context"
	"time"

	"github.com/Sternrassler/tweet-datasource/internal/config"
	"github.com/Sternrassler/tweet-datasource/pkg/cache"
	"github.com/Sternrassler/tweet-datasource/pkg/client"
	"github.com/Sternrassler/tweet-datasource/pkg/collector"
	"github.com/Sternrassler/tweet-datasource/pkg/datasource"
	"github.com/Sternrassler/tweet-datasource/pkg/geocode"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisPingTimeout = 2 * time.Second

// buildService assembles the datasource from configuration. The returned
// cleanup releases the Redis connection.
func buildService(ctx context.Context, cfg *config.Config) (*datasource.Service, func()) {
	rdb := connectRedis(ctx, cfg.Redis)

	creds := datasource.Credentials{
		ConsumerKey:    cfg.Twitter.ConsumerKey,
		ConsumerSecret: cfg.Twitter.ConsumerSecret,
		MapsKey:        cfg.Geocode.MapsKey,
	}

	opts := []datasource.Option{
		datasource.WithVersion(version),
		datasource.WithProviderFactory(providerFactory(cfg.Twitter, rdb)),
		datasource.WithCollectorConfig(collector.Config{
			PageSize:      cfg.Collector.PageSize,
			DefaultTarget: cfg.Collector.DefaultTarget,
		}),
	}
	if resolver := newResolver(cfg.Geocode, rdb); resolver != nil {
		opts = append(opts, datasource.WithResolver(resolver))
	}

	cleanup := func() {
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis connection")
			}
		}
	}

	return datasource.New(creds, opts...), cleanup
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	if rc.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", rc.Addr).Msg("Redis unreachable, continuing without rate limit tracking and caching")
		_ = rdb.Close()
		return nil
	}

	log.Info().Str("addr", rc.Addr).Int("db", rc.DB).Msg("Connected to Redis")
	return rdb
}

// providerFactory creates search clients that share rdb.
func providerFactory(tc config.TwitterConfig, rdb *redis.Client) datasource.ProviderFactory {
	return func(creds datasource.Credentials) (datasource.Provider, error) {
		cc := client.DefaultConfig(creds.ConsumerKey, creds.ConsumerSecret)
		cc.BaseURL = tc.BaseURL
		cc.Redis = rdb
		cc.RequestsPerSecond = tc.RequestsPerSecond
		cc.Burst = tc.Burst
		cc.Timeout = tc.Timeout
		cc.PageCacheTTL = tc.PageCacheTTL
		cc.Retry.MaxAttempts = tc.MaxRetries + 1
		if tc.InitialBackoff > 0 {
			cc.Retry.InitialBackoff = tc.InitialBackoff
		}

		c, err := client.New(cc)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// newResolver returns nil without a maps key. Lookups are cached when Redis
// is available.
func newResolver(gc config.GeocodeConfig, rdb *redis.Client) query.Resolver {
	if gc.MapsKey == "" {
		return nil
	}

	geocoder, err := geocode.New(geocode.Config{APIKey: gc.MapsKey, BaseURL: gc.BaseURL})
	if err != nil {
		log.Warn().Err(err).Msg("Geocoder unavailable, address searches will fail")
		return nil
	}

	if rdb == nil || gc.CacheTTL <= 0 {
		return geocoder
	}
	return geocode.NewCached(geocoder, cache.NewManager(rdb), gc.CacheTTL)
}

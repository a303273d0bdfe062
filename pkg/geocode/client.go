// Package geocode resolves free-form addresses to coordinates for
// location-scoped searches.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"googlemaps.github.io/maps"
)

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "datasource_geocode_lookups_total",
	Help: "Total address lookups by result",
}, []string{"result"})

// ErrNoResults is returned when the geocoder knows no location for an address.
var ErrNoResults = errors.New("no location found for address")

// Config holds the geocoder configuration.
type Config struct {
	// APIKey for the Google Geocoding API (REQUIRED)
	APIKey string

	// BaseURL overrides the API host (tests)
	BaseURL string

	// HTTPClient overrides the transport (optional)
	HTTPClient *http.Client

	// Timeout per lookup
	Timeout time.Duration
}

// Client resolves addresses through the Google Geocoding API.
type Client struct {
	maps    *maps.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a geocoding client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("maps api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, maps.WithHTTPClient(cfg.HTTPClient))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}

	return &Client{
		maps:    mc,
		timeout: cfg.Timeout,
		logger:  log.With().Str("component", "geocoder").Logger(),
	}, nil
}

// Resolve implements query.Resolver using the first geocoding result.
func (c *Client) Resolve(ctx context.Context, address string) (query.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("address", address).Msg("Geocoding request failed")
		return query.Coordinate{}, fmt.Errorf("geocode: %w", err)
	}
	if len(results) == 0 {
		lookupsTotal.WithLabelValues("not_found").Inc()
		return query.Coordinate{}, ErrNoResults
	}

	loc := results[0].Geometry.Location
	lookupsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug().
		Str("address", address).
		Float64("latitude", loc.Lat).
		Float64("longitude", loc.Lng).
		Msg("Address resolved")

	return query.Coordinate{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

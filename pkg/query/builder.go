package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultRadius is substituted when a geo search is requested with a
// non-positive radius.
const DefaultRadius = 10.0

// ErrEmptyQuery is returned when no query text is supplied.
var ErrEmptyQuery = errors.New("query text is required")

// Resolver turns a free-form address into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Coordinate, error)
}

// ResolutionError reports that an address could not be geocoded.
type ResolutionError struct {
	Address string
	Err     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve address %q: %v", e.Address, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Params are the caller's raw search parameters. Empty strings mean absent.
type Params struct {
	Query   string
	Type    string
	Lang    string
	Since   string
	Until   string
	Address string
	Radius  float64
	Unit    string
	Count   int
}

// Builder constructs templates from raw parameters.
type Builder struct {
	resolver Resolver
	logger   zerolog.Logger
}

// NewBuilder creates a builder. resolver may be nil, in which case any
// request carrying an address fails with a ResolutionError.
func NewBuilder(resolver Resolver) *Builder {
	return &Builder{
		resolver: resolver,
		logger:   log.With().Str("component", "query-builder").Logger(),
	}
}

// Build validates p and returns the request template.
//
// Invalid optional parameters (language, dates) are dropped. An address that
// cannot be resolved fails the whole build, since the caller explicitly asked
// for location-scoped results.
func (b *Builder) Build(ctx context.Context, p Params) (Template, error) {
	text := strings.TrimSpace(p.Query)
	if text == "" {
		return Template{}, ErrEmptyQuery
	}

	opts := []Option{WithResultType(ParseResultType(p.Type))}

	if p.Lang != "" {
		if ValidLanguageCode(p.Lang) {
			opts = append(opts, WithLanguage(p.Lang))
		} else {
			b.logger.Debug().Str("lang", p.Lang).Msg("Ignoring invalid language code")
		}
	}

	if p.Since != "" {
		if ValidDate(p.Since) {
			opts = append(opts, WithSince(p.Since))
		} else {
			b.logger.Debug().Str("since", p.Since).Msg("Ignoring invalid since date")
		}
	}

	if p.Until != "" {
		if ValidDate(p.Until) {
			opts = append(opts, WithUntil(p.Until))
		} else {
			b.logger.Debug().Str("until", p.Until).Msg("Ignoring invalid until date")
		}
	}

	if p.Address != "" {
		geo, err := b.geoFilter(ctx, p)
		if err != nil {
			return Template{}, err
		}
		opts = append(opts, WithGeo(geo))
	}

	return NewTemplate(text, opts...), nil
}

func (b *Builder) geoFilter(ctx context.Context, p Params) (GeoFilter, error) {
	if b.resolver == nil {
		return GeoFilter{}, &ResolutionError{Address: p.Address, Err: errors.New("no location resolver configured")}
	}

	coord, err := b.resolver.Resolve(ctx, p.Address)
	if err != nil {
		return GeoFilter{}, &ResolutionError{Address: p.Address, Err: err}
	}

	radius := p.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}

	return GeoFilter{
		Coordinate: coord,
		Radius:     radius,
		Unit:       ParseUnit(p.Unit),
	}, nil
}

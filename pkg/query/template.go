// Package query validates search parameters and builds the immutable request
// template that the collector reuses for every page.
package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ResultType selects how the provider orders matching items.
type ResultType string

const (
	// ResultMixed includes both popular and real time results (provider default).
	ResultMixed ResultType = "mixed"

	// ResultPopular returns only the most popular results.
	ResultPopular ResultType = "popular"

	// ResultRecent returns only the most recent results.
	ResultRecent ResultType = "recent"
)

// ParseResultType maps a caller token (Mixed/Popular/Recent, any case) to a
// ResultType. Unknown or empty tokens fall back to ResultMixed.
func ParseResultType(s string) ResultType {
	switch ResultType(strings.ToLower(strings.TrimSpace(s))) {
	case ResultPopular:
		return ResultPopular
	case ResultRecent:
		return ResultRecent
	default:
		return ResultMixed
	}
}

// Unit is the distance unit of a geo filter radius.
type Unit string

const (
	// UnitMiles is the provider's primary unit system.
	UnitMiles Unit = "mi"

	// UnitKilometers must be requested explicitly with the "km" token.
	UnitKilometers Unit = "km"
)

// ParseUnit returns UnitKilometers only for the explicit "km" token.
func ParseUnit(s string) Unit {
	if strings.EqualFold(strings.TrimSpace(s), string(UnitKilometers)) {
		return UnitKilometers
	}
	return UnitMiles
}

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoFilter restricts results to a radius around a coordinate.
type GeoFilter struct {
	Coordinate
	Radius float64
	Unit   Unit
}

// String encodes the filter as the provider's geocode parameter,
// e.g. "37.781157,-122.398720,10mi".
func (g GeoFilter) String() string {
	return fmt.Sprintf("%s,%s,%s%s",
		formatFloat(g.Latitude), formatFloat(g.Longitude), formatFloat(g.Radius), g.Unit)
}

// NoMaxID is the initial cursor: no upper bound on item identifiers.
const NoMaxID int64 = math.MaxInt64

// Page carries the two values that vary between calls made with one template.
type Page struct {
	// Count is the number of items requested for this page.
	Count int

	// MaxID is the inclusive upper bound on returned identifiers.
	// NoMaxID (or any value <= 0) means unbounded.
	MaxID int64
}

// Bounded reports whether the page carries an identifier upper bound.
func (p Page) Bounded() bool {
	return p.MaxID > 0 && p.MaxID < NoMaxID
}

// Template is an immutable search request. Its filters never change once
// built; only the Page passed alongside it varies between calls.
type Template struct {
	text       string
	resultType ResultType
	lang       string
	since      string
	until      string
	geo        *GeoFilter
}

// Option configures a Template at construction time.
type Option func(*Template)

// WithResultType sets the ordering mode.
func WithResultType(rt ResultType) Option {
	return func(t *Template) { t.resultType = rt }
}

// WithLanguage restricts results to an ISO 639-1 language.
func WithLanguage(code string) Option {
	return func(t *Template) { t.lang = strings.ToLower(strings.TrimSpace(code)) }
}

// WithSince sets the lower date bound (YYYY-MM-DD).
func WithSince(date string) Option {
	return func(t *Template) { t.since = date }
}

// WithUntil sets the upper date bound (YYYY-MM-DD).
func WithUntil(date string) Option {
	return func(t *Template) { t.until = date }
}

// WithGeo restricts results to a radius around a coordinate.
func WithGeo(g GeoFilter) Option {
	return func(t *Template) { t.geo = &g }
}

// NewTemplate creates a template for the given query text. Options are not
// validated here; use Builder to construct templates from untrusted input.
func NewTemplate(text string, opts ...Option) Template {
	t := Template{text: text, resultType: ResultMixed}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Text returns the query text.
func (t Template) Text() string { return t.text }

// ResultType returns the ordering mode.
func (t Template) ResultType() ResultType { return t.resultType }

// Language returns the language filter, or "" when unset.
func (t Template) Language() string { return t.lang }

// Since returns the lower date bound, or "" when unset.
func (t Template) Since() string { return t.since }

// Until returns the upper date bound, or "" when unset.
func (t Template) Until() string { return t.until }

// Geo returns the geo filter and whether one is set.
func (t Template) Geo() (GeoFilter, bool) {
	if t.geo == nil {
		return GeoFilter{}, false
	}
	return *t.geo, true
}

// Values encodes the template plus one page in the provider's query
// parameter format.
func (t Template) Values(p Page) url.Values {
	v := url.Values{}
	v.Set("q", t.text)
	v.Set("result_type", string(t.resultType))
	if p.Count > 0 {
		v.Set("count", strconv.Itoa(p.Count))
	}
	if p.Bounded() {
		v.Set("max_id", strconv.FormatInt(p.MaxID, 10))
	}
	if t.lang != "" {
		v.Set("lang", t.lang)
	}
	if t.since != "" {
		v.Set("since", t.since)
	}
	if t.until != "" {
		v.Set("until", t.until)
	}
	if t.geo != nil {
		v.Set("geocode", t.geo.String())
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

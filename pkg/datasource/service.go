package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/client"
	"github.com/Sternrassler/tweet-datasource/pkg/collector"
	"github.com/Sternrassler/tweet-datasource/pkg/geocode"
	"github.com/Sternrassler/tweet-datasource/pkg/logging"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/rs/zerolog"
)

// Provider is the remote search API as seen by the service.
type Provider interface {
	collector.PageFetcher
	Authenticate(ctx context.Context) error
}

// Credentials are the application's API keys. MapsKey is optional.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	MapsKey        string
}

// Validate reports the first missing required credential.
func (c Credentials) Validate() error {
	if c.ConsumerKey == "" {
		return &ConfigurationError{Message: MissingKeyMessage}
	}
	if c.ConsumerSecret == "" {
		return &ConfigurationError{Message: MissingSecretMessage}
	}
	return nil
}

// ProviderFactory creates the provider for a set of credentials.
type ProviderFactory func(creds Credentials) (Provider, error)

// DefaultProviderFactory creates a search API client with default settings.
func DefaultProviderFactory(creds Credentials) (Provider, error) {
	c, err := client.New(client.DefaultConfig(creds.ConsumerKey, creds.ConsumerSecret))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Service executes datasource requests.
type Service struct {
	creds       Credentials
	newProvider ProviderFactory
	resolver    query.Resolver
	collector   collector.Config
	version     string
	logger      zerolog.Logger

	mu       sync.Mutex
	provider Provider
}

// Option configures a Service.
type Option func(*Service)

// WithProviderFactory overrides how the provider is created.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Service) { s.newProvider = f }
}

// WithResolver sets the location resolver for address parameters.
func WithResolver(r query.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithCollectorConfig overrides page size and default target.
func WithCollectorConfig(cfg collector.Config) Option {
	return func(s *Service) { s.collector = cfg }
}

// WithVersion sets the version reported in the metadata.
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// New creates a service. Without WithResolver a Google geocoder is used
// when creds carry a maps key.
func New(creds Credentials, opts ...Option) *Service {
	s := &Service{
		creds:       creds,
		newProvider: DefaultProviderFactory,
		collector:   collector.DefaultConfig(),
		version:     "dev",
		logger:      logging.NewLogger("datasource"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil && creds.MapsKey != "" {
		geocoder, err := geocode.New(geocode.Config{APIKey: creds.MapsKey})
		if err != nil {
			s.logger.Warn().Err(err).Msg("Geocoder unavailable, address searches will fail")
		} else {
			s.resolver = geocoder
		}
	}

	return s
}

// Metadata returns the datasource descriptor as indented JSON.
func (s *Service) Metadata() string {
	return NewMetadata(s.version).JSON()
}

// Execute handles one JSON envelope and returns the response envelope.
func (s *Service) Execute(ctx context.Context, input string) string {
	logger := logging.FromContext(ctx).With().Str("component", "datasource").Logger()

	data, err := ParseData(input)
	if err != nil {
		logger.Warn().Err(err).Msg("Unparseable request")
		return ErrorEnvelope(fmt.Sprintf("Unable to parse input: %v", err))
	}

	// Already-failed requests are passed back untouched
	if data.Discriminator == DiscriminatorError {
		return input
	}

	if data.Discriminator != DiscriminatorGet {
		return ErrorEnvelope("Invalid discriminator.\nExpected " + DiscriminatorGet + "\nFound " + data.Discriminator)
	}

	result, err := s.Search(ctx, ParamsFromData(data))
	if err != nil {
		return ErrorEnvelope(Message(err))
	}

	return ContainerEnvelope(Render(result.Items))
}

// Search runs a complete collection for p.
func (s *Service) Search(ctx context.Context, p query.Params) (*collector.Result, error) {
	logger := logging.FromContext(ctx).With().Str("component", "datasource").Logger()
	start := time.Now()

	provider, err := s.providerFor()
	if err != nil {
		logger.Error().Err(err).Msg("Configuration error")
		return nil, err
	}

	if err := provider.Authenticate(ctx); err != nil {
		logger.Error().Err(err).Msg("Authentication failed")
		return nil, &AuthenticationError{Err: err}
	}

	tmpl, err := query.NewBuilder(s.resolver).Build(ctx, p)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid search request")
		return nil, err
	}

	result, err := collector.New(provider, s.collector).Collect(ctx, tmpl, p.Count)
	if err != nil {
		if errors.Is(err, collector.ErrNoResults) {
			logger.Info().Str("query", tmpl.Text()).Msg("No results")
		} else {
			logger.Error().Err(err).Str("query", tmpl.Text()).Msg("Search failed")
		}
		return nil, err
	}

	logger.Info().
		Str("query", tmpl.Text()).
		Int("collected", len(result.Items)).
		Int("pages", result.Pages).
		Str("outcome", string(result.Outcome)).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return result, nil
}

// providerFor validates the credentials and lazily creates the provider.
func (s *Service) providerFor() (Provider, error) {
	if err := s.creds.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}

	provider, err := s.newProvider(s.creds)
	if err != nil {
		return nil, &ConfigurationError{Message: "Unable to create the Twitter client", Err: err}
	}
	s.provider = provider
	return provider, nil
}

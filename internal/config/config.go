// Package config provides viper-based configuration for the tweet datasource.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete datasource configuration.
type Config struct {
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Collector CollectorConfig `mapstructure:"collector"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TwitterConfig contains search API settings.
type TwitterConfig struct {
	ConsumerKey       string        `mapstructure:"consumer_key"`
	ConsumerSecret    string        `mapstructure:"consumer_secret"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	PageCacheTTL      time.Duration `mapstructure:"page_cache_ttl"`
}

// GeocodeConfig contains address resolution settings.
type GeocodeConfig struct {
	MapsKey  string        `mapstructure:"maps_key"`
	BaseURL  string        `mapstructure:"base_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig contains the shared Redis connection. An empty address
// disables rate limit tracking and caching.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CollectorConfig contains pagination settings.
type CollectorConfig struct {
	PageSize      int `mapstructure:"page_size"`
	DefaultTarget int `mapstructure:"default_target"`
}

// ServerConfig contains HTTP service settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Environment variables read without the DATASOURCE_ prefix.
var legacyEnv = map[string]string{
	"twitter.consumer_key":    "TWITTER_CONSUMER_KEY",
	"twitter.consumer_secret": "TWITTER_CONSUMER_SECRET",
	"geocode.maps_key":        "TWITTER_MAPS_KEY",
}

// Load reads configuration from file and environment variables.
// Environment variables use the DATASOURCE_ prefix with dots replaced by
// underscores (DATASOURCE_REDIS_ADDR).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".tweet-datasource")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tweet-datasource")
	}

	v.SetEnvPrefix("DATASOURCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "DATASOURCE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("twitter.base_url", "https://api.twitter.com")
	v.SetDefault("twitter.requests_per_second", 5.0)
	v.SetDefault("twitter.burst", 1)
	v.SetDefault("twitter.timeout", 30*time.Second)
	v.SetDefault("twitter.max_retries", 2)
	v.SetDefault("twitter.initial_backoff", time.Second)
	v.SetDefault("twitter.page_cache_ttl", time.Duration(0))

	// Empty keeps the geocoding library's endpoint.
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.cache_ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("collector.page_size", 100)
	v.SetDefault("collector.default_target", 15)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// validate checks structural settings. Missing credentials are not an
// error here: they are reported per request.
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", cfg.Server.Port)
	}
	if cfg.Twitter.RequestsPerSecond < 0 {
		return fmt.Errorf("twitter.requests_per_second must be >= 0 (got %v)", cfg.Twitter.RequestsPerSecond)
	}
	if cfg.Twitter.MaxRetries < 0 {
		return fmt.Errorf("twitter.max_retries must be >= 0 (got %d)", cfg.Twitter.MaxRetries)
	}
	if cfg.Collector.PageSize < 1 || cfg.Collector.PageSize > 100 {
		return fmt.Errorf("collector.page_size must be between 1 and 100 (got %d)", cfg.Collector.PageSize)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

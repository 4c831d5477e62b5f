package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Timezone must resolve on hosts without zoneinfo.

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHost            = "0.0.0.0"
	DefaultHTTPPort        = 5000
	DefaultLogLevel        = "info"
	DefaultTimezone        = "Europe/Stockholm"
	DefaultStockKey        = "ASCELIA"
	DefaultUpstreamURL     = "https://www.avanza.se"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultOwnersTTL       = time.Hour
	DefaultMarketGuideTTL  = 6 * time.Hour
	DefaultOwnerChangeTTL  = time.Hour
	DefaultSweepInterval   = 15 * time.Minute
)

// Environment variables that override values from the config file.
const (
	EnvHost     = "OWNERWATCH_HOST"
	EnvHTTPPort = "OWNERWATCH_HTTP_PORT"
)

// Config is the full configuration tree parsed from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`

	// Timezone is the IANA zone used for the owner snapshot lastUpdated stamp.
	Timezone string `yaml:"timezone"`

	// DefaultStock is the key served when a request has no stock parameter.
	DefaultStock string `yaml:"default_stock"`

	// Stocks is the registry of supported tickers. Empty means DefaultStocks().
	Stocks []StockConfig `yaml:"stocks"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Applied on hot reload.
	LogLevel string `yaml:"log_level"`
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// Level parses LogLevel into a slog.Level. Unknown values map to info.
func (s ServerConfig) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// UpstreamConfig controls calls to the market-data provider.
type UpstreamConfig struct {
	// BaseURL is the scheme and host of the provider, without trailing slash.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single upstream request, including reading the body.
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTL TTLConfig `yaml:"ttl"`

	// DedupeInflight collapses concurrent misses for the same key into a
	// single upstream call. Off by default.
	DedupeInflight bool `yaml:"dedupe_inflight"`

	// SweepInterval is how often expired entries are dropped from memory.
	// Zero disables the sweep; expired entries are still never served.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TTLConfig holds one time-to-live per cached route.
type TTLConfig struct {
	Owners      time.Duration `yaml:"owners"`
	MarketGuide time.Duration `yaml:"market_guide"`
	OwnerChange time.Duration `yaml:"owner_change"`
}

// StockConfig maps a short stock key to the provider's identifiers.
type StockConfig struct {
	// Key is the canonical upper-case identifier, e.g. "ASCELIA".
	Key string `yaml:"key"`

	// ID is the provider's numeric order book id.
	ID string `yaml:"id"`

	// Name is the display name shown in the chart.
	Name string `yaml:"name"`

	// OwnerFilterUpperBound is the numberOfOwners upper bound used by the
	// advanced filter so this stock ends up as the first result row.
	OwnerFilterUpperBound int `yaml:"owner_filter_upper_bound"`
}

// DefaultStocks returns the built-in stock table.
func DefaultStocks() []StockConfig {
	return []StockConfig{
		{Key: "ASCELIA", ID: "941919", Name: "Ascelia Pharma", OwnerFilterUpperBound: 12000},
		{Key: "EGETIS", ID: "283294", Name: "Egetis Therapeutics", OwnerFilterUpperBound: 30000},
	}
}

// Load reads and parses the config file at path, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data. Missing fields are filled with defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if len(cfg.Stocks) == 0 {
		cfg.Stocks = DefaultStocks()
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     DefaultHost,
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
		},
		Upstream: UpstreamConfig{
			BaseURL: DefaultUpstreamURL,
			Timeout: DefaultUpstreamTimeout,
		},
		Cache: CacheConfig{
			TTL: TTLConfig{
				Owners:      DefaultOwnersTTL,
				MarketGuide: DefaultMarketGuideTTL,
				OwnerChange: DefaultOwnerChangeTTL,
			},
			SweepInterval: DefaultSweepInterval,
		},
		Timezone:     DefaultTimezone,
		DefaultStock: DefaultStockKey,
	}
}

// applyEnv overrides listener settings from the environment.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not a port number", EnvHTTPPort, v)
		}
		cfg.Server.HTTPPort = port
	}
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	ttl := cfg.Cache.TTL
	if ttl.Owners < 0 || ttl.MarketGuide < 0 || ttl.OwnerChange < 0 {
		return fmt.Errorf("cache.ttl values must not be negative")
	}
	if cfg.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache.sweep_interval must not be negative")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	seen := make(map[string]bool, len(cfg.Stocks))
	for i, s := range cfg.Stocks {
		if s.Key == "" {
			return fmt.Errorf("stocks[%d]: key is required", i)
		}
		if s.Key != strings.ToUpper(s.Key) {
			return fmt.Errorf("stocks[%d] %q: key must be upper case", i, s.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("stocks[%d] %q: duplicate key", i, s.Key)
		}
		seen[s.Key] = true
		if s.ID == "" {
			return fmt.Errorf("stocks[%d] %q: id is required", i, s.Key)
		}
		if s.OwnerFilterUpperBound <= 0 {
			return fmt.Errorf("stocks[%d] %q: owner_filter_upper_bound must be positive", i, s.Key)
		}
	}
	if !seen[strings.ToUpper(cfg.DefaultStock)] {
		return fmt.Errorf("default_stock %q is not in stocks", cfg.DefaultStock)
	}
	return nil
}

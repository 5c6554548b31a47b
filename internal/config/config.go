// Package config provides configuration management for the scholar aggregator.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SCHOLAR"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Cache backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
	CacheBackendNone     = "none"
)

// Config holds all configuration for the scholar aggregator.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Cache selects and sizes the search result cache.
	Cache CacheConfig `mapstructure:"cache"`
	// Fetcher tunes provider fan-out, retries and timeouts.
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	// Ranking tunes result scoring.
	Ranking RankingConfig `mapstructure:"ranking"`
	// Kafka contains domain event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP API port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations on server startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// CacheConfig selects the search result cache.
type CacheConfig struct {
	// Backend is memory, postgres or none.
	Backend string `mapstructure:"backend"`
	// TTL is how long a cached search result is served.
	TTL time.Duration `mapstructure:"ttl"`
	// Size caps the number of entries held by the memory backend.
	Size int `mapstructure:"size"`
}

// FetcherConfig tunes the orchestrator.
type FetcherConfig struct {
	// DefaultSource is searched when a request names no source.
	DefaultSource string `mapstructure:"default_source"`
	// MaxRetries is the total number of attempts per provider call.
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffUnit scales the exponential wait between attempts (2u, 4u, ...).
	BackoffUnit time.Duration `mapstructure:"backoff_unit"`
	// ProviderTimeout bounds one provider call including its retries.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	// MaxConcurrency bounds concurrent provider calls in one search.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// RequestRate and RequestBurst bound provider calls across all searches.
	// A zero rate disables the shared limiter.
	RequestRate  float64 `mapstructure:"request_rate"`
	RequestBurst int     `mapstructure:"request_burst"`
}

// RankingConfig tunes scoring.
type RankingConfig struct {
	// ReferenceYear anchors recency scoring. Zero uses the current year.
	ReferenceYear int `mapstructure:"reference_year"`
}

// KafkaConfig holds domain event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether events are published. Disabled means events are dropped.
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	ArXiv           PaperSourceConfig `mapstructure:"arxiv"`
	PubMed          PaperSourceConfig `mapstructure:"pubmed"`
	Crossref        PaperSourceConfig `mapstructure:"crossref"`
	OpenAlex        PaperSourceConfig `mapstructure:"openalex"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded only from the environment, e.g. SCHOLAR_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY.
	APIKey    string        `mapstructure:"-"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	BurstSize int           `mapstructure:"burst_size"`
	// Email identifies the caller to sources with a polite pool (pubmed, openalex).
	Email string `mapstructure:"email"`
	// UserAgent overrides the default User-Agent (crossref asks for a contact address).
	UserAgent string `mapstructure:"user_agent"`
}

// Source returns the configuration for the named source. Names are the
// registry names from domain.KnownSources.
func (c *PaperSourcesConfig) Source(name string) (PaperSourceConfig, bool) {
	switch name {
	case domain.SourceArXiv:
		return c.ArXiv, true
	case domain.SourceCrossref:
		return c.Crossref, true
	case domain.SourceOpenAlex:
		return c.OpenAlex, true
	case domain.SourcePubMed:
		return c.PubMed, true
	case domain.SourceSemanticScholar:
		return c.SemanticScholar, true
	default:
		return PaperSourceConfig{}, false
	}
}

// EnabledNames returns the names of the enabled sources in registration order.
func (c *PaperSourcesConfig) EnabledNames() []string {
	var names []string
	for _, name := range domain.KnownSources() {
		if sc, ok := c.Source(name); ok && sc.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadWithViper(viper.New())
}

// LoadWithViper loads configuration through v, letting callers such as the
// CLI bind flags before values are resolved.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholar-aggregator")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.PubMed.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scholar")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "scholar_aggregator")
	// Use SCHOLAR_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "scholar")

	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.size", 1024)

	v.SetDefault("fetcher.default_source", "semanticscholar")
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.backoff_unit", "1s")
	v.SetDefault("fetcher.provider_timeout", "30s")
	v.SetDefault("fetcher.max_concurrency", 8)
	v.SetDefault("fetcher.request_rate", 0)
	v.SetDefault("fetcher.request_burst", 10)

	v.SetDefault("ranking.reference_year", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.scholar_aggregator")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 10.0)
	v.SetDefault("paper_sources.semantic_scholar.burst_size", 10)

	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("paper_sources.arxiv.burst_size", 3)

	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key
	v.SetDefault("paper_sources.pubmed.burst_size", 3)
	v.SetDefault("paper_sources.pubmed.email", "")

	v.SetDefault("paper_sources.crossref.enabled", true)
	v.SetDefault("paper_sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("paper_sources.crossref.timeout", "30s")
	v.SetDefault("paper_sources.crossref.rate_limit", 20.0)
	v.SetDefault("paper_sources.crossref.burst_size", 10)
	v.SetDefault("paper_sources.crossref.user_agent", "")

	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.timeout", "30s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)
	v.SetDefault("paper_sources.openalex.burst_size", 10)
	v.SetDefault("paper_sources.openalex.email", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.Cache.Backend) {
	case CacheBackendMemory, CacheBackendPostgres, CacheBackendNone:
	default:
		return fmt.Errorf("invalid cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}

	if c.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("fetcher max_retries must be at least 1")
	}
	if c.Fetcher.BackoffUnit <= 0 {
		return fmt.Errorf("fetcher backoff_unit must be positive")
	}
	if c.Fetcher.MaxConcurrency < 0 {
		return fmt.Errorf("fetcher max_concurrency must not be negative")
	}
	if c.Fetcher.RequestRate < 0 {
		return fmt.Errorf("fetcher request_rate must not be negative")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if len(c.PaperSources.EnabledNames()) == 0 {
		return fmt.Errorf("at least one paper source must be enabled")
	}

	return nil
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is the declared crawler identity.
const DefaultUserAgent = "Mozilla/5.0 (compatible; YachtInsuranceBot/1.0; +https://www.myyachtsinsurance.com/bot)"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Events   EventsConfig   `mapstructure:"events"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig holds the shared secrets accepted by the trigger surface.
// Either key authenticates a caller; configuring neither is a misconfiguration
// reported at request time.
type AuthConfig struct {
	ScraperAPIKey  string `mapstructure:"scraper_api_key"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FetcherConfig governs politeness and caching for outbound fetches.
type FetcherConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	RobotsTTLHours int    `mapstructure:"robots_ttl_hours"`
	CachePath      string `mapstructure:"cache_path"`
	CacheTTLHours  int    `mapstructure:"cache_ttl_hours"`
}

// PipelineConfig sets defaults for run requests that omit them.
type PipelineConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	MaxTier      int `mapstructure:"max_tier"`
	ExtractLimit int `mapstructure:"extract_limit"`
	// PublishMinConfidence filters the publish stage of a full pipeline run.
	PublishMinConfidence float64 `mapstructure:"publish_min_confidence"`
	// DiscoverDepth and DiscoverMaxPages bound same-domain link discovery per root.
	DiscoverDepth    int `mapstructure:"discover_depth"`
	DiscoverMaxPages int `mapstructure:"discover_max_pages"`
}

// QualityConfig tunes the quality gate.
type QualityConfig struct {
	MinConfidence  float64 `mapstructure:"min_confidence"`
	DetectLanguage bool    `mapstructure:"detect_language"`
}

// StorageConfig selects where raw page bodies are archived.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// DBConfig controls the record store.
type DBConfig struct {
	Backend        string `mapstructure:"backend"`
	DSN            string `mapstructure:"dsn"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// EventsConfig selects the pipeline event sink.
type EventsConfig struct {
	Backend       string `mapstructure:"backend"`
	ProjectID     string `mapstructure:"project_id"`
	Topic         string `mapstructure:"topic"`
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QACRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("auth.scraper_api_key", "")
	v.SetDefault("auth.service_role_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("fetcher.user_agent", DefaultUserAgent)
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.delay_seconds", 2)
	v.SetDefault("fetcher.respect_robots", true)
	v.SetDefault("fetcher.robots_ttl_hours", 24)
	v.SetDefault("fetcher.cache_path", "")
	v.SetDefault("fetcher.cache_ttl_hours", 6)
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.max_tier", 2)
	v.SetDefault("pipeline.extract_limit", 10)
	v.SetDefault("pipeline.publish_min_confidence", 0.7)
	v.SetDefault("pipeline.discover_depth", 3)
	v.SetDefault("pipeline.discover_max_pages", 50)
	v.SetDefault("quality.min_confidence", 0.4)
	v.SetDefault("quality.detect_language", false)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.base_dir", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("db.backend", "memory")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.migrate_on_start", false)
	v.SetDefault("events.backend", "none")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "qa-pipeline")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "qacrawler")
	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.service_name", "qacrawler")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Fetcher.DelaySeconds < 0 {
		return fmt.Errorf("fetcher.delay_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Fetcher.UserAgent) == "" {
		return fmt.Errorf("fetcher.user_agent is required")
	}
	if c.Pipeline.BatchSize <= 0 || c.Pipeline.ExtractLimit <= 0 {
		return fmt.Errorf("pipeline.batch_size and pipeline.extract_limit must be > 0")
	}
	if c.Pipeline.DiscoverDepth < 0 || c.Pipeline.DiscoverMaxPages < 0 {
		return fmt.Errorf("pipeline.discover_depth and pipeline.discover_max_pages must be >= 0")
	}
	if c.Quality.MinConfidence < 0 || c.Quality.MinConfidence > 1 {
		return fmt.Errorf("quality.min_confidence must be within [0,1]")
	}
	if c.Pipeline.PublishMinConfidence < 0 || c.Pipeline.PublishMinConfidence > 1 {
		return fmt.Errorf("pipeline.publish_min_confidence must be within [0,1]")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1]")
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.DB.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown db.backend %q", c.DB.Backend)
	}
	switch c.Events.Backend {
	case "none", "memory":
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic are required for pubsub")
		}
	case "nats":
		if c.Events.NATSURL == "" {
			return fmt.Errorf("events.nats_url is required for nats")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	return nil
}

// FetchTimeout returns the per-request fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// FetchDelay returns the minimum per-domain delay between requests.
func (c Config) FetchDelay() time.Duration {
	return time.Duration(c.Fetcher.DelaySeconds) * time.Second
}

// RequestTimeout returns the HTTP handler timeout.
func (c Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

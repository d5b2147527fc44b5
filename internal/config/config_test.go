package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, DefaultUserAgent, cfg.Fetcher.UserAgent)
	require.Equal(t, 15*time.Second, cfg.FetchTimeout())
	require.Equal(t, 2*time.Second, cfg.FetchDelay())
	require.True(t, cfg.Fetcher.RespectRobots)
	require.Equal(t, 5, cfg.Pipeline.BatchSize)
	require.Equal(t, 2, cfg.Pipeline.MaxTier)
	require.Equal(t, 10, cfg.Pipeline.ExtractLimit)
	require.InDelta(t, 0.4, cfg.Quality.MinConfidence, 1e-9)
	require.Equal(t, "memory", cfg.DB.Backend)
	require.Equal(t, "none", cfg.Events.Backend)
	require.InDelta(t, 0.7, cfg.Pipeline.PublishMinConfidence, 1e-9)
	require.True(t, cfg.Tracing.Enabled)
	require.Equal(t, "qacrawler", cfg.Tracing.ServiceName)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  scraper_api_key: legacy
  service_role_key: service
logging:
  development: false
  level: warn
fetcher:
  delay_seconds: 5
  respect_robots: false
  cache_path: /tmp/qacrawler-cache.db
pipeline:
  batch_size: 12
  max_tier: 4
  discover_depth: 2
quality:
  min_confidence: 0.6
  detect_language: true
storage:
  backend: local
  base_dir: /tmp/pages
db:
  backend: postgres
  dsn: postgres://localhost/qa
events:
  backend: nats
  nats_url: nats://127.0.0.1:4222
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "legacy", cfg.Auth.ScraperAPIKey)
	require.Equal(t, "service", cfg.Auth.ServiceRoleKey)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, 5*time.Second, cfg.FetchDelay())
	require.False(t, cfg.Fetcher.RespectRobots)
	require.Equal(t, 12, cfg.Pipeline.BatchSize)
	require.Equal(t, 4, cfg.Pipeline.MaxTier)
	require.Equal(t, 2, cfg.Pipeline.DiscoverDepth)
	require.Equal(t, 50, cfg.Pipeline.DiscoverMaxPages)
	require.True(t, cfg.Quality.DetectLanguage)
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Equal(t, "postgres", cfg.DB.Backend)
	require.Equal(t, "nats", cfg.Events.Backend)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid timeout", mutate: func(c *Config) { c.Fetcher.TimeoutSeconds = 0 }, want: "fetcher.timeout_seconds"},
		{name: "negative delay", mutate: func(c *Config) { c.Fetcher.DelaySeconds = -1 }, want: "fetcher.delay_seconds"},
		{name: "empty user agent", mutate: func(c *Config) { c.Fetcher.UserAgent = " " }, want: "fetcher.user_agent"},
		{name: "confidence out of range", mutate: func(c *Config) { c.Quality.MinConfidence = 1.5 }, want: "quality.min_confidence"},
		{name: "publish threshold", mutate: func(c *Config) { c.Pipeline.PublishMinConfidence = -0.1 }, want: "pipeline.publish_min_confidence"},
		{name: "discover depth", mutate: func(c *Config) { c.Pipeline.DiscoverDepth = -1 }, want: "pipeline.discover_depth"},
		{name: "sample ratio", mutate: func(c *Config) { c.Tracing.SampleRatio = 2 }, want: "tracing.sample_ratio"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = "local" }, want: "storage.base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = "gcs" }, want: "storage.bucket"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.DB.Backend = "postgres" }, want: "db.dsn"},
		{name: "pubsub without project", mutate: func(c *Config) { c.Events.Backend = "pubsub" }, want: "events.project_id"},
		{name: "nats without url", mutate: func(c *Config) { c.Events.Backend = "nats" }, want: "events.nats_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "error %q missing %q", err, tt.want)
		})
	}
}

func TestRequestTimeoutFallback(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.Equal(t, 60*time.Second, cfg.RequestTimeout())
	cfg.Server.RequestTimeoutSeconds = 5
	require.Equal(t, 5*time.Second, cfg.RequestTimeout())
}

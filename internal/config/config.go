// Package config loads process configuration from LFADMIN_* environment
// variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
)

const envPrefix = "LFADMIN"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// APIToken, when set, is required as a bearer token on every /api request.
	APIToken string `envconfig:"API_TOKEN"`

	Store        string `envconfig:"STORE" default:"sqlite"`
	CounterStore string `envconfig:"COUNTER_STORE" default:"sqlite"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:lostfound-admin.db"`
	// AuthToken authenticates against a remote libsql server.
	AuthToken string `envconfig:"AUTH_TOKEN"`

	Redis Redis `envconfig:"REDIS"`
	OTEL  OTEL  `envconfig:"OTEL"`

	IngestRate  float64 `envconfig:"INGEST_RATE" default:"200"`
	IngestBurst int     `envconfig:"INGEST_BURST" default:"400"`

	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"50ms"`
	RetryMaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"1s"`
	RetryMaxElapsed      time.Duration `envconfig:"RETRY_MAX_ELAPSED" default:"5s"`
	RetryMaxAttempts     uint64        `envconfig:"RETRY_MAX_ATTEMPTS" default:"5"`

	// ArchiveDir holds final results of completed experiments. Empty means
	// the XDG data directory.
	ArchiveDir string `envconfig:"ARCHIVE_DIR"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

type Redis struct {
	Addr      string `envconfig:"ADDR" default:"localhost:6379"`
	Password  string `envconfig:"PASSWORD"`
	DB        int    `envconfig:"DB" default:"0"`
	Namespace string `envconfig:"NAMESPACE" default:"lfadmin"`
}

type OTEL struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	Endpoint string `envconfig:"ENDPOINT"`
	Insecure bool   `envconfig:"INSECURE" default:"false"`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%s_STORE must be %s or %s, got %q", envPrefix, StoreSQLite, StoreMemory, c.Store)
	}
	switch c.CounterStore {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("%s_COUNTER_STORE must be %s, %s or %s, got %q", envPrefix, StoreSQLite, StoreRedis, StoreMemory, c.CounterStore)
	}
	if c.CounterStore == StoreSQLite && c.Store != StoreSQLite {
		return fmt.Errorf("%s_COUNTER_STORE=sqlite requires %s_STORE=sqlite", envPrefix, envPrefix)
	}
	if c.IngestRate <= 0 || c.IngestBurst <= 0 {
		return fmt.Errorf("%s_INGEST_RATE and %s_INGEST_BURST must be positive", envPrefix, envPrefix)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("%s_LOG_FORMAT must be text or json, got %q", envPrefix, c.LogFormat)
	}
	return nil
}

// RetryPolicy builds the caller-side retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		InitialInterval: c.RetryInitialInterval,
		MaxInterval:     c.RetryMaxInterval,
		MaxElapsedTime:  c.RetryMaxElapsed,
		MaxRetries:      c.RetryMaxAttempts,
	}
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%s_LOG_LEVEL: %w", envPrefix, err)
	}
	return level, nil
}

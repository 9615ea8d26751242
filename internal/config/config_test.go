package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != StoreSQLite || cfg.CounterStore != StoreSQLite {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Redis.Namespace != "lfadmin" || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.RetryMaxElapsed != 5*time.Second {
		t.Errorf("RetryMaxElapsed = %v", cfg.RetryMaxElapsed)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("LFADMIN_ADDR", ":9090")
	t.Setenv("LFADMIN_STORE", "memory")
	t.Setenv("LFADMIN_COUNTER_STORE", "redis")
	t.Setenv("LFADMIN_REDIS_ADDR", "redis:6379")
	t.Setenv("LFADMIN_REDIS_DB", "2")
	t.Setenv("LFADMIN_OTEL_ENABLED", "true")
	t.Setenv("LFADMIN_OTEL_ENDPOINT", "collector:4317")
	t.Setenv("LFADMIN_RETRY_MAX_ELAPSED", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Store != StoreMemory || cfg.CounterStore != StoreRedis {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "collector:4317" {
		t.Errorf("unexpected otel config: %+v", cfg.OTEL)
	}
	if p := cfg.RetryPolicy(); p.MaxElapsedTime != 2*time.Second || p.MaxRetries != 5 {
		t.Errorf("unexpected retry policy: %+v", p)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store: StoreSQLite, CounterStore: StoreSQLite,
			IngestRate: 1, IngestBurst: 1,
			LogLevel: "info", LogFormat: "text",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "postgres" }, wantErr: "LFADMIN_STORE"},
		{name: "unknown counter store", mutate: func(c *Config) { c.CounterStore = "kafka" }, wantErr: "LFADMIN_COUNTER_STORE"},
		{name: "sqlite counters need sqlite store", mutate: func(c *Config) { c.Store = StoreMemory }, wantErr: "requires"},
		{name: "zero rate", mutate: func(c *Config) { c.IngestRate = 0 }, wantErr: "INGEST_RATE"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LOG_LEVEL"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "debug", LogFormat: "json"}
	cfg.Logger(&buf).Debug("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("expected JSON debug output, got %q", buf.String())
	}

	buf.Reset()
	cfg = Config{LogLevel: "warn", LogFormat: "text"}
	cfg.Logger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

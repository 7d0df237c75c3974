package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("default port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("default ollama url = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLite.Path != "memory.db" {
		t.Errorf("default storage = %+v", cfg.Storage)
	}
	if cfg.Memory.SearchLimit != 5 || cfg.Memory.SearchThreshold != 0.35 || cfg.Memory.ListLimit != 100 {
		t.Errorf("default memory = %+v", cfg.Memory)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "invalid port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "port"},
		{name: "invalid port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "port"},
		{name: "missing ollama url", mutate: func(c *Config) { c.Ollama.BaseURL = "" }, wantErr: "ollama.base_url"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "storage driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "dsn"},
		{name: "memory driver", mutate: func(c *Config) { c.Storage.Driver = "memory" }},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: "cache backend"},
		{name: "bad sample rate", mutate: func(c *Config) { c.Tracing.SampleRate = 2 }, wantErr: "sample_rate"},
		{name: "jwt without secret", mutate: func(c *Config) { c.Auth.Mode = "jwt" }, wantErr: "jwt.secret"},
		{name: "oidc without issuer", mutate: func(c *Config) { c.Auth.Mode = "oidc" }, wantErr: "oidc"},
		{name: "unknown auth", mutate: func(c *Config) { c.Auth.Mode = "basic" }, wantErr: "auth mode"},
		{name: "backup without bucket", mutate: func(c *Config) { c.Backup.Enabled = true }, wantErr: "backup.bucket"},
		{name: "vault without address", mutate: func(c *Config) { c.Vault.Enabled = true }, wantErr: "vault.address"},
		{
			name: "rate limit without budget",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerMinute = 0
			},
			wantErr: "requests_per_minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvOllamaBaseURL, "")
	t.Setenv("RECALL_TEST_DSN", "postgres://u:p@db/recall")

	path := writeConfigFile(t, `
server:
  port: 9000
ollama:
  base_url: http://ollama:11434/
  timeout: 90s
storage:
  driver: postgres
  postgres:
    dsn: ${RECALL_TEST_DSN}
cache:
  backend: memory
  ttl: 1h
vault:
  enabled: true
  address: http://vault:8200
  token: root
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("base url = %q, trailing slash should be trimmed", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Ollama.Timeout)
	}
	if cfg.Storage.Postgres.DSN != "postgres://u:p@db/recall" {
		t.Errorf("dsn = %q, env should be expanded", cfg.Storage.Postgres.DSN)
	}
	if cfg.Storage.Postgres.MaxOpenConns != 10 {
		t.Errorf("unset fields should keep defaults, got max_open_conns=%d", cfg.Storage.Postgres.MaxOpenConns)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Vault.Address != "http://vault:8200" || cfg.Vault.Token != "root" {
		t.Errorf("vault = %+v", cfg.Vault)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfigFile(t, "server: [")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}

	path = writeConfigFile(t, "storage:\n  driver: mysql\n")
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "validate") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "8123")
	t.Setenv(EnvOllamaBaseURL, "http://gpu-box:11434///")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Errorf("base url = %q", cfg.Ollama.BaseURL)
	}

	t.Setenv(EnvPort, "eighty")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestSecretFields(t *testing.T) {
	cfg := DefaultConfig()
	fields := cfg.SecretFields()
	*fields[2] = "resolved"
	if cfg.Auth.JWT.Secret != "resolved" {
		t.Error("SecretFields should point into the config")
	}
}

// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/recall/internal/cache"
	"github.com/blueberrycongee/recall/internal/secret/vault"
)

// Environment variables that override file values.
const (
	EnvPort          = "PORT"
	EnvOllamaBaseURL = "OLLAMA_BASE_URL"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Storage   StorageConfig   `yaml:"storage"`
	Memory    MemoryConfig    `yaml:"memory"`
	Cache     cache.Config    `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	MCP       MCPConfig       `yaml:"mcp"`
	WebSearch WebSearchConfig `yaml:"websearch"`
	Backup    BackupConfig    `yaml:"backup"`
	Vault     VaultConfig     `yaml:"vault"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	// StaticDir, when set, is served at "/".
	StaticDir string `yaml:"static_dir"`
}

// OllamaConfig points at the model runtime.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig selects and configures the memory store.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // sqlite, postgres, memory
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// MemoryConfig overrides the request defaults of the memory API.
type MemoryConfig struct {
	SearchLimit     int     `yaml:"search_limit"`
	SearchThreshold float64 `yaml:"search_threshold"`
	ListLimit       int     `yaml:"list_limit"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Protocol    string  `yaml:"protocol"`     // grpc, http
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
	// ExportMetrics and ExportLogs push the same signals to the OTLP
	// endpoint. They apply even when span export is disabled.
	ExportMetrics   bool          `yaml:"export_metrics"`
	ExportLogs      bool          `yaml:"export_logs"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// RateLimitConfig defines per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Backend           string   `yaml:"backend"` // local, redis (uses cache.redis)
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	BurstSize         int      `yaml:"burst_size"`
	FailOpen          bool     `yaml:"fail_open"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
}

// AuthConfig selects how API callers authenticate.
type AuthConfig struct {
	Mode string     `yaml:"mode"` // none, jwt, oidc
	JWT  JWTConfig  `yaml:"jwt"`
	OIDC OIDCConfig `yaml:"oidc"`
	// SkipPaths bypass authentication (prefix match).
	SkipPaths []string `yaml:"skip_paths"`
}

// JWTConfig configures HS256 bearer token verification.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// OIDCConfig configures ID token verification.
type OIDCConfig struct {
	IssuerURL string `yaml:"issuer_url"`
	ClientID  string `yaml:"client_id"`
}

// MCPConfig configures the Model Context Protocol endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	Enabled bool `yaml:"enabled"`
	// BaseURL overrides the public search endpoints, mainly for tests.
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BackupConfig configures snapshot export to S3-compatible storage.
type BackupConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// VaultConfig enables vault:// secret references.
type VaultConfig struct {
	Enabled      bool          `yaml:"enabled"`
	vault.Config `yaml:",inline"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // chat streams can run for minutes
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Timeout: 300 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "memory.db"},
			Postgres: PostgresConfig{
				MaxOpenConns: 10,
				MaxIdleConns: 5,
				ConnLifetime: 5 * time.Minute,
			},
		},
		Memory: MemoryConfig{
			SearchLimit:     5,
			SearchThreshold: 0.35,
			ListLimit:       100,
		},
		Cache: cache.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Protocol:    "grpc",
			Endpoint:    "localhost:4317",
			ServiceName: "recall",
			SampleRate:      1.0,
			Insecure:        true,
			MetricsInterval: 60 * time.Second,
		},
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			Backend:           "local",
			RequestsPerMinute: 120,
			BurstSize:         20,
		},
		Auth: AuthConfig{
			Mode:      "none",
			SkipPaths: []string{"/health", "/metrics"},
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		WebSearch: WebSearchConfig{
			Enabled:    true,
			MaxResults: 5,
			Timeout:    15 * time.Second,
		},
		Backup: BackupConfig{
			Prefix: "recall",
			Region: "us-east-1",
		},
		Vault: VaultConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}

// Load returns the configuration at path, or the defaults when path is
// empty. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return LoadFromFile(path)
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv applies PORT and OLLAMA_BASE_URL.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvOllamaBaseURL); v != "" {
		c.Ollama.BaseURL = v
	}
	c.Ollama.BaseURL = strings.TrimRight(c.Ollama.BaseURL, "/")
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if c.Ollama.Timeout < 0 {
		return fmt.Errorf("ollama.timeout cannot be negative")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}

	if c.Memory.SearchLimit < 0 || c.Memory.ListLimit < 0 {
		return fmt.Errorf("memory limits cannot be negative")
	}

	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendMemory, cache.BackendRedis:
	default:
		return fmt.Errorf("unsupported cache backend: %q", c.Cache.Backend)
	}

	switch c.Tracing.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unsupported tracing protocol: %q", c.Tracing.Protocol)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}
	switch c.RateLimit.Backend {
	case "", "local", "redis":
	default:
		return fmt.Errorf("unsupported rate_limit backend: %q", c.RateLimit.Backend)
	}

	switch c.Auth.Mode {
	case "", "none":
	case "jwt":
		if c.Auth.JWT.Secret == "" {
			return fmt.Errorf("auth.jwt.secret is required")
		}
	case "oidc":
		if c.Auth.OIDC.IssuerURL == "" || c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.issuer_url and auth.oidc.client_id are required")
		}
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Auth.Mode)
	}

	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup.bucket is required when backup is enabled")
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return fmt.Errorf("vault.address is required when vault is enabled")
	}
	return nil
}

// SecretFields returns pointers to every field that may hold a secret
// reference, for resolution after loading.
func (c *Config) SecretFields() []*string {
	return []*string{
		&c.Storage.Postgres.DSN,
		&c.Cache.Redis.Password,
		&c.Auth.JWT.Secret,
		&c.Backup.AccessKeyID,
		&c.Backup.SecretAccessKey,
	}
}

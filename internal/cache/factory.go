package cache

import (
	"fmt"
	"time"
)

// Config holds the embedding cache configuration.
type Config struct {
	Backend string        `yaml:"backend"` // none, memory or redis
	TTL     time.Duration `yaml:"ttl"`
	Memory  MemoryConfig  `yaml:"memory"`
	Redis   RedisConfig   `yaml:"redis"`
}

// DefaultConfig returns a disabled cache configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendNone,
		TTL:     24 * time.Hour,
		Memory:  DefaultMemoryConfig(),
		Redis:   DefaultRedisConfig(),
	}
}

// New creates the configured cache. It returns nil, nil when caching is
// disabled.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMemory:
		mc := cfg.Memory
		if cfg.TTL > 0 {
			mc.DefaultTTL = cfg.TTL
		}
		return NewMemoryCache(mc), nil
	case BackendRedis:
		rc := cfg.Redis
		if cfg.TTL > 0 {
			rc.DefaultTTL = cfg.TTL
		}
		return NewRedisCache(rc)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

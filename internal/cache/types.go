// Package cache memoizes embeddings so repeated texts do not round-trip to
// the model runtime. It supports an in-process backend and Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache is a byte-value store with per-entry TTL.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value; a zero TTL uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error
	// Close releases any resources held by the cache.
	Close() error
	// Backend names the implementation for metrics.
	Backend() string
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache statistics for monitoring.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

// EmbeddingKey derives the cache key of text embedded by model.
func EmbeddingKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "emb:" + hex.EncodeToString(h.Sum(nil))
}

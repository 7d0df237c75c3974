package cache

import (
	"context"
	"log/slog"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/metrics"
)

// Embedder wraps a memory.Embedder with a read-through cache. Cache
// failures are logged and bypassed; they never fail an embedding.
type Embedder struct {
	next   memory.Embedder
	cache  Cache
	logger *slog.Logger
}

// NewEmbedder decorates next with c. A nil c returns next unchanged.
func NewEmbedder(next memory.Embedder, c Cache, logger *slog.Logger) memory.Embedder {
	if c == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{next: next, cache: c, logger: logger}
}

// Embed returns the cached vector for (model, text) or computes and stores it.
func (e *Embedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	key := EmbeddingKey(model, text)

	blob, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("embedding cache read failed", "backend", e.cache.Backend(), "error", err)
	}
	if blob != nil {
		if vec, err := memory.DecodeEmbedding(blob); err == nil {
			metrics.RecordEmbeddingCache(e.cache.Backend(), true)
			return vec, nil
		}
	}
	metrics.RecordEmbeddingCache(e.cache.Backend(), false)

	vec, err := e.next.Embed(ctx, text, model)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, memory.EncodeEmbedding(vec), 0); err != nil {
		e.logger.Warn("embedding cache write failed", "backend", e.cache.Backend(), "error", err)
	}
	return vec, nil
}

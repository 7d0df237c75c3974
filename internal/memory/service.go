package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/internal/similarity"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
)

// Operation outcomes used as metric labels.
const (
	resultOK        = "ok"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultNoModel   = "no_model"
	resultUpstream  = "upstream_error"
	resultStorage   = "storage_error"
	resultNotFound  = "not_found"
)

// Service enforces validation and dedup policy on top of a Store. Failures
// never escape as errors: they are logged and reported as false or empty
// results.
type Service struct {
	store    Store
	embedder Embedder
	resolver ModelResolver
	logger   *slog.Logger
}

// NewService creates a new memory service.
func NewService(store Store, embedder Embedder, resolver ModelResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		embedder: embedder,
		resolver: resolver,
		logger:   logger,
	}
}

// AddMemory validates, deduplicates and stores content. It reports whether
// a new record was written.
func (s *Service) AddMemory(ctx context.Context, content, category string) bool {
	ctx, span := observability.StartSpan(ctx, "memory.add", trace.SpanKindInternal)
	defer span.End()
	start := time.Now()
	log := observability.LoggerFromContext(ctx, s.logger)

	content = strings.TrimSpace(content)
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}
	span.SetAttributes(attribute.String("memory.category", category))

	if err := validateContent("memory.add", content); err != nil {
		log.Info("skipping memory", "reason", err.Error())
		s.finish(ctx, "add", resultInvalid, start)
		return false
	}

	model, vec, result := s.embed(ctx, log, "add", content)
	if result != resultOK {
		s.finish(ctx, "add", result, start)
		return false
	}

	records, err := s.store.All(ctx)
	if err != nil {
		s.storageFailure(ctx, log, span, "add", err, start)
		return false
	}
	if dup := s.rank(records, model, vec, 1, DedupThreshold); len(dup) > 0 {
		log.Info("skipping duplicate memory",
			"existing_id", dup[0].Item.ID,
			"score", fmt.Sprintf("%.2f", dup[0].Score),
		)
		s.finish(ctx, "add", resultDuplicate, start)
		return false
	}

	id, err := s.store.Insert(ctx, Record{
		Content:   content,
		Category:  category,
		Embedding: vec,
		Model:     model,
	})
	if err != nil {
		s.storageFailure(ctx, log, span, "add", err, start)
		return false
	}

	span.SetAttributes(attribute.Int64("memory.id", id))
	log.Debug("memory added", "id", id, "category", category, "model", model)
	s.finish(ctx, "add", resultOK, start)
	return true
}

// SearchMemories returns the stored memories most similar to query.
func (s *Service) SearchMemories(ctx context.Context, query string, opts SearchOptions) []Match {
	ctx, span := observability.StartSpan(ctx, "memory.search", trace.SpanKindInternal)
	defer span.End()
	start := time.Now()
	log := observability.LoggerFromContext(ctx, s.logger)

	limit, threshold := opts.limit(), opts.threshold()
	span.SetAttributes(
		attribute.Int("memory.search.limit", limit),
		attribute.Float64("memory.search.threshold", threshold),
	)
	if limit == 0 {
		s.finish(ctx, "search", resultOK, start)
		return []Match{}
	}

	model, vec, result := s.embed(ctx, log, "search", query)
	if result != resultOK {
		s.finish(ctx, "search", result, start)
		return []Match{}
	}

	records, err := s.store.All(ctx)
	if err != nil {
		s.storageFailure(ctx, log, span, "search", err, start)
		return []Match{}
	}
	metrics.StoredMemories.Set(float64(len(records)))

	ranked := s.rank(records, model, vec, limit, threshold)
	matches := make([]Match, 0, len(ranked))
	for _, r := range ranked {
		matches = append(matches, Match{
			ID:        r.Item.ID,
			Content:   r.Item.Content,
			Category:  r.Item.Category,
			Score:     r.Score,
			CreatedAt: r.Item.CreatedAt,
		})
	}

	metrics.SearchResults.Observe(float64(len(matches)))
	span.SetAttributes(attribute.Int("memory.search.results", len(matches)))
	s.finish(ctx, "search", resultOK, start)
	return matches
}

// UpdateMemory re-embeds content and overwrites record id. It reports whether
// the record existed and was modified.
func (s *Service) UpdateMemory(ctx context.Context, id int64, content string) bool {
	ctx, span := observability.StartSpan(ctx, "memory.update", trace.SpanKindInternal,
		attribute.Int64("memory.id", id))
	defer span.End()
	start := time.Now()
	log := observability.LoggerFromContext(ctx, s.logger)

	content = strings.TrimSpace(content)
	if err := validateContent("memory.update", content); err != nil {
		log.Info("rejecting memory update", "id", id, "reason", err.Error())
		s.finish(ctx, "update", resultInvalid, start)
		return false
	}

	model, vec, result := s.embed(ctx, log, "update", content)
	if result != resultOK {
		s.finish(ctx, "update", result, start)
		return false
	}

	updated, err := s.store.Update(ctx, id, content, model, vec)
	if err != nil {
		s.storageFailure(ctx, log, span, "update", err, start)
		return false
	}
	if !updated {
		s.finish(ctx, "update", resultNotFound, start)
		return false
	}
	s.finish(ctx, "update", resultOK, start)
	return true
}

// DeleteMemory removes record id and reports whether it existed.
func (s *Service) DeleteMemory(ctx context.Context, id int64) bool {
	ctx, span := observability.StartSpan(ctx, "memory.delete", trace.SpanKindInternal,
		attribute.Int64("memory.id", id))
	defer span.End()
	start := time.Now()

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		s.storageFailure(ctx, observability.LoggerFromContext(ctx, s.logger), span, "delete", err, start)
		return false
	}
	if !deleted {
		s.finish(ctx, "delete", resultNotFound, start)
		return false
	}
	s.finish(ctx, "delete", resultOK, start)
	return true
}

// ClearAllMemories removes every record.
func (s *Service) ClearAllMemories(ctx context.Context) bool {
	ctx, span := observability.StartSpan(ctx, "memory.clear", trace.SpanKindInternal)
	defer span.End()
	start := time.Now()

	if err := s.store.Clear(ctx); err != nil {
		s.storageFailure(ctx, observability.LoggerFromContext(ctx, s.logger), span, "clear", err, start)
		return false
	}
	s.finish(ctx, "clear", resultOK, start)
	return true
}

// ListMemories returns up to limit records, newest first, without
// embeddings. A non-positive limit uses DefaultListLimit.
func (s *Service) ListMemories(ctx context.Context, limit int) []Record {
	ctx, span := observability.StartSpan(ctx, "memory.list", trace.SpanKindInternal)
	defer span.End()
	start := time.Now()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	records, err := s.store.List(ctx, limit)
	if err != nil {
		s.storageFailure(ctx, observability.LoggerFromContext(ctx, s.logger), span, "list", err, start)
		return []Record{}
	}
	for i := range records {
		records[i].Embedding = nil
	}
	s.finish(ctx, "list", resultOK, start)
	return records
}

// Snapshot returns every record with its embedding, oldest first. Unlike
// the other operations it reports storage failures to the caller.
func (s *Service) Snapshot(ctx context.Context) ([]Record, error) {
	ctx, span := observability.StartSpan(ctx, "memory.snapshot", trace.SpanKindInternal)
	defer span.End()
	start := time.Now()

	records, err := s.store.All(ctx)
	if err != nil {
		s.storageFailure(ctx, observability.LoggerFromContext(ctx, s.logger), span, "snapshot", err, start)
		return nil, llmerrors.NewStorageError("memory.snapshot", err)
	}
	span.SetAttributes(attribute.Int("memory.count", len(records)))
	s.finish(ctx, "snapshot", resultOK, start)
	return records, nil
}

// EmbeddingModel reports the embedding model in use, or "" when none is
// available.
func (s *Service) EmbeddingModel(ctx context.Context) string {
	return s.resolver.ResolveEmbeddingModel(ctx)
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// embed resolves the embedding model and embeds text with it.
func (s *Service) embed(ctx context.Context, log *slog.Logger, op, text string) (string, []float32, string) {
	model := s.resolver.ResolveEmbeddingModel(ctx)
	if model == "" {
		log.Warn("no embedding model available", "operation", op)
		return "", nil, resultNoModel
	}
	vec, err := s.embedder.Embed(ctx, text, model)
	if err != nil {
		log.Warn("embedding unavailable", "operation", op, "model", model, "error", err)
		return model, nil, resultUpstream
	}
	return model, vec, resultOK
}

// rank scores records against vec. Records tagged with a different
// embedding model live in another vector space and are skipped.
func (s *Service) rank(records []Record, model string, vec []float32, limit int, threshold float64) []similarity.Scored[Record] {
	candidates := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Model != "" && r.Model != model {
			continue
		}
		candidates = append(candidates, r)
	}
	return similarity.Rank(candidates, func(r Record) []float32 { return r.Embedding }, vec, limit, threshold)
}

func (s *Service) storageFailure(ctx context.Context, log *slog.Logger, span trace.Span, op string, err error, start time.Time) {
	err = llmerrors.NewStorageError("memory."+op, err)
	observability.RecordError(span, err)
	log.Error("memory storage failure", "operation", op, "error", err)
	s.finish(ctx, op, resultStorage, start)
}

func (s *Service) finish(ctx context.Context, op, result string, start time.Time) {
	d := time.Since(start)
	metrics.RecordMemoryOperation(op, result, d)
	observability.RecordMemoryOperation(ctx, op, result, d)
}

func validateContent(op, content string) error {
	if content == "" {
		return llmerrors.NewValidationError(op, "content is empty")
	}
	if utf8.RuneCountInString(content) < MinContentLength {
		return llmerrors.NewValidationError(op, fmt.Sprintf("content shorter than %d characters", MinContentLength))
	}
	return nil
}

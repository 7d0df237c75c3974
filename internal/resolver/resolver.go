// Package resolver picks which locally available models to use for
// embeddings and for tool calling.
//
// Each resolution is an ordered list of phases. A phase inspects the model
// catalog, and optionally per-model details, and either selects a model or
// passes. The first phase that selects wins:
//
//	embedding: capability -> priority -> name -> first
//	tool:      priority -> template
package resolver

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Resolution kinds, used as metric and log labels.
const (
	KindEmbedding = "embedding"
	KindTool      = "tool"
)

// phaseNone labels a resolution that found nothing.
const phaseNone = "none"

// Catalog lists local models and their details.
type Catalog interface {
	ListModels(ctx context.Context) ([]string, error)
	Show(ctx context.Context, name string) (*types.ShowResponse, error)
}

// phase selects a model from the catalog or reports ok=false to pass.
type phase struct {
	name string
	pick func(ctx context.Context, c *candidates) (string, bool)
}

// Resolver resolves embedding and tool models against a Catalog. The
// embedding model is cached for the life of the Resolver; the tool model is
// looked up on every call.
type Resolver struct {
	catalog Catalog
	slot    Slot
	logger  *slog.Logger
}

// New creates a new resolver.
func New(catalog Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog: catalog,
		logger:  logger,
	}
}

// ResolveEmbeddingModel returns the embedding model, or "" when none is
// available. The first non-empty result is cached.
func (r *Resolver) ResolveEmbeddingModel(ctx context.Context) string {
	return r.slot.GetOrResolve(ctx, func(ctx context.Context) string {
		return r.resolve(ctx, KindEmbedding, embeddingPhases)
	})
}

// ResolveToolModel returns a model able to call tools, or "" when none is
// found. The result is never cached.
func (r *Resolver) ResolveToolModel(ctx context.Context) string {
	return r.resolve(ctx, KindTool, toolPhases)
}

// Reset forgets the cached embedding model.
func (r *Resolver) Reset() {
	r.slot.Reset()
}

func (r *Resolver) resolve(ctx context.Context, kind string, phases []phase) string {
	ctx, span := observability.StartSpan(ctx, "resolver."+kind, trace.SpanKindInternal)
	defer span.End()
	start := time.Now()
	log := observability.LoggerFromContext(ctx, r.logger).With("kind", kind)

	models, err := r.catalog.ListModels(ctx)
	if err != nil {
		observability.RecordError(span, err)
		log.Warn("model catalog unavailable", "error", err)
		metrics.RecordModelResolution(kind, phaseNone)
		return ""
	}

	c := &candidates{models: models, catalog: r.catalog, log: log}
	for _, p := range phases {
		if name, ok := p.pick(ctx, c); ok {
			span.SetAttributes(attribute.String("resolver.model", name), attribute.String("resolver.phase", p.name))
			log.Info("model resolved", "model", name, "phase", p.name, "duration", time.Since(start))
			metrics.RecordModelResolution(kind, p.name)
			return name
		}
	}

	log.Info("no suitable model found", "catalog_size", len(models))
	metrics.RecordModelResolution(kind, phaseNone)
	return ""
}

// candidates is the catalog snapshot of one resolution. Details are fetched
// at most once per model.
type candidates struct {
	models  []string
	catalog Catalog
	log     *slog.Logger
	details map[string]*types.ShowResponse
}

// show returns the details of name, or nil when they cannot be fetched.
func (c *candidates) show(ctx context.Context, name string) *types.ShowResponse {
	if d, ok := c.details[name]; ok {
		return d
	}
	d, err := c.catalog.Show(ctx, name)
	if err != nil {
		c.log.Debug("model details unavailable", "model", name, "error", err)
		d = nil
	}
	if c.details == nil {
		c.details = make(map[string]*types.ShowResponse, len(c.models))
	}
	c.details[name] = d
	return d
}

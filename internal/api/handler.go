// Package api provides the HTTP handlers for the memory service, the model
// lookups and the chat proxy.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/recall/internal/httputil"
	"github.com/blueberrycongee/recall/internal/memory"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
	"github.com/blueberrycongee/recall/pkg/types"
)

// MemoryService is the part of memory.Service the handlers call.
type MemoryService interface {
	AddMemory(ctx context.Context, content, category string) bool
	SearchMemories(ctx context.Context, query string, opts memory.SearchOptions) []memory.Match
	UpdateMemory(ctx context.Context, id int64, content string) bool
	DeleteMemory(ctx context.Context, id int64) bool
	ClearAllMemories(ctx context.Context) bool
	ListMemories(ctx context.Context, limit int) []memory.Record
	Snapshot(ctx context.Context) ([]memory.Record, error)
	EmbeddingModel(ctx context.Context) string
	Ping(ctx context.Context) error
}

// Upstream is the model runtime client.
type Upstream interface {
	ListModels(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, body []byte) (*http.Response, error)
}

// ToolModelResolver picks a tool-capable model.
type ToolModelResolver interface {
	ResolveToolModel(ctx context.Context) string
}

// WebSearcher runs web searches.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]types.WebSearchResult, error)
}

// Exporter writes a snapshot of all memories somewhere durable and returns
// its key.
type Exporter interface {
	Export(ctx context.Context, records []memory.Record) (string, error)
}

// Defaults fill in request fields the caller left out. Zero values fall
// back to the memory package defaults.
type Defaults struct {
	SearchLimit     int
	SearchThreshold *float64
	ListLimit       int
}

// Options wires a Handler. Search and Exporter are optional.
type Options struct {
	Memory       MemoryService
	Upstream     Upstream
	Resolver     ToolModelResolver
	Search       WebSearcher
	Exporter     Exporter
	Defaults     Defaults
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// Handler serves the HTTP API.
type Handler struct {
	memory   MemoryService
	upstream Upstream
	resolver ToolModelResolver
	search   WebSearcher
	exporter Exporter
	defaults Defaults
	logger   *slog.Logger
	maxBody  int64
}

// NewHandler creates a new API handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = httputil.DefaultMaxRequestBodyBytes
	}
	return &Handler{
		memory:   opts.Memory,
		upstream: opts.Upstream,
		resolver: opts.Resolver,
		search:   opts.Search,
		exporter: opts.Exporter,
		defaults: opts.Defaults,
		logger:   opts.Logger,
		maxBody:  opts.MaxBodyBytes,
	}
}

// RegisterRoutes mounts every API route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+PathModels, h.ListModels)
	mux.HandleFunc("GET "+PathToolModel, h.ToolCapableModel)
	mux.HandleFunc("GET "+PathRAGStatus, h.RAGStatus)
	mux.HandleFunc("GET "+PathRAGMemories, h.ListMemories)
	mux.HandleFunc("POST "+PathRAGQuery, h.QueryMemories)
	mux.HandleFunc("POST "+PathRAGAdd, h.AddMemory)
	mux.HandleFunc("POST "+PathRAGUpdate, h.UpdateMemory)
	mux.HandleFunc("POST "+PathRAGDelete, h.DeleteMemory)
	mux.HandleFunc("POST "+PathRAGClear, h.ClearMemories)
	mux.HandleFunc("POST "+PathRAGExport, h.ExportMemories)
	mux.HandleFunc("POST "+PathWebSearch, h.WebSearch)
	mux.HandleFunc("POST "+PathChat, h.Chat)
	mux.HandleFunc("GET "+PathHealthLive, h.Live)
	mux.HandleFunc("GET "+PathHealthReady, h.Ready)
}

// NotFound answers any unmatched route.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, MessageResponse{Error: msgNotFound})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It fails while the store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.memory.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := httputil.DecodeJSONBody(r, dst, h.maxBody, allowEmpty); err != nil {
		h.writeError(w, llmerrors.NewValidationError("api.decode", err.Error()))
		return false
	}
	return true
}

// writeError writes err in the structured envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var llmErr *llmerrors.Error
	if !llmerrors.As(err, &llmErr) {
		llmErr = llmerrors.NewInternalError("api", err.Error())
	}
	status := llmErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Message: llmErr.Message,
			Type:    llmErr.Type,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

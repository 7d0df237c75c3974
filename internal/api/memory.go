package api //nolint:revive // package name is intentional

import (
	"net/http"
	"strconv"

	"github.com/blueberrycongee/recall/internal/memory"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
	"github.com/blueberrycongee/recall/pkg/types"
)

// RAGStatus handles GET /api/rag/status. Model is null when no embedding
// model is available.
func (h *Handler) RAGStatus(w http.ResponseWriter, r *http.Request) {
	var resp types.ModelResponse
	if name := h.memory.EmbeddingModel(r.Context()); name != "" {
		resp.Model = &name
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListMemories handles GET /api/rag/memories?limit=N.
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, llmerrors.NewValidationError("api.memories", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	if limit == 0 {
		limit = h.defaults.ListLimit
	}
	records := h.memory.ListMemories(r.Context(), limit)
	writeJSON(w, http.StatusOK, types.MemoriesResponse{Memories: memory.Memories(records)})
}

// QueryMemories handles POST /api/rag/query.
func (h *Handler) QueryMemories(w http.ResponseWriter, r *http.Request) {
	var req types.QueryRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	opts := memory.SearchOptions{Limit: req.Limit, Threshold: req.Threshold}
	if opts.Limit == nil && h.defaults.SearchLimit > 0 {
		limit := h.defaults.SearchLimit
		opts.Limit = &limit
	}
	if opts.Threshold == nil {
		opts.Threshold = h.defaults.SearchThreshold
	}
	matches := h.memory.SearchMemories(r.Context(), req.Query, opts)
	writeJSON(w, http.StatusOK, types.QueryResponse{Results: memory.QueryResults(matches)})
}

// AddMemory handles POST /api/rag/add.
func (h *Handler) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req types.AddRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	ok := h.memory.AddMemory(r.Context(), req.Content, req.Category)
	writeJSON(w, http.StatusOK, types.SuccessResponse{Success: ok})
}

// UpdateMemory handles POST /api/rag/update.
func (h *Handler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	ok := h.memory.UpdateMemory(r.Context(), req.ID, req.Content)
	writeJSON(w, http.StatusOK, types.SuccessResponse{Success: ok})
}

// DeleteMemory handles POST /api/rag/delete.
func (h *Handler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	var req types.DeleteRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	ok := h.memory.DeleteMemory(r.Context(), req.ID)
	writeJSON(w, http.StatusOK, types.SuccessResponse{Success: ok})
}

// ClearMemories handles POST /api/rag/clear. The body is ignored.
func (h *Handler) ClearMemories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.SuccessResponse{Success: h.memory.ClearAllMemories(r.Context())})
}

// ExportMemories handles POST /api/rag/export.
func (h *Handler) ExportMemories(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.writeError(w, llmerrors.NewNotFoundError("api.export", msgBackupDisabled))
		return
	}
	records, err := h.memory.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	key, err := h.exporter.Export(r.Context(), records)
	if err != nil {
		h.writeError(w, llmerrors.NewUpstreamError("api.export", "export failed", err))
		return
	}
	h.logger.Info("memories exported", "key", key, "count", len(records))
	writeJSON(w, http.StatusOK, types.ExportResponse{Success: true, Key: key, Count: len(records)})
}

package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/blueberrycongee/recall/pkg/types"
)

// ListModels handles GET /api/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	names, err := h.upstream.ListModels(r.Context())
	if err != nil {
		h.logger.Warn("model catalog unavailable", "error", err)
		writeJSON(w, http.StatusBadGateway, types.ModelsResponse{Models: []string{}})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: names})
}

// ToolCapableModel handles GET /api/models/tool-capable.
func (h *Handler) ToolCapableModel(w http.ResponseWriter, r *http.Request) {
	name := h.resolver.ResolveToolModel(r.Context())
	if name == "" {
		writeJSON(w, http.StatusNotFound, MessageResponse{Error: msgNoToolModel})
		return
	}
	writeJSON(w, http.StatusOK, types.ModelResponse{Model: &name})
}

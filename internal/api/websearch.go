package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/blueberrycongee/recall/pkg/types"
)

// WebSearch handles POST /api/tools/web_search. Search failures are
// reported in the body with status 200 so tool-calling clients can relay
// them to the model.
func (h *Handler) WebSearch(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		NotFound(w, r)
		return
	}
	var req types.WebSearchRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	results, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		writeJSON(w, http.StatusOK, types.WebSearchResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, types.WebSearchResponse{Results: results})
}

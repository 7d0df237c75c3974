package types

// QueryRequest is the body of POST /api/rag/query. Nil fields take the
// service defaults.
type QueryRequest struct {
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// AddRequest is the body of POST /api/rag/add.
type AddRequest struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// UpdateRequest is the body of POST /api/rag/update.
type UpdateRequest struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// DeleteRequest is the body of POST /api/rag/delete.
type DeleteRequest struct {
	ID int64 `json:"id"`
}

// SuccessResponse is returned by every mutating RAG endpoint.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ModelResponse carries a single resolved model name. A nil Model
// encodes as JSON null.
type ModelResponse struct {
	Model *string `json:"model"`
}

// ModelsResponse lists catalog model names.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// WebSearchRequest is the body of POST /api/tools/web_search.
type WebSearchRequest struct {
	Query string `json:"query"`
}

// WebSearchResult is a single search hit.
type WebSearchResult struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// WebSearchResponse holds either results or an error message.
type WebSearchResponse struct {
	Results []WebSearchResult `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// TimeLayout is the wire format of memory timestamps, local time with
// second precision.
const TimeLayout = "2006-01-02 15:04:05"

// Memory is a stored memory as returned by GET /api/rag/memories.
type Memory struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
}

// MemoriesResponse is the body of GET /api/rag/memories.
type MemoriesResponse struct {
	Memories []Memory `json:"memories"`
}

// QueryResult is a single search hit.
type QueryResult struct {
	ID        int64   `json:"id"`
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// QueryResponse is the body of POST /api/rag/query.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

// ExportResponse is the body of POST /api/rag/export.
type ExportResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key,omitempty"`
	Count   int    `json:"count"`
}

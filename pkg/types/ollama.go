package types

import "strings"

// EmbeddingRequest is the body of POST /api/embeddings.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse is the body returned by /api/embeddings.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// TagsResponse is the model catalog returned by GET /api/tags.
type TagsResponse struct {
	Models []ModelEntry `json:"models"`
}

// ModelEntry is a single catalog item. Only Name is relied upon.
type ModelEntry struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

// Names returns the non-empty model names in catalog order.
func (r *TagsResponse) Names() []string {
	names := make([]string, 0, len(r.Models))
	for _, m := range r.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

// ShowRequest is the body of POST /api/show.
type ShowRequest struct {
	Name string `json:"name"`
}

// ShowResponse holds the per-model metadata the resolver inspects.
type ShowResponse struct {
	ModelInfo    ModelInfo `json:"model_info,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Template     string    `json:"template,omitempty"`
}

// ModelInfo is the free-form model_info object. Its keys vary by
// architecture, so it stays untyped.
type ModelInfo map[string]any

// Families returns model_info.families as strings, skipping non-string
// entries.
func (m ModelInfo) Families() []string {
	raw, ok := m["families"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HasFamily reports whether any family equals one of names.
func (r *ShowResponse) HasFamily(names ...string) bool {
	for _, f := range r.ModelInfo.Families() {
		for _, n := range names {
			if f == n {
				return true
			}
		}
	}
	return false
}

// HasCapability reports whether capabilities contains c.
func (r *ShowResponse) HasCapability(c string) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// TemplateContains reports whether the prompt template contains any marker.
func (r *ShowResponse) TemplateContains(markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(r.Template, m) {
			return true
		}
	}
	return false
}

// ChatRequest is the subset of POST /api/chat the proxy inspects.
type ChatRequest struct {
	Model  string `json:"model,omitempty"`
	Stream bool   `json:"stream,omitempty"`
}

package memory

import "github.com/blueberrycongee/recall/pkg/types"

// QueryResults converts matches to their wire form.
func QueryResults(matches []Match) []types.QueryResult {
	out := make([]types.QueryResult, len(matches))
	for i, m := range matches {
		out[i] = types.QueryResult{
			ID:        m.ID,
			Content:   m.Content,
			Category:  m.Category,
			Score:     m.Score,
			CreatedAt: m.CreatedAt.Format(types.TimeLayout),
		}
	}
	return out
}

// Memories converts records to their wire form. Embeddings are dropped.
func Memories(records []Record) []types.Memory {
	out := make([]types.Memory, len(records))
	for i, r := range records {
		out[i] = types.Memory{
			ID:        r.ID,
			Content:   r.Content,
			Category:  r.Category,
			CreatedAt: r.CreatedAt.Format(types.TimeLayout),
		}
	}
	return out
}

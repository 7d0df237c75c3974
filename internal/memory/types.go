package memory

import "time"

// Policy constants.
const (
	// MinContentLength is the minimum trimmed content length, in characters.
	MinContentLength = 10
	// DefaultCategory is assigned when a memory has no category.
	DefaultCategory = "General"
	// DedupThreshold is the score at or above which a new memory counts as a
	// near-duplicate of an existing one.
	DedupThreshold = 0.9
	// DefaultSearchLimit is the number of matches returned when unspecified.
	DefaultSearchLimit = 5
	// DefaultSearchThreshold is the minimum retrieval score when unspecified.
	DefaultSearchThreshold = 0.35
	// DefaultListLimit caps ListMemories when no limit is given.
	DefaultListLimit = 100
)

// Record is a stored memory.
type Record struct {
	ID       int64  `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category"`
	// Embedding is omitted from listings.
	Embedding []float32 `json:"-"`
	// Model names the embedding model that produced Embedding. Empty for
	// rows written before models were tracked.
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a search hit.
type Match struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchOptions tunes SearchMemories. Nil fields take the defaults; an
// explicit limit of zero or less returns no matches.
type SearchOptions struct {
	Limit     *int
	Threshold *float64
}

func (o SearchOptions) limit() int {
	if o.Limit == nil {
		return DefaultSearchLimit
	}
	return max(*o.Limit, 0)
}

func (o SearchOptions) threshold() float64 {
	if o.Threshold == nil {
		return DefaultSearchThreshold
	}
	return *o.Threshold
}

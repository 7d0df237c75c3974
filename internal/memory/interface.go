package memory

import (
	"context"
)

// Store persists memory records. Every call is its own transaction.
type Store interface {
	// Insert stores rec and returns its new ID. rec.ID and rec.CreatedAt are
	// ignored; both are assigned by the store.
	Insert(ctx context.Context, rec Record) (int64, error)
	// All returns every record with its embedding, in ascending ID order.
	All(ctx context.Context) ([]Record, error)
	// Update overwrites content, embedding and model of record id and reports
	// whether it existed.
	Update(ctx context.Context, id int64, content, model string, embedding []float32) (bool, error)
	// Delete removes record id and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
	// List returns up to limit records, newest first, without embeddings.
	List(ctx context.Context, limit int) ([]Record, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Embedder turns text into a vector using the named model.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// ModelResolver picks the embedding model. An empty name means none is
// available.
type ModelResolver interface {
	ResolveEmbeddingModel(ctx context.Context) string
}

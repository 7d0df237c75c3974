// Package inmem provides process-local memory storage and a deterministic
// keyword embedder, for tests and for running without a database.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blueberrycongee/recall/internal/memory"
)

// Store is a thread-safe in-memory memory.Store. Records are kept in
// insertion (and therefore ID) order.
type Store struct {
	mu      sync.RWMutex
	records []memory.Record
	nextID  int64
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nextID: 1,
		now:    func() time.Time { return time.Now().Truncate(time.Second) },
	}
}

// WithClock overrides the creation timestamp source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Insert(ctx context.Context, rec memory.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	rec.CreatedAt = s.now()
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *Store) All(ctx context.Context) ([]memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Update(ctx context.Context, id int64, content, model string, embedding []float32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Content = content
			s.records[i].Model = model
			s.records[i].Embedding = append([]float32(nil), embedding...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]memory.Record, error) {
	s.mu.RLock()
	out := make([]memory.Record, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	// Newest first; IDs break ties within the same second.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Embedding = nil
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/memory/inmem"
)

const reportMemory = "The quarterly report is due next Friday at noon"

type fixedResolver struct {
	model atomic.Value
}

func newFixedResolver(model string) *fixedResolver {
	r := &fixedResolver{}
	r.model.Store(model)
	return r
}

func (r *fixedResolver) ResolveEmbeddingModel(ctx context.Context) string {
	return r.model.Load().(string)
}

func (r *fixedResolver) set(model string) {
	r.model.Store(model)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

// brokenStore fails every call.
type brokenStore struct{ inmem.Store }

var errDisk = errors.New("disk I/O error")

func (*brokenStore) Insert(ctx context.Context, rec memory.Record) (int64, error) {
	return 0, errDisk
}

func (*brokenStore) All(ctx context.Context) ([]memory.Record, error) {
	return nil, errDisk
}

func (*brokenStore) Update(ctx context.Context, id int64, content, model string, embedding []float32) (bool, error) {
	return false, errDisk
}

func (*brokenStore) Delete(ctx context.Context, id int64) (bool, error) {
	return false, errDisk
}

func (*brokenStore) Clear(ctx context.Context) error {
	return errDisk
}

func (*brokenStore) List(ctx context.Context, limit int) ([]memory.Record, error) {
	return nil, errDisk
}

func newService(t *testing.T) (*memory.Service, *inmem.Store, *fixedResolver) {
	t.Helper()
	store := inmem.NewStore()
	resolver := newFixedResolver("nomic-embed-text")
	svc := memory.NewService(store, inmem.NewKeywordEmbedder(0), resolver, nil)
	return svc, store, resolver
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestAddMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("stores trimmed content with category", func(t *testing.T) {
		svc, store, _ := newService(t)

		require.True(t, svc.AddMemory(ctx, "  "+reportMemory+"\n", " Work "))

		all, _ := store.All(ctx)
		require.Len(t, all, 1)
		assert.Equal(t, reportMemory, all[0].Content)
		assert.Equal(t, "Work", all[0].Category)
		assert.Equal(t, "nomic-embed-text", all[0].Model)
		assert.NotEmpty(t, all[0].Embedding)
	})

	t.Run("defaults empty category", func(t *testing.T) {
		svc, store, _ := newService(t)

		require.True(t, svc.AddMemory(ctx, reportMemory, "   "))

		all, _ := store.All(ctx)
		require.Len(t, all, 1)
		assert.Equal(t, memory.DefaultCategory, all[0].Category)
	})

	t.Run("rejects short content", func(t *testing.T) {
		svc, store, _ := newService(t)

		assert.False(t, svc.AddMemory(ctx, "short", "General"))
		assert.False(t, svc.AddMemory(ctx, "   123456789   ", "General"), "nine characters after trimming")
		assert.False(t, svc.AddMemory(ctx, "   ", "General"))

		all, _ := store.All(ctx)
		assert.Empty(t, all)
	})

	t.Run("accepts exactly ten characters", func(t *testing.T) {
		svc, _, _ := newService(t)
		assert.True(t, svc.AddMemory(ctx, "0123456789", ""))
	})

	t.Run("skips near duplicates", func(t *testing.T) {
		svc, store, _ := newService(t)

		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
		assert.False(t, svc.AddMemory(ctx, reportMemory, "Work"))
		assert.False(t, svc.AddMemory(ctx, "the QUARTERLY report is due next friday, at noon!", "Other"))

		all, _ := store.All(ctx)
		assert.Len(t, all, 1)
	})

	t.Run("keeps distinct memories", func(t *testing.T) {
		svc, store, _ := newService(t)

		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
		require.True(t, svc.AddMemory(ctx, "My sister's birthday is on the third of May", "Personal"))

		all, _ := store.All(ctx)
		assert.Len(t, all, 2)
	})

	t.Run("fails without embedding model", func(t *testing.T) {
		svc, store, resolver := newService(t)
		resolver.set("")

		assert.False(t, svc.AddMemory(ctx, reportMemory, "Work"))
		all, _ := store.All(ctx)
		assert.Empty(t, all)
	})

	t.Run("fails when embedding is unavailable", func(t *testing.T) {
		store := inmem.NewStore()
		svc := memory.NewService(store, failingEmbedder{}, newFixedResolver("nomic-embed-text"), nil)

		assert.False(t, svc.AddMemory(ctx, reportMemory, "Work"))
		all, _ := store.All(ctx)
		assert.Empty(t, all)
	})

	t.Run("fails on storage error", func(t *testing.T) {
		svc := memory.NewService(&brokenStore{}, inmem.NewKeywordEmbedder(0), newFixedResolver("m"), nil)
		assert.False(t, svc.AddMemory(ctx, reportMemory, "Work"))
	})
}

func TestSearchMemories(t *testing.T) {
	ctx := context.Background()

	t.Run("finds related memory with defaults", func(t *testing.T) {
		svc, _, _ := newService(t)
		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))

		got := svc.SearchMemories(ctx, "when is the report due", memory.SearchOptions{})
		require.Len(t, got, 1)
		assert.Equal(t, reportMemory, got[0].Content)
		assert.Equal(t, "Work", got[0].Category)
		assert.Greater(t, got[0].Score, memory.DefaultSearchThreshold)
		assert.False(t, got[0].CreatedAt.IsZero())
	})

	t.Run("respects threshold ordering and limit", func(t *testing.T) {
		svc, _, _ := newService(t)
		for _, c := range []string{
			"Alice likes green tea in the morning",
			"Alice likes black coffee in the evening",
			"The car needs new tyres before winter",
			"Alice prefers green tea over coffee",
		} {
			require.True(t, svc.AddMemory(ctx, c, ""))
		}

		all := svc.SearchMemories(ctx, "what tea does alice like", memory.SearchOptions{
			Limit:     intPtr(10),
			Threshold: floatPtr(-1),
		})
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
		}

		threshold := 0.3
		filtered := svc.SearchMemories(ctx, "what tea does alice like", memory.SearchOptions{
			Limit:     intPtr(10),
			Threshold: &threshold,
		})
		for _, m := range filtered {
			assert.GreaterOrEqual(t, m.Score, threshold)
		}

		limited := svc.SearchMemories(ctx, "what tea does alice like", memory.SearchOptions{
			Limit:     intPtr(2),
			Threshold: floatPtr(-1),
		})
		require.Len(t, limited, 2)
		assert.Equal(t, all[0].ID, limited[0].ID)
		assert.Equal(t, all[1].ID, limited[1].ID)
	})

	t.Run("explicit zero limit returns nothing", func(t *testing.T) {
		svc, _, _ := newService(t)
		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))

		assert.Empty(t, svc.SearchMemories(ctx, "report", memory.SearchOptions{Limit: intPtr(0), Threshold: floatPtr(-1)}))
		assert.Empty(t, svc.SearchMemories(ctx, "report", memory.SearchOptions{Limit: intPtr(-3), Threshold: floatPtr(-1)}))
		assert.Len(t, svc.SearchMemories(ctx, "report", memory.SearchOptions{Threshold: floatPtr(-1)}), 1)
	})

	t.Run("excludes vectors from another embedding model", func(t *testing.T) {
		svc, store, resolver := newService(t)
		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))

		// An untagged row written before models were tracked.
		legacy := inmem.KeywordVector("mxbai-embed-large", "legacy note about the report", inmem.DefaultDimensions)
		_, err := store.Insert(ctx, memory.Record{Content: "legacy note about the report", Category: "General", Embedding: legacy})
		require.NoError(t, err)

		resolver.set("mxbai-embed-large")
		got := svc.SearchMemories(ctx, "report", memory.SearchOptions{Threshold: floatPtr(-1), Limit: intPtr(10)})
		require.Len(t, got, 1)
		assert.Equal(t, "legacy note about the report", got[0].Content)
	})

	t.Run("returns empty on failures", func(t *testing.T) {
		svc, _, resolver := newService(t)
		require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))

		resolver.set("")
		got := svc.SearchMemories(ctx, "report", memory.SearchOptions{})
		assert.NotNil(t, got)
		assert.Empty(t, got)

		broken := memory.NewService(&brokenStore{}, inmem.NewKeywordEmbedder(0), newFixedResolver("m"), nil)
		assert.Empty(t, broken.SearchMemories(ctx, "report", memory.SearchOptions{}))
	})
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t)
	require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
	all, _ := store.All(ctx)
	id := all[0].ID

	assert.True(t, svc.UpdateMemory(ctx, id, "  The quarterly report moved to Monday morning "))
	assert.False(t, svc.UpdateMemory(ctx, id, "too short"))
	assert.False(t, svc.UpdateMemory(ctx, id+100, "This record does not exist at all"))

	all, _ = store.All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "The quarterly report moved to Monday morning", all[0].Content)
	assert.Equal(t, "Work", all[0].Category, "update keeps the category")

	got := svc.SearchMemories(ctx, "report monday", memory.SearchOptions{})
	require.NotEmpty(t, got)
	assert.Equal(t, id, got[0].ID)
}

func TestDeleteMemory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
	require.True(t, svc.AddMemory(ctx, "Renew the passport before the summer trip", "Personal"))

	listed := svc.ListMemories(ctx, 0)
	require.Len(t, listed, 2)
	target := listed[0].ID

	assert.True(t, svc.DeleteMemory(ctx, target))
	assert.False(t, svc.DeleteMemory(ctx, target), "second delete finds nothing")
	assert.False(t, svc.DeleteMemory(ctx, 9999))

	for _, r := range svc.ListMemories(ctx, 0) {
		assert.NotEqual(t, target, r.ID)
	}
	for _, m := range svc.SearchMemories(ctx, "passport report", memory.SearchOptions{Threshold: floatPtr(-1)}) {
		assert.NotEqual(t, target, m.ID)
	}
	assert.Len(t, svc.ListMemories(ctx, 0), 1)
}

func TestClearAndListMemories(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
	require.True(t, svc.AddMemory(ctx, "Renew the passport before the summer trip", "Personal"))
	require.True(t, svc.AddMemory(ctx, "The dentist appointment is on Tuesday", "Health"))

	listed := svc.ListMemories(ctx, 0)
	require.Len(t, listed, 3)
	assert.Equal(t, "The dentist appointment is on Tuesday", listed[0].Content, "newest first")
	for _, r := range listed {
		assert.Nil(t, r.Embedding)
	}
	assert.Len(t, svc.ListMemories(ctx, 2), 2)

	assert.True(t, svc.ClearAllMemories(ctx))
	listed = svc.ListMemories(ctx, 0)
	assert.NotNil(t, listed)
	assert.Empty(t, listed)
}

func TestStorageFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(&brokenStore{}, inmem.NewKeywordEmbedder(0), newFixedResolver("m"), nil)

	assert.False(t, svc.UpdateMemory(ctx, 1, reportMemory))
	assert.False(t, svc.DeleteMemory(ctx, 1))
	assert.False(t, svc.ClearAllMemories(ctx))
	assert.Empty(t, svc.ListMemories(ctx, 10))
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.True(t, svc.AddMemory(ctx, reportMemory, "Work"))
	require.True(t, svc.AddMemory(ctx, "My favourite colour is a deep ocean blue", ""))

	records, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, reportMemory, records[0].Content)
	assert.NotEmpty(t, records[0].Embedding, "snapshots keep embeddings")

	broken := memory.NewService(&brokenStore{}, inmem.NewKeywordEmbedder(0), newFixedResolver("m"), nil)
	_, err = broken.Snapshot(ctx)
	assert.ErrorIs(t, err, errDisk)
}

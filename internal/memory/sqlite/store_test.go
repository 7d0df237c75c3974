package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/memory"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "memory.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	require.NoError(t, s.Ping(ctx))

	id1, err := s.Insert(ctx, memory.Record{
		Content:   "The quarterly report is due next Friday",
		Category:  "Work",
		Embedding: []float32{0.1, 0.2, 0.3},
		Model:     "nomic-embed-text",
	})
	require.NoError(t, err)
	id2, err := s.Insert(ctx, memory.Record{
		Content:   "Renew the passport before summer",
		Category:  "Personal",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id1, all[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, all[0].Embedding)
	assert.Equal(t, "nomic-embed-text", all[0].Model)
	assert.Equal(t, "", all[1].Model)
	assert.WithinDuration(t, time.Now(), all[0].CreatedAt, time.Minute)
	assert.Equal(t, time.Local, all[0].CreatedAt.Location())

	ok, err := s.Update(ctx, id1, "The quarterly report moved to Monday", "mxbai-embed-large", []float32{0, 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Update(ctx, 999, "missing record content", "m", []float32{1})
	require.NoError(t, err)
	assert.False(t, ok)

	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "The quarterly report moved to Monday", all[0].Content)
	assert.Equal(t, "Work", all[0].Category)
	assert.Equal(t, []float32{0, 1}, all[0].Embedding)
	assert.Equal(t, "mxbai-embed-large", all[0].Model)

	ok, err = s.Delete(ctx, id2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, id2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	id3, err := s.Insert(ctx, memory.Record{Content: "after clear content", Category: "General", Embedding: []float32{1}})
	require.NoError(t, err)
	assert.Greater(t, id3, id2, "ids are never reused")
}

func TestStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	var ids []int64
	for _, c := range []string{"first memory item", "second memory item", "third memory item"} {
		id, err := s.Insert(ctx, memory.Record{Content: c, Category: "General", Embedding: []float32{1, 2}})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, ids[0], list[2].ID)
	for _, r := range list {
		assert.Nil(t, r.Embedding)
		assert.False(t, r.CreatedAt.IsZero())
	}

	list, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_SkipsCorruptEmbedding(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Insert(ctx, memory.Record{Content: "healthy memory", Category: "General", Embedding: []float32{1, 1}})
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (content, category, embedding) VALUES (?, ?, ?)`,
		"broken memory", "General", []byte{1, 2, 3})
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "healthy memory", all[0].Content)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2, "listing does not decode embeddings")
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TEXT DEFAULT (datetime('now', 'localtime'))
	)`)
	require.NoError(t, err)
	_, err = legacy.Exec(`INSERT INTO memories (content, embedding, created_at) VALUES (?, ?, ?)`,
		"written before categories", memory.EncodeEmbedding([]float32{0.5, 0.5}), "2024-03-01 09:30:00")
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "written before categories", all[0].Content)
	assert.Equal(t, memory.DefaultCategory, all[0].Category)
	assert.Equal(t, "", all[0].Model)
	assert.True(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local).Equal(all[0].CreatedAt))

	// Reopening an up-to-date schema is a no-op.
	require.NoError(t, s.Close())
	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	all, err = s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.True(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local).Equal(parseTime("2025-01-02 03:04:05")))
	assert.False(t, parseTime("2025-01-02T03:04:05Z").IsZero())
}

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	t.Run("self similarity is one", func(t *testing.T) {
		v := []float32{0.3, -1.2, 4.5, 0}
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float32{1, 2, 3}
		b := []float32{-2, 0.5, 7}
		assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-12)
	})

	t.Run("orthogonal and opposite", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-12)
		assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-12)
	})

	t.Run("zero vector", func(t *testing.T) {
		zero := []float32{0, 0, 0}
		assert.Equal(t, 0.0, Cosine([]float32{1, 2, 3}, zero))
		assert.Equal(t, 0.0, Cosine(zero, []float32{1, 2, 3}))
		assert.Equal(t, 0.0, Cosine(zero, zero))
	})

	t.Run("length mismatch fails closed", func(t *testing.T) {
		assert.Equal(t, Mismatch, Cosine([]float32{1, 2, 3}, []float32{1, 2}))
		assert.Equal(t, Mismatch, Cosine(nil, []float32{1}))
	})
}

type doc struct {
	id  int
	vec []float32
}

func vecOf(d doc) []float32 { return d.vec }

func TestRank(t *testing.T) {
	query := []float32{1, 0}
	docs := []doc{
		{1, []float32{0, 1}},      // 0.0
		{2, []float32{1, 0}},      // 1.0
		{3, []float32{1, 1}},      // ~0.707
		{4, []float32{2, 0}},      // 1.0, ties with 2
		{5, []float32{1, 0, 0}},   // mismatch
		{6, []float32{-1, 0}},     // -1.0
		{7, []float32{0.9, 0.45}}, // ~0.894
	}

	t.Run("threshold sort and truncate", func(t *testing.T) {
		got := Rank(docs, vecOf, query, 3, 0.5)
		require.Len(t, got, 3)
		assert.Equal(t, 2, got[0].Item.id)
		assert.Equal(t, 4, got[1].Item.id, "ties keep input order")
		assert.Equal(t, 7, got[2].Item.id)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		}
	})

	t.Run("never returns below threshold", func(t *testing.T) {
		for _, r := range Rank(docs, vecOf, query, 0, 0.75) {
			assert.GreaterOrEqual(t, r.Score, 0.75)
		}
	})

	t.Run("non-positive limit keeps all", func(t *testing.T) {
		got := Rank(docs, vecOf, query, 0, -1)
		assert.Len(t, got, 6, "only the mismatched vector is dropped")
	})

	t.Run("threshold boundary is inclusive", func(t *testing.T) {
		got := Rank(docs, vecOf, query, 10, 1.0)
		assert.Len(t, got, 2)
	})

	t.Run("mismatch never passes even a negative threshold", func(t *testing.T) {
		got := Rank([]doc{{1, []float32{1, 0, 0}}}, vecOf, query, 10, -5)
		assert.Empty(t, got)
	})

	t.Run("empty input", func(t *testing.T) {
		got := Rank(nil, vecOf, query, 5, 0.1)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

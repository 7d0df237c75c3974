package inmem

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions is the vector size produced by KeywordEmbedder.
const DefaultDimensions = 256

// KeywordEmbedder creates deterministic bag-of-words embeddings: each
// lowercased word is hashed into a bucket and the vector is normalised to
// unit length. Texts sharing words score higher, so dedup and retrieval
// behave plausibly without a model runtime.
type KeywordEmbedder struct {
	Dimensions int
}

// NewKeywordEmbedder creates an embedder; dims <= 0 uses DefaultDimensions.
func NewKeywordEmbedder(dims int) *KeywordEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &KeywordEmbedder{Dimensions: dims}
}

// Embed seeds the word hash with model, so the same text embedded with two
// models lands in different vector spaces.
func (e *KeywordEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return KeywordVector(model, text, e.Dimensions), nil
}

// KeywordVector hashes the words of text into a unit vector of dims
// components. There is no stop-word list.
func KeywordVector(seed, text string, dims int) []float32 {
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(seed))
		h.Write([]byte{0})
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

// Package similarity scores embedding vectors and ranks candidates by
// cosine similarity.
package similarity

import (
	"math"
	"sort"
)

// Mismatch is the score given to a pair of vectors with different lengths.
// It lies below the cosine range so no threshold can accept it.
const Mismatch = -2.0

// Cosine returns dot(a,b) / (|a|*|b|), accumulated in float64. It returns 0
// when either vector has zero norm and Mismatch when the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return Mismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored pairs an item with its similarity to the query.
type Scored[T any] struct {
	Item  T
	Score float64
}

// Rank scores every item against query, keeps those scoring at least
// threshold, and returns them best first. Equal scores keep input order.
// A non-positive limit returns every kept item.
func Rank[T any](items []T, vectorOf func(T) []float32, query []float32, limit int, threshold float64) []Scored[T] {
	results := make([]Scored[T], 0)
	for _, item := range items {
		score := Cosine(query, vectorOf(item))
		if score == Mismatch || score < threshold {
			continue
		}
		results = append(results, Scored[T]{Item: item, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

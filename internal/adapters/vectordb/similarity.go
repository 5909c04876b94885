package vectordb

import (
	"math"
	"sort"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// topK scores records against embedding and keeps the k best, best first.
// Ties keep insertion order.
func topK(records []entities.IndexRecord, embedding []float32, k int) []entities.QueryResult {
	results := make([]entities.QueryResult, len(records))
	for i, r := range records {
		results[i] = entities.QueryResult{Record: r, Score: cosineSimilarity(embedding, r.Embedding)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

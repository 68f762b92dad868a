package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"docrag/internal/domain"
)

// MemoryIndex is a brute-force cosine-similarity index keyed by chunk ID.
// It backs tests and offline runs; Qdrant is the deployment target.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	created   bool
	points    map[string]memoryPoint
}

type memoryPoint struct {
	chunk  domain.Chunk
	vector []float32
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		points:    make(map[string]memoryPoint),
	}
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, name string, dimension int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		return false, nil
	}
	m.created = true
	m.dimension = dimension
	return true, nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	if len(vector) != m.dimension {
		return domain.Validationf("embedding dimension mismatch: expected %d, got %d", m.dimension, len(vector))
	}
	if chunk.ID == "" {
		return domain.Validationf("chunk has no ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[chunk.ID] = memoryPoint{chunk: chunk, vector: vector}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, domain.Validationf("k must be a positive integer")
	}
	if len(vector) != m.dimension {
		return nil, domain.Validationf("embedding dimension mismatch: expected %d, got %d", m.dimension, len(vector))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(m.points))
	for id, point := range m.points {
		results = append(results, domain.SearchResult{
			ChunkID:        id,
			ChunkText:      point.chunk.Text,
			URL:            point.chunk.SourceURL,
			RelevanceScore: cosineSimilarity(vector, point.vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored points.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// cosineSimilarity is normalized to [0,1]: 1 for identical direction, 0 for
// opposite.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

package embedding

import (
	"context"
	"strings"

	"docrag/internal/domain"
)

// MockEmbedder produces deterministic vectors derived from rune values.
// Useful for offline runs and tests; scores it produces are meaningless.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.Validationf("input texts cannot be empty")
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, domain.Validationf("text at index %d is blank", i)
		}
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validationf("Query cannot be empty")
	}
	return e.embed(text), nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	for i, r := range text {
		if i >= e.dimension {
			break
		}
		vec[i] = float32(r) / 1000.0
	}
	return vec
}

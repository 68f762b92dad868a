package port

import (
	"context"

	"docrag/internal/domain"
)

// VectorIndex is a content-addressed vector store: points are keyed by the
// chunk's deterministic ID, so re-upserting unchanged content is a no-op and
// changed content is a correction, never a duplicate.
type VectorIndex interface {
	// EnsureCollection creates the named collection if it does not exist.
	// Returns true if newly created, false if already present. Idempotent.
	EnsureCollection(ctx context.Context, name string, dimension int) (bool, error)

	// Upsert writes one point keyed by chunk.ID. Last write wins.
	Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error

	// Search returns up to k results ordered by similarity score descending.
	// The vector's dimension must match the collection's; mismatch is a hard
	// error.
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
}

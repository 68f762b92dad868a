package vectorindex

import (
	"context"
	"testing"

	"docrag/internal/domain"
)

func TestMemoryIndexSearchOrdering(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	chunks := []struct {
		id  string
		vec []float32
	}{
		{"close", []float32{1, 0.1, 0}},
		{"exact", []float32{1, 0, 0}},
		{"far", []float32{0, 0, 1}},
	}
	for _, c := range chunks {
		if err := idx.Upsert(ctx, domain.Chunk{ID: c.id, Text: c.id}, c.vec); err != nil {
			t.Fatal(err)
		}
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "exact" {
		t.Errorf("expected exact match first, got %s", results[0].ChunkID)
	}
	for i, r := range results {
		if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
			t.Errorf("result %d score out of [0,1]: %f", i, r.RelevanceScore)
		}
		if i > 0 && results[i-1].RelevanceScore < r.RelevanceScore {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestMemoryIndexIdempotentUpsert(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	chunk := domain.Chunk{ID: "same-id", Text: "v1"}
	if err := idx.Upsert(ctx, chunk, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	chunk.Text = "v2"
	if err := idx.Upsert(ctx, chunk, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	if idx.Count() != 1 {
		t.Fatalf("expected 1 point after double upsert, got %d", idx.Count())
	}

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ChunkText != "v2" {
		t.Errorf("last write must win, got %q", results[0].ChunkText)
	}
}

func TestMemoryIndexValidation(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	if err := idx.Upsert(ctx, domain.Chunk{ID: "x"}, []float32{1}); !domain.IsValidation(err) {
		t.Errorf("expected validation error for dimension mismatch, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1, 0, 0}, 0); !domain.IsValidation(err) {
		t.Errorf("expected validation error for k=0, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 3); !domain.IsValidation(err) {
		t.Errorf("expected validation error for query dimension mismatch, got %v", err)
	}
}

func TestMemoryIndexKLargerThanStore(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	if err := idx.Upsert(ctx, domain.Chunk{ID: "only"}, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

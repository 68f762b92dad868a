package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docrag/internal/adapter/cache"
	"docrag/internal/domain"
)

// countingEmbedder records calls and can be forced to fail.
type countingEmbedder struct {
	dimension  int
	docCalls   int
	queryCalls int
	err        error
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.docCalls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, e.dimension)
		vectors[i][0] = float32(i + 1)
	}
	return vectors, nil
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.queryCalls++
	if e.err != nil {
		return nil, e.err
	}
	return make([]float32, e.dimension), nil
}

func (e *countingEmbedder) Dimension() int { return e.dimension }

// countingIndex records calls and serves canned results.
type countingIndex struct {
	searchCalls int
	upsertCalls int
	ensureCalls int
	results     []domain.SearchResult
	err         error
}

func (s *countingIndex) EnsureCollection(ctx context.Context, name string, dimension int) (bool, error) {
	s.ensureCalls++
	return s.ensureCalls == 1, s.err
}

func (s *countingIndex) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	s.upsertCalls++
	return s.err
}

func (s *countingIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	s.searchCalls++
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.results) {
		return s.results[:k], nil
	}
	return s.results, nil
}

func newTestResults() []domain.SearchResult {
	return []domain.SearchResult{
		{ChunkText: "first chunk", URL: "https://docs.example.com/a", ChunkID: "id-1", RelevanceScore: 0.91},
		{ChunkText: "second chunk", URL: "https://docs.example.com/b", ChunkID: "id-2", RelevanceScore: 0.84},
		{ChunkText: "third chunk", URL: "https://docs.example.com/a", ChunkID: "id-3", RelevanceScore: 0.52},
	}
}

func TestRetrieveReturnsOrderedResults(t *testing.T) {
	embedder := &countingEmbedder{dimension: 8}
	index := &countingIndex{results: newTestResults()}
	uc := NewRetrieveUseCase(embedder, index, RetrieveOptions{})

	resp, err := uc.Retrieve(context.Background(), "how do I configure logging?", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if resp.TotalResults != 3 || len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got total=%d len=%d", resp.TotalResults, len(resp.Results))
	}
	if resp.Results[0].ChunkID != "id-1" || resp.Results[2].ChunkID != "id-3" {
		t.Errorf("result order not preserved: %+v", resp.Results)
	}
	if resp.Query != "how do I configure logging?" || resp.K != 3 {
		t.Errorf("query/k not echoed: %q %d", resp.Query, resp.K)
	}
	if resp.Timestamp == "" {
		t.Error("timestamp not set")
	}
}

func TestRetrieveValidationShortCircuits(t *testing.T) {
	cases := []struct {
		name  string
		query string
		k     int
		want  string
	}{
		{"blank query", "   ", 5, "Query cannot be empty"},
		{"empty query", "", 5, "Query cannot be empty"},
		{"oversized query", strings.Repeat("a", 10001), 5, "maximum length"},
		{"zero k", "valid query", 0, "positive"},
		{"negative k", "valid query", -3, "positive"},
		{"k above cap", "valid query", 101, "between 1 and 100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			embedder := &countingEmbedder{dimension: 8}
			index := &countingIndex{}
			uc := NewRetrieveUseCase(embedder, index, RetrieveOptions{})

			_, err := uc.Retrieve(context.Background(), tc.query, tc.k)
			if !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("message %q does not mention %q", err.Error(), tc.want)
			}
			if embedder.queryCalls != 0 || index.searchCalls != 0 {
				t.Errorf("downstream invoked on invalid input: embed=%d search=%d",
					embedder.queryCalls, index.searchCalls)
			}
		})
	}
}

func TestRetrieveEmptyIndexYieldsEmptyResults(t *testing.T) {
	uc := NewRetrieveUseCase(&countingEmbedder{dimension: 8}, &countingIndex{}, RetrieveOptions{})

	resp, err := uc.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if resp.Results == nil {
		t.Error("results must be an empty slice, not nil")
	}
	if resp.TotalResults != 0 {
		t.Errorf("expected total_results 0, got %d", resp.TotalResults)
	}
}

func TestRetrievePropagatesEmbedderFailure(t *testing.T) {
	embedder := &countingEmbedder{
		dimension: 8,
		err:       domain.Transientf(domain.DepEmbedding, errors.New("connect: refused")),
	}
	index := &countingIndex{}
	uc := NewRetrieveUseCase(embedder, index, RetrieveOptions{})

	_, err := uc.Retrieve(context.Background(), "valid query", 5)
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Dependency != domain.DepEmbedding {
		t.Fatalf("expected embedding service error, got %v", err)
	}
	if index.searchCalls != 0 {
		t.Error("search invoked after embedding failure")
	}
}

func TestEnvelopeClassifiesFailures(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		uc := NewRetrieveUseCase(&countingEmbedder{dimension: 8}, &countingIndex{}, RetrieveOptions{})
		resp, errResp := uc.Envelope(context.Background(), "", 5)
		if resp != nil {
			t.Fatal("expected no success envelope")
		}
		if errResp.Code != domain.CodeInvalidInput {
			t.Errorf("expected INVALID_INPUT, got %s", errResp.Code)
		}
		if errResp.Error != "Query cannot be empty" {
			t.Errorf("validation message not passed through: %q", errResp.Error)
		}
	})

	t.Run("index unavailable", func(t *testing.T) {
		index := &countingIndex{err: domain.Transientf(domain.DepIndex, errors.New("503"))}
		uc := NewRetrieveUseCase(&countingEmbedder{dimension: 8}, index, RetrieveOptions{})
		resp, errResp := uc.Envelope(context.Background(), "valid query", 5)
		if resp != nil {
			t.Fatal("expected no success envelope")
		}
		if errResp.Code != domain.CodeServiceUnavailable {
			t.Errorf("expected SERVICE_UNAVAILABLE, got %s", errResp.Code)
		}
		if errResp.Error != "Database service unavailable" {
			t.Errorf("unexpected message: %q", errResp.Error)
		}
	})

	t.Run("unexpected error is masked", func(t *testing.T) {
		index := &countingIndex{err: errors.New("nil pointer dereference in scorer")}
		uc := NewRetrieveUseCase(&countingEmbedder{dimension: 8}, index, RetrieveOptions{})
		_, errResp := uc.Envelope(context.Background(), "valid query", 5)
		if errResp.Code != domain.CodeInternalError {
			t.Errorf("expected INTERNAL_ERROR, got %s", errResp.Code)
		}
		if strings.Contains(errResp.Error, "nil pointer") {
			t.Errorf("internal detail leaked into envelope: %q", errResp.Error)
		}
	})
}

func TestRetrieveCacheHitSkipsDownstream(t *testing.T) {
	embedder := &countingEmbedder{dimension: 8}
	index := &countingIndex{results: newTestResults()}
	uc := NewRetrieveUseCase(embedder, index, RetrieveOptions{
		Cache: cache.NewQueryCache(10, 0),
	})

	if _, err := uc.Retrieve(context.Background(), "cached query", 3); err != nil {
		t.Fatalf("first Retrieve: %v", err)
	}
	if _, err := uc.Retrieve(context.Background(), "cached query", 3); err != nil {
		t.Fatalf("second Retrieve: %v", err)
	}
	if embedder.queryCalls != 1 || index.searchCalls != 1 {
		t.Errorf("cache hit still called downstream: embed=%d search=%d",
			embedder.queryCalls, index.searchCalls)
	}
}

func TestRetrieveTrimsQueryBeforeLengthCheck(t *testing.T) {
	embedder := &countingEmbedder{dimension: 8}
	uc := NewRetrieveUseCase(embedder, &countingIndex{}, RetrieveOptions{MaxQueryLength: 10})

	// 10 runes of payload wrapped in whitespace: valid after trimming.
	if _, err := uc.Retrieve(context.Background(), "  "+strings.Repeat("q", 10)+"  ", 1); err != nil {
		t.Fatalf("trimmed query at limit rejected: %v", err)
	}
}

package usecase

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"docrag/internal/adapter/cache"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// RetrieveUseCase drives the query path: validate, embed the query, search
// the index, wrap results in the response envelope. All input validation
// happens here, before any downstream call, and nowhere else — the one place
// the k and query-length bounds are enforced.
type RetrieveUseCase struct {
	embedder port.Embedder
	index    port.VectorIndex
	cache    *cache.QueryCache

	defaultK       int
	maxK           int
	maxQueryLength int
	log            *logrus.Logger
}

// RetrieveOptions bounds the orchestrator. Zero values fall back to the
// deployment defaults.
type RetrieveOptions struct {
	DefaultK       int
	MaxK           int
	MaxQueryLength int
	Cache          *cache.QueryCache
	Logger         *logrus.Logger
}

// NewRetrieveUseCase wires the query pipeline. Dependencies are injected so
// tests can substitute fakes.
func NewRetrieveUseCase(embedder port.Embedder, index port.VectorIndex, opts RetrieveOptions) *RetrieveUseCase {
	if opts.DefaultK == 0 {
		opts.DefaultK = 5
	}
	if opts.MaxK == 0 {
		opts.MaxK = 100
	}
	if opts.MaxQueryLength == 0 {
		opts.MaxQueryLength = 10000
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &RetrieveUseCase{
		embedder:       embedder,
		index:          index,
		cache:          opts.Cache,
		defaultK:       opts.DefaultK,
		maxK:           opts.MaxK,
		maxQueryLength: opts.MaxQueryLength,
		log:            opts.Logger,
	}
}

// DefaultK returns the configured default result count.
func (u *RetrieveUseCase) DefaultK() int {
	return u.defaultK
}

// Retrieve validates the query and k, then embeds and searches. Validation
// short-circuits: nothing downstream is invoked on bad input. Downstream
// failures propagate as typed errors for classification at the boundary.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) (*domain.QueryResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Validationf("Query cannot be empty")
	}

	query = strings.TrimSpace(query)

	if len([]rune(query)) > u.maxQueryLength {
		return nil, domain.Validationf("Query exceeds maximum length of %d characters", u.maxQueryLength)
	}

	if k < 1 {
		return nil, domain.Validationf("k must be a positive integer")
	}
	if k > u.maxK {
		return nil, domain.Validationf("k must be between 1 and %d", u.maxK)
	}

	if u.cache != nil {
		if results, ok := u.cache.Get(query, k); ok {
			u.log.WithField("query", truncate(query, 50)).Debug("cache hit")
			return u.formatResponse(query, k, results), nil
		}
	}

	u.log.WithField("query", truncate(query, 50)).Info("embedding query")
	vector, err := u.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	u.log.WithField("k", k).Info("searching index")
	results, err := u.index.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		u.cache.Put(query, k, results)
	}

	return u.formatResponse(query, k, results), nil
}

// Envelope runs Retrieve and folds any failure through the error classifier,
// producing exactly one of the two mutually exclusive envelopes.
func (u *RetrieveUseCase) Envelope(ctx context.Context, query string, k int) (*domain.QueryResponse, *domain.ErrorResponse) {
	resp, err := u.Retrieve(ctx, query, k)
	if err != nil {
		return nil, domain.Classify(err, u.log)
	}
	return resp, nil
}

// formatResponse preserves result order; total_results always equals
// len(results).
func (u *RetrieveUseCase) formatResponse(query string, k int, results []domain.SearchResult) *domain.QueryResponse {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return &domain.QueryResponse{
		Query:        query,
		K:            k,
		Results:      results,
		TotalResults: len(results),
		Timestamp:    domain.Timestamp(),
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Package vectorindex provides the Qdrant-backed vector index adapter and an
// in-memory stand-in for tests and offline runs.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
)

// QdrantIndex talks to a Qdrant instance over its HTTP API. Points are keyed
// by the chunk's deterministic UUID, so upserts are last-write-wins and
// re-ingesting unchanged content is a storage-level no-op.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	httpClient *http.Client
	log        *logrus.Logger
}

// QdrantOptions configures the Qdrant adapter.
type QdrantOptions struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Dimension  int
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// NewQdrantIndex builds the adapter. The API key env var may be unset for
// unauthenticated local instances.
func NewQdrantIndex(opts QdrantOptions) (*QdrantIndex, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("qdrant URL must not be empty")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	if opts.Dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", opts.Dimension)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	var apiKey string
	if opts.APIKeyEnv != "" {
		apiKey = os.Getenv(opts.APIKeyEnv)
	}

	return &QdrantIndex{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		apiKey:     apiKey,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        opts.Logger,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist. Returns true only when newly created.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, name string, dimension int) (bool, error) {
	// Existence probe: GET returns 404 for unknown collections.
	_, err := q.doRequest(ctx, http.MethodGet, "/collections/"+name, nil)
	if err == nil {
		q.log.WithField("collection", name).Info("collection already exists")
		return false, nil
	}
	var re *requestError
	if !asRequestError(err, &re) || re.status != http.StatusNotFound {
		return false, q.classify(err)
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if _, err := q.doRequest(ctx, http.MethodPut, "/collections/"+name, reqBody); err != nil {
		return false, q.classify(err)
	}

	q.log.WithFields(logrus.Fields{
		"collection": name,
		"dimension":  dimension,
	}).Info("collection created")
	return true, nil
}

// qdrantPoint is the wire shape of a single upserted point.
type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upsert writes one point keyed by chunk.ID. The payload denormalizes the
// chunk so search results need no second lookup; metadata keys are flattened
// into the top level alongside the metadata map itself.
func (q *QdrantIndex) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	if len(vector) != q.dimension {
		return domain.Validationf("embedding dimension mismatch: expected %d, got %d", q.dimension, len(vector))
	}
	if chunk.ID == "" {
		return domain.Validationf("chunk has no ID")
	}

	payload := map[string]any{
		"text_content": chunk.Text,
		"source_url":   chunk.SourceURL,
		"page_title":   chunk.Title,
		"chunk_index":  chunk.Index,
		"created_at":   time.Now().Unix(),
		"metadata":     chunk.Metadata,
	}
	for k, v := range chunk.Metadata {
		payload[k] = v
	}

	reqBody := map[string]any{
		"points": []qdrantPoint{{
			ID:      chunk.ID,
			Vector:  vector,
			Payload: payload,
		}},
	}

	path := fmt.Sprintf("/collections/%s/points", q.collection)
	if _, err := q.doRequest(ctx, http.MethodPut, path, reqBody); err != nil {
		return q.classify(err)
	}

	q.log.WithFields(logrus.Fields{
		"collection": q.collection,
		"chunk_id":   chunk.ID,
		"source":     chunk.SourceURL,
	}).Debug("point upserted")

	return nil
}

// scoredPoint is the wire shape of a search hit.
type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search returns up to k results ordered by similarity score descending.
// Qdrant already orders its response; the adapter only validates and maps.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, domain.Validationf("k must be a positive integer")
	}
	if len(vector) != q.dimension {
		return nil, domain.Validationf("embedding dimension mismatch: expected %d, got %d", q.dimension, len(vector))
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}

	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	respBody, err := q.doRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, q.classify(err)
	}

	var response struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, domain.Permanentf(domain.DepIndex, fmt.Errorf("failed to parse response: %w", err))
	}

	results := make([]domain.SearchResult, 0, len(response.Result))
	for _, point := range response.Result {
		results = append(results, domain.SearchResult{
			ChunkID:        fmt.Sprintf("%v", point.ID),
			ChunkText:      payloadString(point.Payload, "text_content"),
			URL:            payloadString(point.Payload, "source_url"),
			RelevanceScore: normalizeScore(point.Score),
		})
	}

	return results, nil
}

// normalizeScore maps Qdrant's raw cosine similarity from [-1,1] onto the
// [0,1] relevance scale every VectorIndex implementation reports. Monotone,
// so result ordering is unchanged.
func normalizeScore(score float64) float64 {
	n := (score + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// requestError carries the HTTP status so callers can distinguish not-found
// from real failures.
type requestError struct {
	status int
	body   string
	err    error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("request failed with status %d: %s", e.status, e.body)
}

func (e *requestError) Unwrap() error { return e.err }

func asRequestError(err error, target **requestError) bool {
	re, ok := err.(*requestError)
	if ok {
		*target = re
	}
	return ok
}

// classify maps a transport failure onto the error taxonomy: connection
// errors and 5xx/429 are transient, other HTTP failures permanent.
func (q *QdrantIndex) classify(err error) error {
	var re *requestError
	if asRequestError(err, &re) {
		if re.err != nil || re.status == http.StatusTooManyRequests || re.status >= 500 {
			return domain.Transientf(domain.DepIndex, err)
		}
		return domain.Permanentf(domain.DepIndex, err)
	}
	return domain.Transientf(domain.DepIndex, err)
}

func (q *QdrantIndex) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := q.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, &requestError{err: fmt.Errorf("failed to marshal body: %w", err)}
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, &requestError{status: resp.StatusCode, body: string(respBody)}
	}

	return respBody, nil
}

// Package embedding provides the Cohere embedding service adapter. Documents
// and queries are embedded in separate input modes for asymmetric retrieval.
package embedding

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
	"golang.org/x/time/rate"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

const (
	inputTypeDocument = "search_document"
	inputTypeQuery    = "search_query"
)

// CohereEmbedder embeds text through Cohere's v1 embed API, batching document
// requests and retrying transient failures at each network call.
type CohereEmbedder struct {
	apiKey         string
	model          string
	baseURL        string
	dimension      int
	batchSize      int
	maxQueryLength int
	client         *http.Client
	limiter        *rate.Limiter
	policy         retry.Policy
	log            *logrus.Logger
}

// Options tunes the embedder beyond its defaults.
type Options struct {
	BaseURL        string
	Dimension      int
	BatchSize      int
	MaxQueryLength int
	RequestsPerSec float64
	Policy         retry.Policy
	Logger         *logrus.Logger
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message,omitempty"`
}

// NewCohereEmbedder reads the API key from the named environment variable.
func NewCohereEmbedder(apiKeyEnv, model string, opts Options) (*CohereEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.cohere.ai/v1"
	}
	if opts.Dimension == 0 {
		opts.Dimension = 768
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 96
	}
	if opts.MaxQueryLength == 0 {
		opts.MaxQueryLength = 10000
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}

	return &CohereEmbedder{
		apiKey:         apiKey,
		model:          model,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		dimension:      opts.Dimension,
		batchSize:      opts.BatchSize,
		maxQueryLength: opts.MaxQueryLength,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: limiter,
		policy:  opts.Policy,
		log:     opts.Logger,
	}, nil
}

// EmbedDocuments embeds texts in document mode. The input is split into
// batches to respect provider rate limits; each batch is one network call
// under the retry policy, and results are concatenated in input order.
func (e *CohereEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.Validationf("input texts cannot be empty")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, domain.Validationf("text at index %d is blank", i)
		}
	}

	all := make([][]float32, 0, len(texts))
	batches := (len(texts) + e.batchSize - 1) / e.batchSize

	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, domain.Permanentf(domain.DepEmbedding, err)
			}
		}

		embeddings, err := e.embedWithRetry(ctx, texts[i:end], inputTypeDocument)
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)

		e.log.WithFields(logrus.Fields{
			"batch":   i/e.batchSize + 1,
			"batches": batches,
		}).Info("embedded document batch")
	}

	return all, nil
}

// EmbedQuery embeds a single query in query mode. Queries over the maximum
// length are truncated with a warning rather than rejected.
func (e *CohereEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Validationf("Query cannot be empty")
	}

	if runes := []rune(text); len(runes) > e.maxQueryLength {
		e.log.WithFields(logrus.Fields{
			"length": len(runes),
			"max":    e.maxQueryLength,
		}).Warn("query exceeds maximum length, truncating")
		text = string(runes[:e.maxQueryLength])
	}

	embeddings, err := e.embedWithRetry(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, domain.Permanentf(domain.DepEmbedding, fmt.Errorf("no embedding returned"))
	}
	return embeddings[0], nil
}

// Dimension returns the embedding vector dimension.
func (e *CohereEmbedder) Dimension() int {
	return e.dimension
}

func (e *CohereEmbedder) embedWithRetry(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	var result [][]float32
	err := e.policy.Do(ctx, func() error {
		embeddings, err := e.embedOnce(ctx, texts, inputType)
		if err != nil {
			return err
		}
		result = embeddings
		return nil
	})
	return result, err
}

func (e *CohereEmbedder) embedOnce(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	reqBody := embedRequest{
		Texts:     texts,
		Model:     e.model,
		InputType: inputType,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.Permanentf(domain.DepEmbedding, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, domain.Permanentf(domain.DepEmbedding, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		// Connection-level failures are worth retrying.
		return nil, domain.Transientf(domain.DepEmbedding, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transientf(domain.DepEmbedding, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.Transientf(domain.DepEmbedding, apiErr)
		}
		return nil, domain.Permanentf(domain.DepEmbedding, apiErr)
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, domain.Permanentf(domain.DepEmbedding, fmt.Errorf("failed to parse response: %w", err))
	}

	if len(embResp.Embeddings) != len(texts) {
		return nil, domain.Permanentf(domain.DepEmbedding,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Embeddings)))
	}

	for _, emb := range embResp.Embeddings {
		if len(emb) != e.dimension {
			return nil, domain.Permanentf(domain.DepEmbedding,
				fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(emb)))
		}
	}

	return embResp.Embeddings, nil
}

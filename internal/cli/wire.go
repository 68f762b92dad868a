package cli

import (
	"fmt"
	"os"
	"time"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/generation"
	"docrag/internal/adapter/ledger"
	"docrag/internal/adapter/vectorindex"
	"docrag/internal/port"
	"docrag/internal/retry"
	"docrag/internal/usecase"
)

// Adapter construction from config. Kept in one place so every command wires
// the pipeline the same way.

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	case "cohere", "":
		policy := retry.DefaultPolicy()
		policy.MaxAttempts = cfg.Embedding.MaxRetries
		policy.InitialInterval = cfg.Embedding.BackoffBase()
		return embedding.NewCohereEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, embedding.Options{
			BaseURL:        cfg.Embedding.BaseURL,
			Dimension:      cfg.Embedding.Dimension,
			BatchSize:      cfg.Embedding.BatchSize,
			MaxQueryLength: cfg.Retrieve.MaxQueryLength,
			RequestsPerSec: cfg.Embedding.RequestsPerSec,
			Policy:         policy,
			Logger:         log,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}

func newIndex(cfg *config.Config) (port.VectorIndex, error) {
	switch cfg.Index.Provider {
	case "memory":
		return vectorindex.NewMemoryIndex(cfg.Embedding.Dimension), nil
	case "qdrant", "":
		return vectorindex.NewQdrantIndex(vectorindex.QdrantOptions{
			URL:        cfg.Index.URL,
			APIKeyEnv:  cfg.Index.APIKeyEnv,
			Collection: cfg.Index.Collection,
			Dimension:  cfg.Embedding.Dimension,
			Timeout:    time.Duration(cfg.Index.TimeoutSec) * time.Second,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("unknown index provider: %q", cfg.Index.Provider)
	}
}

func newGenerator(cfg *config.Config) (port.Generator, error) {
	return generation.NewClient(cfg.Generation.APIKeyEnv, cfg.Generation.Model, generation.ClientOptions{
		BaseURL:     cfg.Generation.BaseURL,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: &cfg.Generation.Temperature,
		Policy:      retry.DefaultPolicy(),
		Logger:      log,
	})
}

func newRetrieveUseCase(cfg *config.Config) (*usecase.RetrieveUseCase, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}

	var qc *cache.QueryCache
	if cfg.Retrieve.CacheEnabled {
		qc = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL())
		seedCacheGeneration(qc, config.LedgerPath(rootDir))
	}

	return usecase.NewRetrieveUseCase(embedder, index, usecase.RetrieveOptions{
		DefaultK:       cfg.Retrieve.DefaultK,
		MaxK:           cfg.Retrieve.MaxK,
		MaxQueryLength: cfg.Retrieve.MaxQueryLength,
		Cache:          qc,
		Logger:         log,
	}), nil
}

// seedCacheGeneration aligns a fresh cache with the ledger's ingest
// generation, so results cached before a re-ingest are never served after
// it. A missing or locked ledger leaves the cache at generation zero.
func seedCacheGeneration(qc *cache.QueryCache, ledgerPath string) {
	if _, err := os.Stat(ledgerPath); err != nil {
		return
	}
	led, err := ledger.OpenReadOnly(ledgerPath)
	if err != nil {
		return
	}
	defer led.Close()

	if gen, err := led.Generation(); err == nil {
		qc.SetGeneration(gen)
	}
}

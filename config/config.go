package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docrag pipeline.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Generation GenerationConfig `yaml:"generation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig holds sliding-window chunking parameters.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "cohere", "mock"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	Dimension      int    `yaml:"dimension"`
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Provider   string `yaml:"provider"` // "qdrant", "memory"
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetrieveConfig holds retrieval validation bounds and caching.
type RetrieveConfig struct {
	DefaultK       int  `yaml:"default_k"`
	MaxK           int  `yaml:"max_k"`
	MaxQueryLength int  `yaml:"max_query_length"`
	CacheEnabled   bool `yaml:"cache_enabled"`
	CacheSize      int  `yaml:"cache_size"`
	CacheTTLSec    int  `yaml:"cache_ttl_sec"`
}

// GenerationConfig holds the answer generation service configuration.
type GenerationConfig struct {
	BaseURL   string  `yaml:"base_url"`
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	MaxTokens int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// IngestConfig holds page source selection for ingestion.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize: 1000,
			Overlap:   100,
		},
		Embedding: EmbeddingConfig{
			Provider:       "cohere",
			Model:          "multilingual-22-12",
			APIKeyEnv:      "COHERE_API_KEY",
			BaseURL:        "https://api.cohere.ai/v1",
			Dimension:      768,
			BatchSize:      96,
			MaxRetries:     3,
			BackoffBaseMS:  500,
			RequestsPerSec: 10,
		},
		Index: IndexConfig{
			Provider:   "qdrant",
			URL:        "http://localhost:6333",
			APIKeyEnv:  "QDRANT_API_KEY",
			Collection: "rag_embeddings",
			TimeoutSec: 60,
		},
		Retrieve: RetrieveConfig{
			DefaultK:       5,
			MaxK:           100,
			MaxQueryLength: 10000,
			CacheEnabled:   true,
			CacheSize:      100,
			CacheTTLSec:    300,
		},
		Generation: GenerationConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "mistralai/devstral-2512:free",
			APIKeyEnv:   "OPENROUTER_API_KEY",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.json"},
			Excludes: []string{"**/node_modules/**", "**/.git/**"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects configurations that would make the pipeline misbehave.
// Overlap >= chunk size turns the window advance non-positive and an
// unguarded loop would never terminate, so it is refused here, at load time.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("chunking.chunk_size must be at least 1, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must satisfy 0 <= overlap < chunk_size, got overlap=%d chunk_size=%d",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.MaxRetries < 1 {
		return fmt.Errorf("embedding.max_retries must be at least 1, got %d", c.Embedding.MaxRetries)
	}
	if c.Retrieve.DefaultK < 1 || c.Retrieve.MaxK < c.Retrieve.DefaultK {
		return fmt.Errorf("retrieve: need 1 <= default_k <= max_k, got default_k=%d max_k=%d",
			c.Retrieve.DefaultK, c.Retrieve.MaxK)
	}
	if c.Retrieve.MaxQueryLength < 1 {
		return fmt.Errorf("retrieve.max_query_length must be positive, got %d", c.Retrieve.MaxQueryLength)
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index.collection must not be empty")
	}
	return nil
}

// BackoffBase returns the retry backoff base as a duration.
func (c *EmbeddingConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// CacheTTL returns the query cache TTL as a duration.
func (c *RetrieveConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// Load loads configuration from a YAML file, merging over defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LedgerPath returns the path to the ingestion ledger database.
func LedgerPath(dir string) string {
	return filepath.Join(dir, ".docrag", "ledger.db")
}

// EnsureStateDir ensures the .docrag directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docrag"), 0755)
}

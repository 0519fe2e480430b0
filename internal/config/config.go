// Package config loads and persists the docquery configuration as a TOML
// file under ~/.docquery/config.toml. Values resolve in order: defaults,
// file, then environment variables for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// Storage backend names.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config is the full docquery configuration.
type Config struct {
	// DataDir is where the sqlite database and stored files live.
	// Defaults to ~/.docquery.
	DataDir string `toml:"data_dir,omitempty"`

	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Watch     WatchConfig     `toml:"watch"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `toml:"backend"`

	// PostgresDSN is required when Backend is "postgres".
	PostgresDSN string `toml:"postgres_dsn,omitempty"`

	// Debug enables storage query logging.
	Debug bool `toml:"debug,omitempty"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai", "ollama" or "openai-compatible".
	Provider string `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url,omitempty"`

	// APIKey authenticates against the provider. The DOCQUERY_EMBED_API_KEY
	// and OPENAI_API_KEY environment variables take precedence.
	APIKey string `toml:"api_key,omitempty"`

	// BatchSize is how many texts are embedded per request.
	BatchSize int `toml:"batch_size"`

	// Dimensions optionally overrides the model's native vector size.
	Dimensions *int `toml:"dimensions,omitempty"`

	// RequestsPerSecond throttles embedding requests. Zero disables the
	// limiter.
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`

	// Metric selects the similarity metric: "cosine" (default),
	// "inner_product" or "l2".
	Metric string `toml:"metric,omitempty"`
}

// LLMConfig configures the chat model used for query expansion, reranking
// and answer generation.
type LLMConfig struct {
	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `toml:"base_url,omitempty"`

	// APIKey authenticates against the provider. The DOCQUERY_LLM_API_KEY
	// and OPENAI_API_KEY environment variables take precedence.
	APIKey string `toml:"api_key,omitempty"`

	// Model is the chat model name.
	Model string `toml:"model"`

	// ExpandQueries toggles LLM query expansion.
	ExpandQueries bool `toml:"expand_queries"`

	// Rerank toggles the LLM reranking stage.
	Rerank bool `toml:"rerank"`

	// RerankTimeoutMS bounds the reranking call in milliseconds.
	RerankTimeoutMS int `toml:"rerank_timeout_ms"`
}

// ChunkingConfig configures the structural chunker.
type ChunkingConfig struct {
	// MaxChars is the chunk character budget.
	MaxChars int `toml:"max_chars"`

	// OverlapChars is the overlap carried across size-triggered splits.
	// Negative means a third of MaxChars.
	OverlapChars int `toml:"overlap_chars"`
}

// RetrievalConfig configures search limits.
type RetrievalConfig struct {
	// TopK is how many candidates the vector search returns.
	TopK int `toml:"top_k"`

	// TopN is how many chunks end up in the context pack.
	TopN int `toml:"top_n"`
}

// WatchConfig configures the inbox watcher.
type WatchConfig struct {
	// Dir is the watched inbox directory. Empty disables watching unless
	// given on the command line.
	Dir string `toml:"dir,omitempty"`

	// DebounceMS is the settle time before a new file is picked up.
	DebounceMS int `toml:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: StorageSQLite,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: domain.DefaultBatchSize,
			Metric:    string(domain.MetricCosine),
		},
		LLM: LLMConfig{
			Model:           "gpt-4o-mini",
			ExpandQueries:   true,
			Rerank:          true,
			RerankTimeoutMS: 10000,
		},
		Chunking: ChunkingConfig{
			MaxChars:     1800,
			OverlapChars: -1,
		},
		Retrieval: RetrievalConfig{
			TopK: 10,
			TopN: 6,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docquery", "config.toml"), nil
}

// Load reads the config file at path, merging it over the defaults. A
// missing file yields the defaults. An empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// EmbedConfig converts the embedding section into the domain config that
// keys index signatures.
func (c *Config) EmbedConfig() domain.EmbedConfig {
	return domain.EmbedConfig{
		Provider:   c.Embedding.Provider,
		Model:      c.Embedding.Model,
		BatchSize:  c.Embedding.BatchSize,
		Dimensions: c.Embedding.Dimensions,
	}
}

// Metric returns the configured similarity metric.
func (c *Config) Metric() domain.Metric {
	if c.Embedding.Metric == "" {
		return domain.MetricCosine
	}
	return domain.Metric(c.Embedding.Metric)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres backend requires storage.postgres_dsn", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, c.Storage.Backend)
	}

	switch domain.Metric(c.Embedding.Metric) {
	case domain.MetricCosine, domain.MetricInnerProduct, domain.MetricL2, "":
	default:
		return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, c.Embedding.Metric)
	}

	if c.Embedding.Provider == "" || c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding provider and model are required", domain.ErrInvalidInput)
	}
	return nil
}

// applyEnv lets environment variables override file-based secrets.
func applyEnv(cfg *Config) {
	if key := os.Getenv("DOCQUERY_EMBED_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = key
	}

	if key := os.Getenv("DOCQUERY_LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}

	if dsn := os.Getenv("DOCQUERY_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
}

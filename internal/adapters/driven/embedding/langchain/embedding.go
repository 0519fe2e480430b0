// Package langchain adapts langchaingo embedders to the embedding service
// port. It is the bridge to OpenAI-compatible gateways (OpenRouter, vLLM,
// LiteLLM) without hand-writing a client per vendor.
package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Config holds configuration for a langchaingo-backed embedder.
type Config struct {
	// BaseURL is the gateway base URL (required).
	BaseURL string

	// APIKey authenticates requests. A leading "Bearer " prefix is
	// tolerated and stripped.
	APIKey string

	// Model is the embedding model name (required).
	Model string

	// Dimensions is the embedding vector size (required; gateways do not
	// report it).
	Dimensions int
}

// EmbeddingService generates embeddings through a langchaingo embedder.
type EmbeddingService struct {
	embedder   *embeddings.EmbedderImpl
	model      string
	dimensions int
}

// NewOpenAICompatible creates an embedding service for an OpenAI-compatible
// gateway.
func NewOpenAICompatible(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("langchain: base URL and model are required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("langchain: dimensions are required")
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("langchain: init gateway client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("langchain: create embedder: %w", err)
	}

	return &EmbeddingService{
		embedder:   embedder,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// NewOllama creates an embedding service backed by Ollama through
// langchaingo.
func NewOllama(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("langchain: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("langchain: dimensions are required")
	}

	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: init ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("langchain: create embedder: %w", err)
	}

	return &EmbeddingService{
		embedder:   embedder,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("langchain: embed query: %w", err)
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("langchain: embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("langchain: got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the embedder by embedding a single short probe.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.embedder.EmbedQuery(ctx, "ping"); err != nil {
		return fmt.Errorf("langchain: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

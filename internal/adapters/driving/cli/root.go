// Package cli wires the docquery services behind a cobra command tree.
// Services are built lazily so metadata commands like version never touch
// storage or provider credentials.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/adapters/driven/embedding"
	"github.com/custodia-labs/docquery/internal/adapters/driven/embedding/langchain"
	"github.com/custodia-labs/docquery/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docquery/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docquery/internal/adapters/driven/files"
	openaillm "github.com/custodia-labs/docquery/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docquery/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/docquery/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docquery/internal/chunkers/structural"
	"github.com/custodia-labs/docquery/internal/config"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/core/services"
	"github.com/custodia-labs/docquery/internal/extractors"
	"github.com/custodia-labs/docquery/internal/logger"
)

// shutdownGrace is how long running index workers get to finish when the
// process exits.
const shutdownGrace = 5 * time.Second

var (
	version = "dev"

	configPath  string
	verboseFlag bool
	ownerFlag   string
	projectFlag string

	cfg *config.Config

	documentService  driving.DocumentService
	indexingService  driving.IndexingService
	retrievalService driving.RetrievalService
	answerService    driving.AnswerService
	supervisor       *services.Supervisor

	closers []func() error
)

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Index documents and retrieve grounded context",
	Long: `docquery indexes PDF, Markdown and DOCX documents into an embedding
store and assembles ranked, citable context for questions against them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.docquery/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "local", "owner scope for documents and indexes")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "default", "project scope for documents and indexes")
}

// Execute runs the CLI and tears services down afterwards.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	err := rootCmd.Execute()
	shutdown()
	return err
}

// ensureServices builds the full service graph on first use.
func ensureServices() error {
	if cfg != nil {
		return nil
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	logger.SetVerbose(verboseFlag)

	indexes, chunks, vectors, searcher, registry, err := buildStorage(loaded)
	if err != nil {
		return err
	}

	storage, err := files.NewLocalStorage(scopedDir(loaded, "files"))
	if err != nil {
		return err
	}

	extractorRegistry := extractors.NewDefaultRegistry()
	chunker := structural.New(
		structural.WithMaxChars(loaded.Chunking.MaxChars),
		structural.WithOverlapChars(loaded.Chunking.OverlapChars),
	)

	embedder, err := buildEmbedder(loaded)
	if err != nil {
		return err
	}

	rewriter, reranker, generator, err := buildLLM(loaded)
	if err != nil {
		return err
	}

	supervisor = services.NewSupervisor()
	documentService = services.NewDocumentService(storage, registry, extractorRegistry)
	indexingService = services.NewIndexingService(
		indexes, chunks, vectors, storage, registry, extractorRegistry,
		chunker, embedder, supervisor)
	retrievalService = services.NewRetrievalService(
		indexes, chunks, searcher, embedder, rewriter, reranker,
		loaded.EmbedConfig(), loaded.Metric())
	answerService = services.NewAnswerService(retrievalService, generator)

	cfg = loaded
	return nil
}

// buildStorage opens the configured backend and returns its stores.
func buildStorage(loaded *config.Config) (
	driven.IndexStore, driven.ChunkStore, driven.EmbeddingStore,
	driven.VectorSearcher, driven.DocumentRegistry, error,
) {
	switch loaded.Storage.Backend {
	case config.StoragePostgres:
		store, err := postgres.NewStore(context.Background(), postgres.Config{
			DSN:   loaded.Storage.PostgresDSN,
			Debug: loaded.Storage.Debug,
		})
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		closers = append(closers, store.Close)
		return store.IndexStore(), store.ChunkStore(), store.EmbeddingStore(),
			store.VectorSearcher(), store.DocumentRegistry(), nil

	default:
		store, err := sqlite.NewStore(scopedDir(loaded, "data"))
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		closers = append(closers, store.Close)
		return store.IndexStore(), store.ChunkStore(), store.EmbeddingStore(),
			store.VectorSearcher(), store.DocumentRegistry(), nil
	}
}

// buildEmbedder creates the configured embedding provider, wrapped in the
// rate limiter when one is configured.
func buildEmbedder(loaded *config.Config) (driven.EmbeddingService, error) {
	e := loaded.Embedding

	dimensions := 0
	if e.Dimensions != nil {
		dimensions = *e.Dimensions
	}

	var (
		inner driven.EmbeddingService
		err   error
	)
	switch e.Provider {
	case "openai":
		inner, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: dimensions,
		})
	case "ollama":
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: dimensions,
		})
	case "openai-compatible":
		inner, err = langchain.NewOpenAICompatible(langchain.Config{
			BaseURL:    e.BaseURL,
			APIKey:     e.APIKey,
			Model:      e.Model,
			Dimensions: dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", e.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("configuring embedding provider: %w", err)
	}

	return embedding.NewThrottled(inner, e.RequestsPerSecond, 1), nil
}

// buildLLM creates the optional chat-model adapters. Without an API key the
// pipeline runs without expansion, reranking or answer generation.
func buildLLM(loaded *config.Config) (driven.QueryRewriter, driven.Reranker, driven.AnswerGenerator, error) {
	l := loaded.LLM
	if l.APIKey == "" {
		return nil, nil, nil, nil
	}

	client, err := openaillm.NewClient(openaillm.Config{
		APIKey:  l.APIKey,
		BaseURL: l.BaseURL,
		Model:   l.Model,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configuring chat model: %w", err)
	}

	var rewriter driven.QueryRewriter
	if l.ExpandQueries {
		rewriter = openaillm.NewRewriter(client)
	}
	var reranker driven.Reranker
	if l.Rerank {
		reranker = openaillm.NewReranker(client)
	}
	return rewriter, reranker, openaillm.NewGenerator(client), nil
}

// scopedDir resolves a subdirectory of the configured data dir, or empty so
// the adapter applies its own ~/.docquery default.
func scopedDir(loaded *config.Config, sub string) string {
	if loaded.DataDir == "" {
		return ""
	}
	return filepath.Join(loaded.DataDir, sub)
}

// shutdown stops workers and closes storage.
func shutdown() {
	if supervisor != nil {
		supervisor.Stop(shutdownGrace)
	}
	for _, close := range closers {
		if err := close(); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}
	closers = nil
}

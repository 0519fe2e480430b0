// Package postgres provides a Postgres storage backend on top of bun and
// pgvector. It implements the same storage ports as the sqlite package, with
// similarity search pushed into the database instead of an in-process scan,
// so larger corpora and shared deployments can use it as a drop-in
// replacement.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Config holds the Postgres connection settings.
type Config struct {
	// DSN is the postgres:// connection string.
	DSN string

	// Debug enables query logging through bundebug.
	Debug bool
}

// Store is a bun-backed Postgres storage providing the index, chunk,
// embedding and document registry interfaces through wrapper types.
type Store struct {
	db *bun.DB
}

// documentModel mirrors the documents table.
type documentModel struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID          string    `bun:"id,pk"`
	OwnerID     string    `bun:"owner_id,notnull"`
	ProjectID   string    `bun:"project_id,notnull"`
	Filename    string    `bun:"filename,notnull"`
	StoragePath string    `bun:"storage_path,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// indexModel mirrors the document_indexes table.
type indexModel struct {
	bun.BaseModel `bun:"table:document_indexes,alias:di"`

	ID              string        `bun:"id,pk"`
	OwnerID         string        `bun:"owner_id,notnull"`
	ProjectID       string        `bun:"project_id,notnull"`
	DocumentID      string        `bun:"document_id,notnull"`
	StoragePath     string        `bun:"storage_path,notnull"`
	ChunkerVersion  string        `bun:"chunker_version,notnull"`
	EmbedProvider   string        `bun:"embed_provider,notnull"`
	EmbedModel      string        `bun:"embed_model,notnull"`
	EmbedBatchSize  int           `bun:"embed_batch_size,notnull,default:0"`
	EmbedDimensions sql.NullInt64 `bun:"embed_dimensions"`
	EmbedSignature  string        `bun:"embed_signature,notnull"`
	Status          string        `bun:"status,notnull"`
	Progress        int           `bun:"progress,notnull,default:0"`
	Message         string        `bun:"message,notnull,default:''"`
	Error           string        `bun:"error,notnull,default:''"`
	CancelRequested bool          `bun:"cancel_requested,notnull,default:false"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull"`
}

// chunkModel mirrors the chunks table. Metadata is stored as JSONB.
type chunkModel struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID         string `bun:"id,pk"`
	IndexID    string `bun:"index_id,notnull"`
	ChunkIndex int    `bun:"chunk_index,notnull"`
	Content    string `bun:"content,notnull"`
	Metadata   string `bun:"metadata,notnull,type:jsonb,default:'{}'"`
}

// embeddingModel mirrors the embeddings table. The vector column uses the
// pgvector extension; dimensions are not fixed at the schema level because
// they vary per embedding config.
type embeddingModel struct {
	bun.BaseModel `bun:"table:embeddings,alias:e"`

	IndexID        string    `bun:"index_id,pk"`
	ChunkID        string    `bun:"chunk_id,pk"`
	EmbedSignature string    `bun:"embed_signature,pk"`
	ChunkIndex     int       `bun:"chunk_index,notnull"`
	Vector         []float32 `bun:"vector,notnull,type:vector"`
}

// NewStore connects to Postgres and ensures the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IndexStore returns an IndexStore backed by this store.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{store: s}
}

// ChunkStore returns a ChunkStore backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// VectorSearcher returns a VectorSearcher backed by this store.
func (s *Store) VectorSearcher() driven.VectorSearcher {
	return &embeddingStore{store: s}
}

// DocumentRegistry returns a DocumentRegistry backed by this store.
func (s *Store) DocumentRegistry() driven.DocumentRegistry {
	return &documentRegistry{store: s}
}

// init creates the pgvector extension, tables and indexes.
func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	models := []any{
		(*documentModel)(nil),
		(*indexModel)(nil),
		(*chunkModel)(nil),
		(*embeddingModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	indexes := []struct {
		name    string
		table   string
		columns string
	}{
		{"idx_documents_scope", "documents", "owner_id, project_id"},
		{"idx_indexes_project", "document_indexes", "project_id, updated_at"},
		{"idx_indexes_active", "document_indexes", "project_id, document_id, embed_signature, status"},
		{"idx_chunks_index", "chunks", "index_id"},
		{"idx_embeddings_lookup", "embeddings", "index_id, embed_signature"},
	}
	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			idx.name, idx.table, idx.columns)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// IndexStore persists index run metadata. Writes are short transactional
// units: no implementation may hold a lock across a network call.
type IndexStore interface {
	// Create persists a new index run.
	Create(ctx context.Context, index *domain.DocumentIndex) error

	// Get retrieves an index run by id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.DocumentIndex, error)

	// Latest returns the most recently updated index run for a project,
	// or domain.ErrNotFound when the project has none.
	Latest(ctx context.Context, projectID string) (*domain.DocumentIndex, error)

	// FindActive returns a pending or running index for the given project,
	// document and embedding signature, or nil when none is active.
	FindActive(ctx context.Context, projectID, documentID, signature string) (*domain.DocumentIndex, error)

	// FindReady returns the ready index matching the embedding signature
	// for a project, or domain.ErrNotFound.
	FindReady(ctx context.Context, projectID, signature string) (*domain.DocumentIndex, error)

	// Update persists the full state of an index run.
	Update(ctx context.Context, index *domain.DocumentIndex) error

	// RequestCancel sets the cancellation flag and returns the updated run.
	// Requesting cancellation of a terminal run is a no-op.
	RequestCancel(ctx context.Context, id string) (*domain.DocumentIndex, error)
}

// StoredChunk is a persisted chunk row.
type StoredChunk struct {
	ID         string
	IndexID    string
	ChunkIndex int
	Text       string
	Metadata   domain.ChunkMetadata
}

// ChunkStore persists chunk rows for an index run.
type ChunkStore interface {
	// SaveChunks writes all chunks for an index in one batch.
	SaveChunks(ctx context.Context, chunks []StoredChunk) error

	// GetByIDs loads chunk rows by id, scoped to an index. Missing ids are
	// silently skipped; the result order is unspecified.
	GetByIDs(ctx context.Context, indexID string, ids []string) ([]StoredChunk, error)

	// CountByIndex returns the number of chunks stored for an index.
	CountByIndex(ctx context.Context, indexID string) (int, error)

	// DeleteByIndex removes all chunk rows for an index.
	DeleteByIndex(ctx context.Context, indexID string) error
}

// EmbeddingRow is one persisted chunk vector. The (IndexID, ChunkID,
// Signature) triple is unique; upserting the same triple repeatedly is safe,
// which makes a restarted run resumable without duplicating rows.
type EmbeddingRow struct {
	IndexID    string
	ChunkID    string
	Signature  string
	ChunkIndex int
	Vector     []float32
}

// EmbeddingStore persists chunk vectors.
type EmbeddingStore interface {
	// Upsert writes vectors, keyed on (index id, chunk id, signature).
	Upsert(ctx context.Context, rows []EmbeddingRow) error

	// DeleteByIndex removes all vectors for an index regardless of
	// signature.
	DeleteByIndex(ctx context.Context, indexID string) error
}

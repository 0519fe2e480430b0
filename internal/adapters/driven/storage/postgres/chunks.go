package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// SaveChunks writes all chunks in one statement, upserting on id.
func (s *chunkStore) SaveChunks(ctx context.Context, chunks []driven.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	models := make([]chunkModel, 0, len(chunks))
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		models = append(models, chunkModel{
			ID:         chunk.ID,
			IndexID:    chunk.IndexID,
			ChunkIndex: chunk.ChunkIndex,
			Content:    chunk.Text,
			Metadata:   string(metadataJSON),
		})
	}

	_, err := s.store.db.NewInsert().Model(&models).
		On("CONFLICT (id) DO UPDATE").
		Set("index_id = EXCLUDED.index_id").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	return nil
}

// GetByIDs loads chunk rows by id within an index.
func (s *chunkStore) GetByIDs(ctx context.Context, indexID string, ids []string) ([]driven.StoredChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []chunkModel
	err := s.store.db.NewSelect().Model(&models).
		Where("c.index_id = ?", indexID).
		Where("c.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	chunks := make([]driven.StoredChunk, 0, len(models))
	for _, model := range models {
		chunk := driven.StoredChunk{
			ID:         model.ID,
			IndexID:    model.IndexID,
			ChunkIndex: model.ChunkIndex,
			Text:       model.Content,
		}
		if err := json.Unmarshal([]byte(model.Metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// CountByIndex returns the number of chunks stored for an index.
func (s *chunkStore) CountByIndex(ctx context.Context, indexID string) (int, error) {
	count, err := s.store.db.NewSelect().Model((*chunkModel)(nil)).
		Where("c.index_id = ?", indexID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteByIndex removes all chunk rows for an index.
func (s *chunkStore) DeleteByIndex(ctx context.Context, indexID string) error {
	_, err := s.store.db.NewDelete().Model((*chunkModel)(nil)).
		Where("index_id = ?", indexID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// documentRegistry implements driven.DocumentRegistry.
type documentRegistry struct {
	store *Store
}

var _ driven.DocumentRegistry = (*documentRegistry)(nil)

// Register records a stored document and returns its id.
func (r *documentRegistry) Register(ctx context.Context, ownerID, projectID, filename, storagePath string) (string, error) {
	model := &documentModel{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		ProjectID:   projectID,
		Filename:    filename,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := r.store.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", fmt.Errorf("registering document: %w", err)
	}
	return model.ID, nil
}

// Resolve returns the storage path for a document visible to the owner.
func (r *documentRegistry) Resolve(ctx context.Context, ownerID, projectID, documentID string) (string, error) {
	model := new(documentModel)
	err := r.store.db.NewSelect().Model(model).
		Column("storage_path").
		Where("d.id = ?", documentID).
		Where("d.owner_id = ?", ownerID).
		Where("d.project_id = ?", projectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("resolving document: %w", err)
	}
	return model.StoragePath, nil
}

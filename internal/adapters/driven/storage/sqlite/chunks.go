package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// SaveChunks writes all chunks in one transaction.
func (s *chunkStore) SaveChunks(ctx context.Context, chunks []driven.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, index_id, chunk_index, content, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			index_id = excluded.index_id,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.IndexID,
			chunk.ChunkIndex, chunk.Text, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetByIDs loads chunk rows by id within an index.
func (s *chunkStore) GetByIDs(ctx context.Context, indexID string, ids []string) ([]driven.StoredChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, indexID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, index_id, chunk_index, content, metadata
		FROM chunks WHERE index_id = ? AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []driven.StoredChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk driven.StoredChunk
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.IndexID, &chunk.ChunkIndex,
			&chunk.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// CountByIndex returns the number of chunks stored for an index.
func (s *chunkStore) CountByIndex(ctx context.Context, indexID string) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE index_id = ?", indexID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteByIndex removes all chunk rows for an index.
func (s *chunkStore) DeleteByIndex(ctx context.Context, indexID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE index_id = ?", indexID); err != nil {
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
	id := newDocumentID()
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, project_id, filename, storage_path, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, id, ownerID, projectID, filename, storagePath)
	if err != nil {
		return "", fmt.Errorf("registering document: %w", err)
	}
	return id, nil
}

// Resolve returns the storage path for a document visible to the owner.
func (r *documentRegistry) Resolve(ctx context.Context, ownerID, projectID, documentID string) (string, error) {
	var storagePath string
	row := r.store.db.QueryRowContext(ctx, `
		SELECT storage_path FROM documents
		WHERE id = ? AND owner_id = ? AND project_id = ?
	`, documentID, ownerID, projectID)
	if err := row.Scan(&storagePath); err != nil {
		return "", domain.ErrNotFound
	}
	return storagePath, nil
}

// newDocumentID generates a document identifier.
func newDocumentID() string {
	return uuid.New().String()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// indexStore implements driven.IndexStore.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

const indexColumns = `id, owner_id, project_id, document_id, storage_path,
	chunker_version, embed_provider, embed_model, embed_batch_size,
	embed_dimensions, embed_signature, status, progress, message, error,
	cancel_requested, updated_at`

// Create persists a new index run.
func (s *indexStore) Create(ctx context.Context, index *domain.DocumentIndex) error {
	if index.UpdatedAt.IsZero() {
		index.UpdatedAt = time.Now().UTC()
	}

	var dimensions sql.NullInt64
	if index.EmbedConfig.Dimensions != nil {
		dimensions = sql.NullInt64{Int64: int64(*index.EmbedConfig.Dimensions), Valid: true}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_indexes (`+indexColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, index.ID, index.OwnerID, index.ProjectID, index.DocumentID, index.StoragePath,
		index.ChunkerVersion, index.EmbedConfig.Provider, index.EmbedConfig.Model,
		index.EmbedConfig.BatchSize, dimensions, index.EmbedConfig.Signature(),
		string(index.Status), index.Progress, index.Message, index.Error,
		index.CancelRequested, index.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating index run: %w", err)
	}
	return nil
}

// Get retrieves an index run by id.
func (s *indexStore) Get(ctx context.Context, id string) (*domain.DocumentIndex, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+indexColumns+" FROM document_indexes WHERE id = ?", id)
	return scanIndex(row)
}

// Latest returns the most recently updated run for a project.
func (s *indexStore) Latest(ctx context.Context, projectID string) (*domain.DocumentIndex, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+indexColumns+` FROM document_indexes
		WHERE project_id = ?
		ORDER BY updated_at DESC LIMIT 1
	`, projectID)
	return scanIndex(row)
}

// FindActive returns a pending or running run for the triple, or nil.
func (s *indexStore) FindActive(ctx context.Context, projectID, documentID, signature string) (*domain.DocumentIndex, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+indexColumns+` FROM document_indexes
		WHERE project_id = ? AND document_id = ? AND embed_signature = ?
			AND status IN (?, ?)
		ORDER BY updated_at DESC LIMIT 1
	`, projectID, documentID, signature,
		string(domain.IndexPending), string(domain.IndexRunning))

	index, err := scanIndex(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return index, err
}

// FindReady returns the ready run matching the signature for a project.
func (s *indexStore) FindReady(ctx context.Context, projectID, signature string) (*domain.DocumentIndex, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+indexColumns+` FROM document_indexes
		WHERE project_id = ? AND embed_signature = ? AND status = ?
		ORDER BY updated_at DESC LIMIT 1
	`, projectID, signature, string(domain.IndexReady))
	return scanIndex(row)
}

// Update persists the full state of an index run.
func (s *indexStore) Update(ctx context.Context, index *domain.DocumentIndex) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE document_indexes SET
			status = ?, progress = ?, message = ?, error = ?,
			cancel_requested = ?, updated_at = ?
		WHERE id = ?
	`, string(index.Status), index.Progress, index.Message, index.Error,
		index.CancelRequested, index.UpdatedAt, index.ID)
	if err != nil {
		return fmt.Errorf("updating index run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating index run: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RequestCancel sets the cancellation flag unless the run is terminal.
func (s *indexStore) RequestCancel(ctx context.Context, id string) (*domain.DocumentIndex, error) {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE document_indexes SET cancel_requested = 1, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, time.Now().UTC(), id,
		string(domain.IndexPending), string(domain.IndexRunning))
	if err != nil {
		return nil, fmt.Errorf("requesting cancel: %w", err)
	}
	return s.Get(ctx, id)
}

// scanIndex reads one index run row.
func scanIndex(row *sql.Row) (*domain.DocumentIndex, error) {
	var (
		index      domain.DocumentIndex
		provider   string
		model      string
		batchSize  int
		dimensions sql.NullInt64
		signature  string
		status     string
	)
	err := row.Scan(&index.ID, &index.OwnerID, &index.ProjectID, &index.DocumentID,
		&index.StoragePath, &index.ChunkerVersion, &provider, &model, &batchSize,
		&dimensions, &signature, &status, &index.Progress, &index.Message,
		&index.Error, &index.CancelRequested, &index.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index run: %w", err)
	}

	index.Status = domain.IndexRunStatus(status)
	index.EmbedConfig = domain.EmbedConfig{
		Provider:  provider,
		Model:     model,
		BatchSize: batchSize,
	}
	if dimensions.Valid {
		d := int(dimensions.Int64)
		index.EmbedConfig.Dimensions = &d
	}
	return &index, nil
}

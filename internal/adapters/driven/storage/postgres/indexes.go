package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// indexStore implements driven.IndexStore.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// activeStatuses are the non-terminal run states.
var activeStatuses = []string{
	string(domain.IndexPending),
	string(domain.IndexRunning),
}

// Create persists a new index run.
func (s *indexStore) Create(ctx context.Context, index *domain.DocumentIndex) error {
	if index.UpdatedAt.IsZero() {
		index.UpdatedAt = time.Now().UTC()
	}

	model := toIndexModel(index)
	if _, err := s.store.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("creating index run: %w", err)
	}
	return nil
}

// Get retrieves an index run by id.
func (s *indexStore) Get(ctx context.Context, id string) (*domain.DocumentIndex, error) {
	model := new(indexModel)
	err := s.store.db.NewSelect().Model(model).Where("di.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting index run: %w", err)
	}
	return fromIndexModel(model), nil
}

// Latest returns the most recently updated run for a project.
func (s *indexStore) Latest(ctx context.Context, projectID string) (*domain.DocumentIndex, error) {
	model := new(indexModel)
	err := s.store.db.NewSelect().Model(model).
		Where("di.project_id = ?", projectID).
		OrderExpr("di.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting latest index run: %w", err)
	}
	return fromIndexModel(model), nil
}

// FindActive returns a pending or running run for the triple, or nil.
func (s *indexStore) FindActive(ctx context.Context, projectID, documentID, signature string) (*domain.DocumentIndex, error) {
	model := new(indexModel)
	err := s.store.db.NewSelect().Model(model).
		Where("di.project_id = ?", projectID).
		Where("di.document_id = ?", documentID).
		Where("di.embed_signature = ?", signature).
		Where("di.status IN (?)", bun.In(activeStatuses)).
		OrderExpr("di.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding active index run: %w", err)
	}
	return fromIndexModel(model), nil
}

// FindReady returns the ready run matching the signature for a project.
func (s *indexStore) FindReady(ctx context.Context, projectID, signature string) (*domain.DocumentIndex, error) {
	model := new(indexModel)
	err := s.store.db.NewSelect().Model(model).
		Where("di.project_id = ?", projectID).
		Where("di.embed_signature = ?", signature).
		Where("di.status = ?", string(domain.IndexReady)).
		OrderExpr("di.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding ready index run: %w", err)
	}
	return fromIndexModel(model), nil
}

// Update persists the full state of an index run.
func (s *indexStore) Update(ctx context.Context, index *domain.DocumentIndex) error {
	res, err := s.store.db.NewUpdate().Model((*indexModel)(nil)).
		Set("status = ?", string(index.Status)).
		Set("progress = ?", index.Progress).
		Set("message = ?", index.Message).
		Set("error = ?", index.Error).
		Set("cancel_requested = ?", index.CancelRequested).
		Set("updated_at = ?", index.UpdatedAt).
		Where("id = ?", index.ID).
		Exec(ctx)
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
	_, err := s.store.db.NewUpdate().Model((*indexModel)(nil)).
		Set("cancel_requested = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(activeStatuses)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting cancel: %w", err)
	}
	return s.Get(ctx, id)
}

// toIndexModel maps a domain index to its table row.
func toIndexModel(index *domain.DocumentIndex) *indexModel {
	var dimensions sql.NullInt64
	if index.EmbedConfig.Dimensions != nil {
		dimensions = sql.NullInt64{Int64: int64(*index.EmbedConfig.Dimensions), Valid: true}
	}
	return &indexModel{
		ID:              index.ID,
		OwnerID:         index.OwnerID,
		ProjectID:       index.ProjectID,
		DocumentID:      index.DocumentID,
		StoragePath:     index.StoragePath,
		ChunkerVersion:  index.ChunkerVersion,
		EmbedProvider:   index.EmbedConfig.Provider,
		EmbedModel:      index.EmbedConfig.Model,
		EmbedBatchSize:  index.EmbedConfig.BatchSize,
		EmbedDimensions: dimensions,
		EmbedSignature:  index.EmbedConfig.Signature(),
		Status:          string(index.Status),
		Progress:        index.Progress,
		Message:         index.Message,
		Error:           index.Error,
		CancelRequested: index.CancelRequested,
		UpdatedAt:       index.UpdatedAt,
	}
}

// fromIndexModel maps a table row back to the domain index.
func fromIndexModel(model *indexModel) *domain.DocumentIndex {
	index := &domain.DocumentIndex{
		ID:             model.ID,
		OwnerID:        model.OwnerID,
		ProjectID:      model.ProjectID,
		DocumentID:     model.DocumentID,
		StoragePath:    model.StoragePath,
		ChunkerVersion: model.ChunkerVersion,
		EmbedConfig: domain.EmbedConfig{
			Provider:  model.EmbedProvider,
			Model:     model.EmbedModel,
			BatchSize: model.EmbedBatchSize,
		},
		Status:          domain.IndexRunStatus(model.Status),
		Progress:        model.Progress,
		Message:         model.Message,
		Error:           model.Error,
		CancelRequested: model.CancelRequested,
		UpdatedAt:       model.UpdatedAt,
	}
	if model.EmbedDimensions.Valid {
		d := int(model.EmbedDimensions.Int64)
		index.EmbedConfig.Dimensions = &d
	}
	return index
}

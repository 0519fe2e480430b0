package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure IndexingService implements the interface.
var _ driving.IndexingService = (*IndexingService)(nil)

// errCancelled signals a worker that a cancellation request was observed.
// It never leaves the worker; the run ends in the cancelled state instead.
var errCancelled = errors.New("cancellation requested")

// Progress milestones for an index run. Embedding interpolates between its
// start and end because it dominates wall-clock time.
const (
	progressExtracting = 5
	progressChunking   = 15
	progressEmbedStart = 35
	progressEmbedEnd   = 85
)

// IndexingService creates index runs and drives them through background
// workers. All state changes go through the store so that status reads and
// cancellation requests observe a consistent run.
type IndexingService struct {
	indexes    driven.IndexStore
	chunks     driven.ChunkStore
	vectors    driven.EmbeddingStore
	files      driven.FileStorage
	documents  driven.DocumentRegistry
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	supervisor *Supervisor
}

// NewIndexingService creates a new indexing service.
func NewIndexingService(
	indexes driven.IndexStore,
	chunks driven.ChunkStore,
	vectors driven.EmbeddingStore,
	files driven.FileStorage,
	documents driven.DocumentRegistry,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	supervisor *Supervisor,
) *IndexingService {
	return &IndexingService{
		indexes:    indexes,
		chunks:     chunks,
		vectors:    vectors,
		files:      files,
		documents:  documents,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		supervisor: supervisor,
	}
}

// Start creates an index run and enqueues its background worker. When a
// run for the same (project, document, signature) is already pending or
// running, that run's status is returned instead of creating a duplicate.
func (s *IndexingService) Start(
	ctx context.Context, ownerID, projectID, documentID string, cfg domain.EmbedConfig,
) (*driving.IndexStatus, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(projectID) == "" ||
		strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: owner, project and document are required", domain.ErrInvalidInput)
	}
	if cfg.Provider == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding provider and model are required", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	storagePath, err := s.documents.Resolve(ctx, ownerID, projectID, documentID)
	if err != nil {
		return nil, err
	}
	// Fail fast on unsupported formats before a worker is spawned.
	if _, err := s.extractors.ForFile(storagePath); err != nil {
		return nil, err
	}

	signature := cfg.Signature()
	existing, err := s.indexes.FindActive(ctx, projectID, documentID, signature)
	if err != nil {
		return nil, fmt.Errorf("find active index: %w", err)
	}
	if existing != nil {
		logger.Info("Index run %s already active for this document and config", existing.ID)
		return toStatus(existing), nil
	}

	// Check the provider before a worker spawns so an unreachable endpoint
	// fails this call instead of the background run.
	if err := s.embedder.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	index := &domain.DocumentIndex{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		ProjectID:      projectID,
		DocumentID:     documentID,
		StoragePath:    storagePath,
		ChunkerVersion: s.chunker.Version(),
		EmbedConfig:    cfg,
		Status:         domain.IndexPending,
		Progress:       0,
		Message:        "queued",
	}
	if err := s.indexes.Create(ctx, index); err != nil {
		return nil, fmt.Errorf("create index run: %w", err)
	}

	logger.Section("Indexing")
	logger.Info("Starting index run %s (document %s, signature %s)", index.ID, documentID, signature)
	s.supervisor.Enqueue(index.ID, func(workerCtx context.Context) {
		s.run(workerCtx, index.ID)
	})

	return toStatus(index), nil
}

// Status returns the state of one index run.
func (s *IndexingService) Status(ctx context.Context, indexID string) (*driving.IndexStatus, error) {
	index, err := s.indexes.Get(ctx, indexID)
	if err != nil {
		return nil, err
	}
	return s.withChunkCount(ctx, index), nil
}

// LatestStatus returns the state of the most recent run for a project.
func (s *IndexingService) LatestStatus(ctx context.Context, projectID string) (*driving.IndexStatus, error) {
	index, err := s.indexes.Latest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.withChunkCount(ctx, index), nil
}

// withChunkCount decorates a status with the stored chunk count once the
// run is ready. Count failures leave the field zero rather than failing
// the status read.
func (s *IndexingService) withChunkCount(ctx context.Context, index *domain.DocumentIndex) *driving.IndexStatus {
	status := toStatus(index)
	if index.Status == domain.IndexReady {
		if n, err := s.chunks.CountByIndex(ctx, index.ID); err == nil {
			status.ChunkCount = n
		}
	}
	return status
}

// Cancel requests cooperative cancellation. The worker observes the flag at
// its next checkpoint, removes partial chunks and vectors, and marks the
// run cancelled. Cancelling a terminal run is a no-op.
func (s *IndexingService) Cancel(ctx context.Context, indexID string) (*driving.IndexStatus, error) {
	index, err := s.indexes.RequestCancel(ctx, indexID)
	if err != nil {
		return nil, err
	}
	logger.Info("Cancellation requested for index run %s", indexID)
	return toStatus(index), nil
}

// run executes one index run to a terminal state. Every exit path leaves
// the run terminal: ready on success, cancelled after a cancellation
// request, failed otherwise.
func (s *IndexingService) run(ctx context.Context, indexID string) {
	index, err := s.indexes.Get(context.Background(), indexID)
	if err != nil {
		logger.Error("Index run %s vanished before start: %v", indexID, err)
		return
	}

	if err := s.process(ctx, index); err != nil {
		if errors.Is(err, errCancelled) {
			s.finishCancelled(index)
			return
		}
		s.finishFailed(index, err)
	}
}

// process runs the pipeline stages. It returns errCancelled when a
// cancellation request is observed at a checkpoint, and any other error on
// failure. On success the run is already marked ready.
func (s *IndexingService) process(ctx context.Context, index *domain.DocumentIndex) error {
	if err := s.checkpoint(ctx, index); err != nil {
		return err
	}
	if err := s.advance(index, domain.IndexRunning, progressExtracting, "extracting content"); err != nil {
		return err
	}

	data, err := s.files.ReadBytes(ctx, index.StoragePath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	extractor, err := s.extractors.ForFile(index.StoragePath)
	if err != nil {
		return err
	}
	blocks, err := extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract blocks: %w", err)
	}
	logger.Debug("Extracted %d blocks via %s", len(blocks), extractor.Name())

	if err := s.checkpoint(ctx, index); err != nil {
		return err
	}
	if err := s.advance(index, domain.IndexRunning, progressChunking, "chunking content"); err != nil {
		return err
	}

	drafts, err := s.chunker.Chunk(blocks)
	if err != nil {
		return fmt.Errorf("chunk blocks: %w", err)
	}
	if len(drafts) == 0 {
		return fmt.Errorf("document %s produced no chunks", index.DocumentID)
	}

	stored := make([]driven.StoredChunk, len(drafts))
	for i, d := range drafts {
		stored[i] = driven.StoredChunk{
			ID:         uuid.New().String(),
			IndexID:    index.ID,
			ChunkIndex: d.ChunkIndex,
			Text:       d.Text,
			Metadata:   d.Metadata,
		}
	}

	if err := s.checkpoint(ctx, index); err != nil {
		return err
	}
	if err := s.chunks.SaveChunks(ctx, stored); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	logger.Info("Stored %d chunks for index run %s", len(stored), index.ID)

	if err := s.embedChunks(ctx, index, stored); err != nil {
		return err
	}

	// A cancel that arrived during the final embedding batch still wins
	// over marking the run ready.
	if err := s.checkpoint(ctx, index); err != nil {
		return err
	}

	message := fmt.Sprintf("indexed %d chunks with %s", len(stored), s.embedder.ModelName())
	return s.advance(index, domain.IndexReady, 100, message)
}

// embedChunks embeds stored chunks batch by batch, upserting vectors as it
// goes. The (index, chunk, signature) upsert key makes retried batches
// harmless. Cancellation is rechecked before every batch so an abort never
// waits on more than one provider round-trip.
func (s *IndexingService) embedChunks(
	ctx context.Context, index *domain.DocumentIndex, stored []driven.StoredChunk,
) error {
	signature := index.EmbedConfig.Signature()
	batchSize := index.EmbedConfig.EffectiveBatchSize()
	total := len(stored)

	if err := s.advance(index, domain.IndexRunning, progressEmbedStart,
		fmt.Sprintf("embedding %d chunks", total)); err != nil {
		return err
	}

	for start := 0; start < total; start += batchSize {
		if err := s.checkpoint(ctx, index); err != nil {
			return err
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batch := stored[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(vectors), len(batch))
		}

		rows := make([]driven.EmbeddingRow, len(batch))
		for i, c := range batch {
			rows[i] = driven.EmbeddingRow{
				IndexID:    index.ID,
				ChunkID:    c.ID,
				Signature:  signature,
				ChunkIndex: c.ChunkIndex,
				Vector:     vectors[i],
			}
		}
		if err := s.vectors.Upsert(ctx, rows); err != nil {
			return fmt.Errorf("upsert vectors %d-%d: %w", start, end, err)
		}

		done := end
		progress := progressEmbedStart + (progressEmbedEnd-progressEmbedStart)*done/total
		if err := s.advance(index, domain.IndexRunning, progress,
			fmt.Sprintf("embedded %d/%d chunks", done, total)); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint reloads the run and reports errCancelled when cancellation was
// requested, either through the store flag or the worker context.
func (s *IndexingService) checkpoint(ctx context.Context, index *domain.DocumentIndex) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	current, err := s.indexes.Get(context.Background(), index.ID)
	if err != nil {
		return fmt.Errorf("reload index run: %w", err)
	}
	if current.CancelRequested {
		index.CancelRequested = true
		return errCancelled
	}
	return nil
}

// advance transitions the run and persists it.
func (s *IndexingService) advance(index *domain.DocumentIndex, status domain.IndexRunStatus, progress int, message string) error {
	next, err := index.ApplyTransition(status, progress, message)
	if err != nil {
		return err
	}
	*index = next
	// Persistence uses a fresh context: progress of a live worker must be
	// recorded even while the worker context is being torn down.
	if err := s.indexes.Update(context.Background(), index); err != nil {
		return fmt.Errorf("persist index run: %w", err)
	}
	return nil
}

// finishCancelled removes partial artefacts and marks the run cancelled.
// Cleanup is symmetric with what the run produced: chunks and vectors go,
// the stored document stays.
func (s *IndexingService) finishCancelled(index *domain.DocumentIndex) {
	ctx := context.Background()
	if err := s.vectors.DeleteByIndex(ctx, index.ID); err != nil {
		logger.Warn("Cancelled run %s: vector cleanup failed: %v", index.ID, err)
	}
	if err := s.chunks.DeleteByIndex(ctx, index.ID); err != nil {
		logger.Warn("Cancelled run %s: chunk cleanup failed: %v", index.ID, err)
	}
	if err := s.advance(index, domain.IndexCancelled, 0, "cancelled"); err != nil {
		logger.Error("Cancelled run %s: could not persist terminal state: %v", index.ID, err)
		return
	}
	logger.Info("Index run %s cancelled and cleaned up", index.ID)
}

// finishFailed marks the run failed, keeping the raw cause for diagnostics.
func (s *IndexingService) finishFailed(index *domain.DocumentIndex, cause error) {
	logger.Error("Index run %s failed: %v", index.ID, cause)
	next, err := index.WithError(cause)
	if err != nil {
		logger.Error("Failed run %s: could not transition: %v", index.ID, err)
		return
	}
	*index = next
	if err := s.indexes.Update(context.Background(), index); err != nil {
		logger.Error("Failed run %s: could not persist terminal state: %v", index.ID, err)
	}
}

// toStatus maps a run to its externally visible status.
func toStatus(index *domain.DocumentIndex) *driving.IndexStatus {
	return &driving.IndexStatus{
		IndexID:         index.ID,
		Status:          index.Status,
		Progress:        index.Progress,
		Message:         index.Message,
		Error:           index.Error,
		CancelRequested: index.CancelRequested,
		UpdatedAt:       index.UpdatedAt,
	}
}

package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// IndexStatus is the externally visible state of one index run.
type IndexStatus struct {
	IndexID         string                `json:"index_id"`
	Status          domain.IndexRunStatus `json:"status"`
	Progress        int                   `json:"progress"`
	Message         string                `json:"message,omitempty"`
	Error           string                `json:"error,omitempty"`
	CancelRequested bool                  `json:"cancel_requested,omitempty"`
	ChunkCount      int                   `json:"chunk_count,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// IndexingService starts and tracks background indexing runs.
type IndexingService interface {
	// Start creates an index run for a document and hands it to a
	// background worker, returning immediately. Starting again while a run
	// for the same (project, document, signature) is still active returns
	// the existing run instead of creating a new one.
	Start(ctx context.Context, ownerID, projectID, documentID string, cfg domain.EmbedConfig) (*IndexStatus, error)

	// Status returns the state of one index run.
	Status(ctx context.Context, indexID string) (*IndexStatus, error)

	// LatestStatus returns the state of the most recent run for a project.
	LatestStatus(ctx context.Context, projectID string) (*IndexStatus, error)

	// Cancel requests cooperative cancellation of a run. Cancelling an
	// already-terminal or already-cancelling run is idempotent.
	Cancel(ctx context.Context, indexID string) (*IndexStatus, error)
}

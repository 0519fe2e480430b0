package domain

import (
	"fmt"
	"time"
)

// IndexRunStatus is the lifecycle state of one indexing run.
type IndexRunStatus string

// Index run states. Ready, failed and cancelled are terminal.
const (
	IndexPending   IndexRunStatus = "pending"
	IndexRunning   IndexRunStatus = "running"
	IndexReady     IndexRunStatus = "ready"
	IndexFailed    IndexRunStatus = "failed"
	IndexCancelled IndexRunStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s IndexRunStatus) Terminal() bool {
	switch s {
	case IndexReady, IndexFailed, IndexCancelled:
		return true
	default:
		return false
	}
}

// DocumentIndex is one indexing run for one (project, document) pair.
// After creation it is mutated only by the indexing worker and the
// cancellation request path, always through ApplyTransition.
type DocumentIndex struct {
	ID              string
	OwnerID         string
	ProjectID       string
	DocumentID      string
	StoragePath     string
	ChunkerVersion  string
	EmbedConfig     EmbedConfig
	Status          IndexRunStatus
	Progress        int
	Message         string
	Error           string
	CancelRequested bool
	UpdatedAt       time.Time
}

// ApplyTransition returns a copy of the index advanced to the given status
// and progress. It enforces the lifecycle invariants: progress stays within
// 0..100 and terminal states never transition further.
func (d DocumentIndex) ApplyTransition(status IndexRunStatus, progress int, message string) (DocumentIndex, error) {
	if d.Status.Terminal() {
		return d, fmt.Errorf("%w: cannot move %s to %s", ErrIndexTerminal, d.Status, status)
	}
	if progress < 0 || progress > 100 {
		return d, fmt.Errorf("%w: progress %d out of range", ErrInvalidInput, progress)
	}

	next := d
	next.Status = status
	next.Progress = progress
	next.Message = message
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// WithError returns a copy transitioned to failed with the raw error
// message preserved for diagnostics. Progress resets to zero.
func (d DocumentIndex) WithError(cause error) (DocumentIndex, error) {
	next, err := d.ApplyTransition(IndexFailed, 0, "indexing failed")
	if err != nil {
		return d, err
	}
	if cause != nil {
		next.Error = cause.Error()
	}
	return next, nil
}

package domain

import (
	"errors"
	"testing"
)

func TestDocumentIndex_ApplyTransition(t *testing.T) {
	idx := DocumentIndex{ID: "idx-1", Status: IndexPending}

	running, err := idx.ApplyTransition(IndexRunning, 5, "extracting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if running.Status != IndexRunning || running.Progress != 5 {
		t.Errorf("expected running/5, got %s/%d", running.Status, running.Progress)
	}
	if running.Message != "extracting" {
		t.Errorf("expected message 'extracting', got %q", running.Message)
	}
	// Original value is untouched.
	if idx.Status != IndexPending {
		t.Error("ApplyTransition must not mutate the receiver")
	}
}

func TestDocumentIndex_ProgressBounds(t *testing.T) {
	idx := DocumentIndex{Status: IndexRunning}

	if _, err := idx.ApplyTransition(IndexRunning, -1, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for progress -1, got %v", err)
	}
	if _, err := idx.ApplyTransition(IndexRunning, 101, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for progress 101, got %v", err)
	}
}

func TestDocumentIndex_TerminalStatesAreFinal(t *testing.T) {
	for _, status := range []IndexRunStatus{IndexReady, IndexFailed, IndexCancelled} {
		idx := DocumentIndex{Status: status}
		if _, err := idx.ApplyTransition(IndexRunning, 50, "restart"); !errors.Is(err, ErrIndexTerminal) {
			t.Errorf("expected ErrIndexTerminal when leaving %s, got %v", status, err)
		}
	}
}

func TestDocumentIndex_WithError(t *testing.T) {
	idx := DocumentIndex{Status: IndexRunning, Progress: 60}

	failed, err := idx.WithError(errors.New("embedding provider exploded"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Status != IndexFailed {
		t.Errorf("expected failed status, got %s", failed.Status)
	}
	if failed.Progress != 0 {
		t.Errorf("expected progress reset to 0, got %d", failed.Progress)
	}
	if failed.Error != "embedding provider exploded" {
		t.Errorf("raw error message not preserved: %q", failed.Error)
	}
}

func TestIndexRunStatus_Terminal(t *testing.T) {
	terminal := []IndexRunStatus{IndexReady, IndexFailed, IndexCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []IndexRunStatus{IndexPending, IndexRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestBlockKind_Splittable(t *testing.T) {
	for _, k := range []BlockKind{BlockParagraph, BlockReference, BlockFootnote, BlockUnknown} {
		if !k.Splittable() {
			t.Errorf("%s should be splittable", k)
		}
	}
	for _, k := range []BlockKind{BlockTable, BlockEquation, BlockSectionHead, BlockFigureCaption, BlockListItem} {
		if k.Splittable() {
			t.Errorf("%s should not be splittable", k)
		}
	}
}

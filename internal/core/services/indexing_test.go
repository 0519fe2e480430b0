package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
)

type indexingFixture struct {
	service  *IndexingService
	indexes  *memIndexStore
	chunks   *memChunkStore
	vectors  *memEmbeddingStore
	files    *memFiles
	docs     *memDocs
	embedder *stubEmbedder
}

func newIndexingFixture(t *testing.T) *indexingFixture {
	t.Helper()
	f := &indexingFixture{
		indexes:  newMemIndexStore(),
		chunks:   newMemChunkStore(),
		vectors:  newMemEmbeddingStore(),
		files:    newMemFiles(),
		docs:     newMemDocs(),
		embedder: newStubEmbedder(),
	}
	f.service = NewIndexingService(
		f.indexes, f.chunks, f.vectors, f.files, f.docs,
		textRegistry{}, oneBlockChunker{}, f.embedder, NewSupervisor(),
	)
	return f
}

// seedDocument stores a three-paragraph text file and registers it.
func (f *indexingFixture) seedDocument(t *testing.T) {
	t.Helper()
	data := []byte("first paragraph of text\n\nsecond paragraph of text\n\nthird paragraph of text")
	res, err := f.files.Save(context.Background(), "owner-1", "proj-1", "doc.txt", data, "text/plain")
	require.NoError(t, err)
	f.docs.put("owner-1", "proj-1", "doc-1", res.StoragePath)
}

func testEmbedConfig() domain.EmbedConfig {
	return domain.EmbedConfig{Provider: "stub", Model: "stub-embed", BatchSize: 1}
}

// awaitTerminal polls until the run reaches a terminal state.
func (f *indexingFixture) awaitTerminal(t *testing.T, indexID string) *driving.IndexStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := f.service.Status(context.Background(), indexID)
		require.NoError(t, err)
		if status.Status.Terminal() {
			return status
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("index run never reached a terminal state")
	return nil
}

func TestIndexing_FullRunReachesReady(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)
	assert.Equal(t, domain.IndexPending, status.Status)

	final := f.awaitTerminal(t, status.IndexID)
	assert.Equal(t, domain.IndexReady, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "indexed 3 chunks with stub-embed", final.Message)
	assert.Empty(t, final.Error)

	count, err := f.chunks.CountByIndex(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, final.ChunkCount, "ready status reports the stored chunk count")
	assert.Equal(t, 3, f.vectors.count(status.IndexID), "one vector per chunk")
	assert.Equal(t, 3, f.embedder.calls(), "batch size 1 means one call per chunk")
}

func TestIndexing_StartFailsWhenProviderUnreachable(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)
	f.embedder.pingErr = errors.New("connection refused")

	_, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Zero(t, f.embedder.calls(), "no worker may start against an unreachable provider")
}

func TestIndexing_StartValidatesInput(t *testing.T) {
	f := newIndexingFixture(t)

	_, err := f.service.Start(context.Background(), "", "proj-1", "doc-1", testEmbedConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", domain.EmbedConfig{Provider: "stub"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexing_StartUnknownDocument(t *testing.T) {
	f := newIndexingFixture(t)

	_, err := f.service.Start(context.Background(), "owner-1", "proj-1", "missing", testEmbedConfig())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexing_StartUnsupportedType(t *testing.T) {
	f := newIndexingFixture(t)
	res, err := f.files.Save(context.Background(), "owner-1", "proj-1", "doc.xyz", []byte("data"), "application/octet-stream")
	require.NoError(t, err)
	f.docs.put("owner-1", "proj-1", "doc-1", res.StoragePath)

	_, err = f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestIndexing_StartIsIdempotentWhileActive(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)

	// Hold the embedder so the first run stays active.
	f.embedder.started = make(chan struct{})
	f.embedder.release = make(chan struct{})

	first, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)
	<-f.embedder.started

	second, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)
	assert.Equal(t, first.IndexID, second.IndexID, "active run must be reused")

	// A different embedding config is a different signature and gets its
	// own run.
	otherCfg := testEmbedConfig()
	otherCfg.Model = "stub-embed-large"
	third, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", otherCfg)
	require.NoError(t, err)
	assert.NotEqual(t, first.IndexID, third.IndexID)

	close(f.embedder.release)
	f.awaitTerminal(t, first.IndexID)
	f.awaitTerminal(t, third.IndexID)
}

func TestIndexing_EmbeddingFailureMarksFailed(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)
	f.embedder.failAfter = 2

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)

	final := f.awaitTerminal(t, status.IndexID)
	assert.Equal(t, domain.IndexFailed, final.Status)
	assert.Equal(t, 0, final.Progress)
	assert.Contains(t, final.Error, "embedding provider unavailable")
	assert.Equal(t, "indexing failed", final.Message)
}

func TestIndexing_CancelCleansUpAndMarksCancelled(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)
	f.embedder.started = make(chan struct{})
	f.embedder.release = make(chan struct{})

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)

	// Wait until the first embed batch is in flight, then cancel.
	<-f.embedder.started
	cancelStatus, err := f.service.Cancel(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.True(t, cancelStatus.CancelRequested)

	close(f.embedder.release)
	final := f.awaitTerminal(t, status.IndexID)

	assert.Equal(t, domain.IndexCancelled, final.Status)
	assert.Equal(t, 0, final.Progress)

	count, err := f.chunks.CountByIndex(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.Zero(t, count, "partial chunks are removed on cancellation")
	assert.Zero(t, f.vectors.count(status.IndexID), "partial vectors are removed on cancellation")
}

func TestIndexing_CancelDuringFinalBatchMarksCancelled(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)
	f.embedder.started = make(chan struct{})
	f.embedder.release = make(chan struct{})

	// The whole document embeds in one batch, so the cancel lands while
	// the last provider call is in flight.
	cfg := testEmbedConfig()
	cfg.BatchSize = 8
	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", cfg)
	require.NoError(t, err)

	<-f.embedder.started
	_, err = f.service.Cancel(context.Background(), status.IndexID)
	require.NoError(t, err)

	close(f.embedder.release)
	final := f.awaitTerminal(t, status.IndexID)

	assert.Equal(t, domain.IndexCancelled, final.Status)
	count, err := f.chunks.CountByIndex(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.vectors.count(status.IndexID))
}

func TestIndexing_CancelTerminalRunIsNoOp(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)
	f.awaitTerminal(t, status.IndexID)

	cancelled, err := f.service.Cancel(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexReady, cancelled.Status)
	assert.False(t, cancelled.CancelRequested)

	// The ready run keeps its artefacts.
	count, err := f.chunks.CountByIndex(context.Background(), status.IndexID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndexing_LatestStatus(t *testing.T) {
	f := newIndexingFixture(t)
	f.seedDocument(t)

	_, err := f.service.LatestStatus(context.Background(), "proj-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)
	f.awaitTerminal(t, status.IndexID)

	latest, err := f.service.LatestStatus(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, status.IndexID, latest.IndexID)
}

func TestIndexing_EmptyDocumentFails(t *testing.T) {
	f := newIndexingFixture(t)
	res, err := f.files.Save(context.Background(), "owner-1", "proj-1", "empty.txt", []byte("   \n\n  "), "text/plain")
	require.NoError(t, err)
	f.docs.put("owner-1", "proj-1", "doc-1", res.StoragePath)

	status, err := f.service.Start(context.Background(), "owner-1", "proj-1", "doc-1", testEmbedConfig())
	require.NoError(t, err)

	final := f.awaitTerminal(t, status.IndexID)
	assert.Equal(t, domain.IndexFailed, final.Status)
	assert.Contains(t, final.Error, "no chunks")
}

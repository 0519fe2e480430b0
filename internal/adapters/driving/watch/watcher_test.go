package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
)

type addCall struct {
	filename string
	data     []byte
}

type mockDocuments struct {
	mu    sync.Mutex
	calls []addCall
	err   error
}

func (m *mockDocuments) Add(_ context.Context, _, _, filename string, data []byte) (*driving.AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, addCall{filename: filename, data: data})
	return &driving.AddResult{DocumentID: fmt.Sprintf("doc-%d", len(m.calls))}, nil
}

func (m *mockDocuments) added() []addCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]addCall(nil), m.calls...)
}

type mockIndexing struct {
	mu      sync.Mutex
	started []string
}

func (m *mockIndexing) Start(_ context.Context, _, _, documentID string, _ domain.EmbedConfig) (*driving.IndexStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, documentID)
	return &driving.IndexStatus{IndexID: "idx-" + documentID, Status: domain.IndexPending}, nil
}

func (m *mockIndexing) Status(context.Context, string) (*driving.IndexStatus, error) {
	return nil, domain.ErrNotFound
}

func (m *mockIndexing) LatestStatus(context.Context, string) (*driving.IndexStatus, error) {
	return nil, domain.ErrNotFound
}

func (m *mockIndexing) Cancel(context.Context, string) (*driving.IndexStatus, error) {
	return nil, domain.ErrNotFound
}

func (m *mockIndexing) startedDocs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startWatcher(t *testing.T, dir string, docs *mockDocuments, indexing *mockIndexing) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := New(dir, "owner-1", "proj-1", domain.EmbedConfig{Provider: "stub", Model: "stub"},
		docs, indexing, WithDebounce(50*time.Millisecond))
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestWatcher_IngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	docs := &mockDocuments{}
	indexing := &mockIndexing{}
	startWatcher(t, dir, docs, indexing)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.md"), []byte("# Title"), 0600))

	waitFor(t, 3*time.Second, func() bool { return len(indexing.startedDocs()) == 1 })

	added := docs.added()
	require.Len(t, added, 1)
	assert.Equal(t, "report.md", added[0].filename)
	assert.Equal(t, []byte("# Title"), added[0].data)
	assert.Equal(t, []string{"doc-1"}, indexing.startedDocs())
}

func TestWatcher_IngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.md"), []byte("existing"), 0600))

	docs := &mockDocuments{}
	indexing := &mockIndexing{}
	startWatcher(t, dir, docs, indexing)

	waitFor(t, 3*time.Second, func() bool { return len(docs.added()) == 1 })
	assert.Equal(t, "old.md", docs.added()[0].filename)
}

func TestWatcher_DebouncesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	docs := &mockDocuments{}
	indexing := &mockIndexing{}
	startWatcher(t, dir, docs, indexing)

	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "burst.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev"), 0600))
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, 3*time.Second, func() bool { return len(docs.added()) >= 1 })

	// The burst must settle into a single ingest.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, docs.added(), 1)
}

func TestWatcher_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	docs := &mockDocuments{}
	indexing := &mockIndexing{}
	startWatcher(t, dir, docs, indexing)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.md"), []byte("x"), 0600))

	waitFor(t, 3*time.Second, func() bool { return len(docs.added()) == 1 })
	assert.Equal(t, "visible.md", docs.added()[0].filename)
}

func TestWatcher_UnsupportedFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	docs := &mockDocuments{err: fmt.Errorf("checking type: %w", domain.ErrUnsupportedType)}
	indexing := &mockIndexing{}
	startWatcher(t, dir, docs, indexing)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0600))

	// Nothing reaches the indexer and the watcher keeps running.
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, indexing.startedDocs())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), "owner-1", "proj-1",
		domain.EmbedConfig{}, &mockDocuments{}, &mockIndexing{})
	err := w.Run(context.Background())
	assert.Error(t, err)
}

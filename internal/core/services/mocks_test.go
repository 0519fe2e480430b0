package services

// Hand-rolled in-memory fakes for the driven ports. They behave like the
// real stores closely enough for orchestration tests: copies on read,
// terminal-state rules on cancel, unique-key upserts.

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// --- index store ---

type memIndexStore struct {
	mu      sync.Mutex
	indexes map[string]domain.DocumentIndex
}

func newMemIndexStore() *memIndexStore {
	return &memIndexStore{indexes: make(map[string]domain.DocumentIndex)}
}

func (s *memIndexStore) Create(_ context.Context, index *domain.DocumentIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[index.ID]; exists {
		return fmt.Errorf("duplicate index id %s", index.ID)
	}
	s.indexes[index.ID] = *index
	return nil
}

func (s *memIndexStore) Get(_ context.Context, id string) (*domain.DocumentIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.indexes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := index
	return &copied, nil
}

func (s *memIndexStore) Latest(_ context.Context, projectID string) (*domain.DocumentIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.DocumentIndex
	for _, index := range s.indexes {
		if index.ProjectID != projectID {
			continue
		}
		if latest == nil || index.UpdatedAt.After(latest.UpdatedAt) {
			copied := index
			latest = &copied
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (s *memIndexStore) FindActive(_ context.Context, projectID, documentID, signature string) (*domain.DocumentIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, index := range s.indexes {
		if index.ProjectID == projectID && index.DocumentID == documentID &&
			index.EmbedConfig.Signature() == signature && !index.Status.Terminal() {
			copied := index
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memIndexStore) FindReady(_ context.Context, projectID, signature string) (*domain.DocumentIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, index := range s.indexes {
		if index.ProjectID == projectID && index.Status == domain.IndexReady &&
			index.EmbedConfig.Signature() == signature {
			copied := index
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memIndexStore) Update(_ context.Context, index *domain.DocumentIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[index.ID]; !ok {
		return domain.ErrNotFound
	}
	s.indexes[index.ID] = *index
	return nil
}

func (s *memIndexStore) RequestCancel(_ context.Context, id string) (*domain.DocumentIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.indexes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !index.Status.Terminal() {
		index.CancelRequested = true
		s.indexes[id] = index
	}
	copied := index
	return &copied, nil
}

// --- chunk store ---

type memChunkStore struct {
	mu     sync.Mutex
	chunks map[string][]driven.StoredChunk // by index id
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{chunks: make(map[string][]driven.StoredChunk)}
}

func (s *memChunkStore) SaveChunks(_ context.Context, chunks []driven.StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.IndexID] = append(s.chunks[c.IndexID], c)
	}
	return nil
}

func (s *memChunkStore) GetByIDs(_ context.Context, indexID string, ids []string) ([]driven.StoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []driven.StoredChunk
	for _, c := range s.chunks[indexID] {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memChunkStore) CountByIndex(_ context.Context, indexID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks[indexID]), nil
}

func (s *memChunkStore) DeleteByIndex(_ context.Context, indexID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, indexID)
	return nil
}

// --- embedding store ---

type memEmbeddingStore struct {
	mu   sync.Mutex
	rows map[string]driven.EmbeddingRow // key: index|chunk|signature
}

func newMemEmbeddingStore() *memEmbeddingStore {
	return &memEmbeddingStore{rows: make(map[string]driven.EmbeddingRow)}
}

func embedKey(r driven.EmbeddingRow) string {
	return r.IndexID + "|" + r.ChunkID + "|" + r.Signature
}

func (s *memEmbeddingStore) Upsert(_ context.Context, rows []driven.EmbeddingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[embedKey(r)] = r
	}
	return nil
}

func (s *memEmbeddingStore) DeleteByIndex(_ context.Context, indexID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.rows {
		if r.IndexID == indexID {
			delete(s.rows, k)
		}
	}
	return nil
}

func (s *memEmbeddingStore) count(indexID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.IndexID == indexID {
			n++
		}
	}
	return n
}

// --- file storage and document registry ---

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (s *memFiles) Save(_ context.Context, ownerID, projectID, filename string, data []byte, contentType string) (*driven.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(ownerID, projectID, filename)
	s.files[path] = data
	return &driven.SaveResult{StoragePath: path, SizeBytes: int64(len(data)), ContentType: contentType}, nil
}

func (s *memFiles) ReadBytes(_ context.Context, storagePath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[storagePath]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *memFiles) Delete(_ context.Context, storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, storagePath)
	return nil
}

type memDocs struct {
	mu   sync.Mutex
	docs map[string]string // owner|project|doc -> storage path
	next int
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]string)}
}

func docKey(ownerID, projectID, documentID string) string {
	return ownerID + "|" + projectID + "|" + documentID
}

func (s *memDocs) Register(_ context.Context, ownerID, projectID, filename, storagePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("doc-%d", s.next)
	s.docs[docKey(ownerID, projectID, id)] = storagePath
	return id, nil
}

func (s *memDocs) Resolve(_ context.Context, ownerID, projectID, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.docs[docKey(ownerID, projectID, documentID)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return path, nil
}

func (s *memDocs) put(ownerID, projectID, documentID, storagePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docKey(ownerID, projectID, documentID)] = storagePath
}

// --- extractor ---

// textExtractor splits plain text on blank lines into paragraph blocks.
type textExtractor struct{}

func (textExtractor) Name() string                  { return "text" }
func (textExtractor) SupportedExtensions() []string { return []string{".txt"} }
func (textExtractor) Extract(_ context.Context, data []byte) ([]domain.Block, error) {
	var blocks []domain.Block
	for _, part := range strings.Split(string(data), "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		blocks = append(blocks, domain.Block{Text: part, Kind: domain.BlockParagraph})
	}
	return blocks, nil
}

type textRegistry struct{}

func (textRegistry) ForFile(path string) (driven.BlockExtractor, error) {
	if filepath.Ext(path) != ".txt" {
		return nil, domain.ErrUnsupportedType
	}
	return textExtractor{}, nil
}

// --- chunker ---

// oneBlockChunker emits one chunk per block, keeping tests independent of
// any real chunking policy.
type oneBlockChunker struct{}

func (oneBlockChunker) Version() string { return "test/v1" }

func (oneBlockChunker) Chunk(blocks []domain.Block) ([]domain.ChunkDraft, error) {
	drafts := make([]domain.ChunkDraft, 0, len(blocks))
	for i, b := range blocks {
		drafts = append(drafts, domain.ChunkDraft{
			ChunkIndex: i,
			Text:       b.Text,
			Blocks:     []domain.Block{b},
			Metadata:   domain.ChunkMetadata{CharLen: len(b.Text)},
		})
	}
	return drafts, nil
}

// --- embedder ---

// stubEmbedder produces deterministic three-dimensional vectors derived
// from the text. Optional hooks inject failures and gate batch calls for
// cancellation tests.
type stubEmbedder struct {
	mu          sync.Mutex
	batchCalls  int
	singleCalls int
	failAfter   int // fail on batch call number failAfter (1-based); 0 disables
	pingErr     error
	started     chan struct{}
	release     chan struct{}
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{}
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.singleCalls++
	e.mu.Unlock()
	return stubVector(text), nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batchCalls++
	call := e.batchCalls
	started := e.started
	release := e.release
	e.mu.Unlock()

	if call == 1 && started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if e.failAfter > 0 && call >= e.failAfter {
		return nil, fmt.Errorf("embedding provider unavailable")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = stubVector(t)
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int              { return 3 }
func (e *stubEmbedder) ModelName() string            { return "stub-embed" }
func (e *stubEmbedder) Ping(_ context.Context) error { return e.pingErr }
func (e *stubEmbedder) Close() error                 { return nil }

func (e *stubEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batchCalls
}

func (e *stubEmbedder) singles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.singleCalls
}

// stubVector maps text to a small deterministic vector.
func stubVector(text string) []float32 {
	var a, b float32
	for i, r := range text {
		if i%2 == 0 {
			a += float32(r)
		} else {
			b += float32(r)
		}
	}
	return []float32{a, b, float32(len(text))}
}

// --- vector searcher ---

// stubSearcher returns canned hits per sub-query text order, or scans a
// fixed hit list.
type stubSearcher struct {
	mu      sync.Mutex
	hits    [][]driven.VectorHit
	callNum int
	queries [][]float32
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _, _ string, query []float32, k int, _ domain.Metric) ([]driven.VectorHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.queries = append(s.queries, query)
	if s.callNum >= len(s.hits) {
		return nil, nil
	}
	hits := s.hits[s.callNum]
	s.callNum++
	if len(hits) > k {
		hits = hits[:k]
	}
	sorted := make([]driven.VectorHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return sorted, nil
}

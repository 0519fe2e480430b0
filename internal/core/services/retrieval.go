package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Retrieval limits and defaults.
const (
	defaultTopK = 10
	maxTopK     = 50
	defaultTopN = 6
)

// RetrievalService assembles ranked context for a question: expand the
// query, search each sub-query, merge, hydrate and optionally rerank.
// The rewriter and reranker are optional; the pipeline degrades without
// them instead of failing.
type RetrievalService struct {
	indexes  driven.IndexStore
	chunks   driven.ChunkStore
	searcher driven.VectorSearcher
	embedder driven.EmbeddingService
	expander *queryExpander
	reranker driven.Reranker
	embedCfg domain.EmbedConfig
	metric   domain.Metric
}

// NewRetrievalService creates a new retrieval service. rewriter and
// reranker may be nil.
func NewRetrievalService(
	indexes driven.IndexStore,
	chunks driven.ChunkStore,
	searcher driven.VectorSearcher,
	embedder driven.EmbeddingService,
	rewriter driven.QueryRewriter,
	reranker driven.Reranker,
	embedCfg domain.EmbedConfig,
	metric domain.Metric,
) *RetrievalService {
	if metric == "" {
		metric = domain.MetricCosine
	}
	return &RetrievalService{
		indexes:  indexes,
		chunks:   chunks,
		searcher: searcher,
		embedder: embedder,
		expander: newQueryExpander(rewriter),
		reranker: reranker,
		embedCfg: embedCfg,
		metric:   metric,
	}
}

// BuildContext runs the full retrieval pipeline for one question.
func (s *RetrievalService) BuildContext(ctx context.Context, req driving.BuildRequest) (*domain.ContextPack, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	index, err := s.loadReadyIndex(ctx, req)
	if err != nil {
		return nil, err
	}

	topK, topN := clampLimits(req.TopK, req.TopN)

	logger.Section("Retrieval")
	logger.Debug("Query: %q (top_k=%d, top_n=%d, metric=%s)", query, topK, topN, s.metric)

	// The original query always participates in the search: expansion adds
	// phrasings, it never replaces the user's own words.
	subQueries := s.expander.Expand(ctx, query, req.History)
	searchTexts := dedupeQueries(append(subQueries, query))
	logger.Debug("Searching with %d sub-queries", len(searchTexts))

	perQuery, err := s.searchAll(ctx, index, searchTexts, topK)
	if err != nil {
		return nil, err
	}

	merged := mergeMatches(perQuery, topK)
	logger.Debug("Merged %d candidates into %d unique chunks", merged.TotalCandidates, merged.UniqueCandidates)

	candidates, err := s.hydrate(ctx, index.ID, merged.Matches)
	if err != nil {
		return nil, err
	}

	ranked := s.rerank(ctx, query, candidates, topN, req.RerankTimeout)
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	pack := &domain.ContextPack{
		IndexID:   index.ID,
		ProjectID: index.ProjectID,
		Query:     query,
		Signature: index.EmbedConfig.Signature(),
		Metric:    s.metric,
		Chunks:    make([]domain.ContextChunk, 0, len(ranked)),
	}
	for _, c := range ranked {
		pack.Chunks = append(pack.Chunks, domain.ContextChunk{
			ID:       c.chunk.ID,
			Index:    c.chunk.ChunkIndex,
			Text:     c.chunk.Text,
			Score:    c.score,
			Metadata: c.chunk.Metadata,
			Citation: citation(index.DocumentID, c.chunk),
		})
	}
	return pack, nil
}

// loadReadyIndex fetches the index and enforces visibility and readiness.
// Ownership mismatches collapse into not-found so existence never leaks.
func (s *RetrievalService) loadReadyIndex(ctx context.Context, req driving.BuildRequest) (*domain.DocumentIndex, error) {
	index, err := s.indexes.Get(ctx, req.IndexID)
	if err != nil {
		return nil, err
	}
	if index.OwnerID != req.OwnerID || index.ProjectID != req.ProjectID {
		return nil, domain.ErrNotFound
	}
	if index.Status != domain.IndexReady {
		return nil, fmt.Errorf("%w: index %s is %s", domain.ErrIndexNotReady, index.ID, index.Status)
	}
	if s.embedCfg.Signature() != index.EmbedConfig.Signature() {
		return nil, fmt.Errorf("%w: embedding config does not match the index", domain.ErrInvalidRetrieval)
	}
	return index, nil
}

// searchAll embeds the search texts in one batch and runs the vector search
// per sub-query. A failing sub-query is dropped; only losing all of them is
// an error.
func (s *RetrievalService) searchAll(
	ctx context.Context, index *domain.DocumentIndex, searchTexts []string, topK int,
) ([][]domain.ChunkMatch, error) {
	vectors, err := s.embedQueries(ctx, searchTexts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed queries: %v", domain.ErrInvalidRetrieval, err)
	}
	if len(vectors) != len(searchTexts) {
		return nil, fmt.Errorf("%w: got %d query vectors for %d queries", domain.ErrInvalidRetrieval, len(vectors), len(searchTexts))
	}

	signature := index.EmbedConfig.Signature()
	perQuery := make([][]domain.ChunkMatch, len(searchTexts))
	failures := 0
	for i, vec := range vectors {
		hits, err := s.searcher.Search(ctx, index.ID, signature, vec, topK, s.metric)
		if err != nil {
			logger.Warn("Vector search failed for sub-query %d: %v", i, err)
			failures++
			continue
		}
		matches := make([]domain.ChunkMatch, 0, len(hits))
		for _, h := range hits {
			matches = append(matches, domain.ChunkMatch{
				ChunkID:    h.ChunkID,
				ChunkIndex: h.ChunkIndex,
				Score:      h.Score,
				Source:     domain.MatchVector,
			})
		}
		perQuery[i] = matches
	}
	if failures == len(searchTexts) {
		return nil, fmt.Errorf("%w: all sub-query searches failed", domain.ErrInvalidRetrieval)
	}
	return perQuery, nil
}

// embedQueries embeds the search texts. A lone query, the usual case when
// expansion is disabled, takes the single-text call; expanded queries embed
// as one batch.
func (s *RetrievalService) embedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 1 {
		vec, err := s.embedder.Embed(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	}
	return s.embedder.EmbedBatch(ctx, texts)
}

// rankedChunk pairs a hydrated chunk with its merged score.
type rankedChunk struct {
	chunk driven.StoredChunk
	score float64
}

// hydrate loads the chunk rows for the merged matches and returns them in
// merge order. Matches whose rows have vanished are dropped.
func (s *RetrievalService) hydrate(ctx context.Context, indexID string, matches []domain.ChunkMatch) ([]rankedChunk, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	rows, err := s.chunks.GetByIDs(ctx, indexID, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunks: %w", err)
	}
	byID := make(map[string]driven.StoredChunk, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	out := make([]rankedChunk, 0, len(matches))
	for _, m := range matches {
		row, ok := byID[m.ChunkID]
		if !ok {
			logger.Debug("Chunk %s missing during hydration, dropping", m.ChunkID)
			continue
		}
		out = append(out, rankedChunk{chunk: row, score: m.Score})
	}
	return out, nil
}

// rerank reorders candidates through the reranker, bounded by timeout. Any
// failure or timeout keeps the merged order: reranking improves ranking
// when it works and must never lose results when it does not. Candidates
// the reranker omits are appended in their original order.
func (s *RetrievalService) rerank(
	ctx context.Context, query string, candidates []rankedChunk, topN int, timeout time.Duration,
) []rankedChunk {
	if s.reranker == nil || timeout <= 0 || topN <= 0 || len(candidates) < 2 {
		return candidates
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rerankCandidates := make([]driven.RerankCandidate, len(candidates))
	for i, c := range candidates {
		rerankCandidates[i] = driven.RerankCandidate{ID: c.chunk.ID, Text: c.chunk.Text}
	}

	type rerankOutcome struct {
		ids []string
		err error
	}
	resultCh := make(chan rerankOutcome, 1)
	go func() {
		ids, err := s.reranker.Rerank(rctx, query, rerankCandidates, topN)
		resultCh <- rerankOutcome{ids: ids, err: err}
	}()

	select {
	case <-rctx.Done():
		logger.Warn("Rerank timed out after %s, keeping merged order", timeout)
		return candidates
	case outcome := <-resultCh:
		if outcome.err != nil {
			logger.Warn("Rerank failed, keeping merged order: %v", outcome.err)
			return candidates
		}
		return reorderByIDs(candidates, outcome.ids)
	}
}

// reorderByIDs applies the reranker's id order, then appends every
// candidate the reranker omitted in original order. Unknown and duplicate
// ids are ignored.
func reorderByIDs(candidates []rankedChunk, ids []string) []rankedChunk {
	byID := make(map[string]rankedChunk, len(candidates))
	for _, c := range candidates {
		byID[c.chunk.ID] = c
	}

	used := make(map[string]bool, len(ids))
	out := make([]rankedChunk, 0, len(candidates))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		out = append(out, c)
	}
	for _, c := range candidates {
		if !used[c.chunk.ID] {
			out = append(out, c)
		}
	}
	return out
}

// clampLimits applies defaults and bounds to the candidate and context
// sizes. topN never exceeds topK.
func clampLimits(topK, topN int) (int, int) {
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > topK {
		topN = topK
	}
	return topK, topN
}

// citation renders a human-readable provenance string for a chunk.
func citation(documentID string, chunk driven.StoredChunk) string {
	if h := strings.TrimSpace(chunk.Metadata.Heading); h != "" {
		return fmt.Sprintf("%s, %q, chunk %d", documentID, h, chunk.ChunkIndex)
	}
	return fmt.Sprintf("%s, chunk %d", documentID, chunk.ChunkIndex)
}

package sqlite

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore and
// driven.VectorSearcher over the embeddings table.
type embeddingStore struct {
	store *Store
}

var (
	_ driven.EmbeddingStore = (*embeddingStore)(nil)
	_ driven.VectorSearcher = (*embeddingStore)(nil)
)

// Upsert writes vectors keyed on (index id, chunk id, signature), so a
// resumed run can replay batches without duplicating rows.
func (s *embeddingStore) Upsert(ctx context.Context, rows []driven.EmbeddingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (index_id, chunk_id, embed_signature, chunk_index, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(index_id, chunk_id, embed_signature) DO UPDATE SET
			chunk_index = excluded.chunk_index,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.IndexID, row.ChunkID,
			row.Signature, row.ChunkIndex, float32SliceToBytes(row.Vector)); err != nil {
			return fmt.Errorf("upserting embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteByIndex removes all vectors for an index regardless of signature.
func (s *embeddingStore) DeleteByIndex(ctx context.Context, indexID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE index_id = ?", indexID); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// Search scans the index's vectors and scores them in process. Scores are
// normalised so that higher is better for every metric; L2 distance is
// negated here rather than making callers metric-aware.
func (s *embeddingStore) Search(
	ctx context.Context, indexID, signature string, query []float32, k int, metric domain.Metric,
) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_index, vector FROM embeddings
		WHERE index_id = ? AND embed_signature = ?
	`, indexID, signature)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			chunkID    string
			chunkIndex int
			blob       []byte
		)
		if err := rows.Scan(&chunkID, &chunkIndex, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vector := bytesToFloat32Slice(blob)
		if len(vector) != len(query) {
			continue
		}
		score, err := scoreVector(query, vector, metric)
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{ChunkID: chunkID, ChunkIndex: chunkIndex, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// scoreVector computes the higher-is-better score for one stored vector.
func scoreVector(query, stored []float32, metric domain.Metric) (float64, error) {
	switch metric {
	case domain.MetricCosine, "":
		return cosineSimilarity(query, stored), nil
	case domain.MetricInnerProduct:
		return dotProduct(query, stored), nil
	case domain.MetricL2:
		return -l2Distance(query, stored), nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", metric)
	}
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

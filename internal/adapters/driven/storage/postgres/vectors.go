package postgres

import (
	"context"
	"fmt"

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

	models := make([]embeddingModel, 0, len(rows))
	for _, row := range rows {
		models = append(models, embeddingModel{
			IndexID:        row.IndexID,
			ChunkID:        row.ChunkID,
			EmbedSignature: row.Signature,
			ChunkIndex:     row.ChunkIndex,
			Vector:         row.Vector,
		})
	}

	_, err := s.store.db.NewInsert().Model(&models).
		On("CONFLICT (index_id, chunk_id, embed_signature) DO UPDATE").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("vector = EXCLUDED.vector").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upserting embeddings: %w", err)
	}
	return nil
}

// DeleteByIndex removes all vectors for an index regardless of signature.
func (s *embeddingStore) DeleteByIndex(ctx context.Context, indexID string) error {
	_, err := s.store.db.NewDelete().Model((*embeddingModel)(nil)).
		Where("index_id = ?", indexID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// searchRow carries one scored hit back from the database.
type searchRow struct {
	ChunkID    string  `bun:"chunk_id"`
	ChunkIndex int     `bun:"chunk_index"`
	Score      float64 `bun:"score"`
}

// Search runs similarity search inside Postgres using the pgvector
// operators. Scores are normalised so that higher is better for every
// metric: cosine distance becomes 1 - distance, and inner product and L2
// distances are negated in the projection.
func (s *embeddingStore) Search(
	ctx context.Context, indexID, signature string, query []float32, k int, metric domain.Metric,
) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	q := s.store.db.NewSelect().
		Model((*embeddingModel)(nil)).
		Column("chunk_id", "chunk_index").
		Where("index_id = ?", indexID).
		Where("embed_signature = ?", signature).
		Limit(k)

	switch metric {
	case domain.MetricCosine, "":
		q = q.ColumnExpr("1 - (vector <=> ?) AS score", query).
			OrderExpr("vector <=> ?", query)
	case domain.MetricInnerProduct:
		// <#> is the negative inner product, so it is already a
		// higher-is-better score when ordered ascending.
		q = q.ColumnExpr("-(vector <#> ?) AS score", query).
			OrderExpr("vector <#> ?", query)
	case domain.MetricL2:
		q = q.ColumnExpr("-(vector <-> ?) AS score", query).
			OrderExpr("vector <-> ?", query)
	default:
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}

	var rows []searchRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, driven.VectorHit{
			ChunkID:    row.ChunkID,
			ChunkIndex: row.ChunkIndex,
			Score:      row.Score,
		})
	}
	return hits, nil
}

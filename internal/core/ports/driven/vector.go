package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int

	// Score is the normalised relevance score. Higher is always better:
	// adapters negate L2 distances before returning so the merger's
	// max-score rule is metric-agnostic.
	Score float64
}

// VectorSearcher finds the top-k nearest stored vectors for a query vector,
// scoped to one index and embedding signature.
type VectorSearcher interface {
	// Search returns up to k hits ordered by descending score.
	Search(ctx context.Context, indexID, signature string, query []float32, k int, metric domain.Metric) ([]VectorHit, error)
}

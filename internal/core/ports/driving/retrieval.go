package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// BuildRequest carries the inputs for one retrieval call.
type BuildRequest struct {
	// OwnerID and ProjectID scope the index lookup.
	OwnerID   string
	ProjectID string

	// IndexID is the index to search.
	IndexID string

	// Query is the user's question.
	Query string

	// History is the recent conversation, most recent last.
	History []domain.Turn

	// TopK is how many raw candidates to retrieve per sub-query.
	TopK int

	// TopN is how many chunks the final context may contain.
	TopN int

	// RerankTimeout bounds the optional rerank call. Zero disables
	// reranking for this request.
	RerankTimeout time.Duration
}

// RetrievalService assembles ranked context for a question.
type RetrievalService interface {
	// BuildContext runs the full retrieval pipeline: query expansion,
	// per-sub-query vector search, merge, hydration and optional rerank.
	BuildContext(ctx context.Context, req BuildRequest) (*domain.ContextPack, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// RewriteResult is the structured output of a query rewrite call.
type RewriteResult struct {
	// Queries are standalone, pronoun-resolved search queries.
	Queries []string

	// Strategy optionally names the rewrite approach the model chose.
	Strategy string

	// TokensUsed is the total token usage reported by the provider.
	TokensUsed int
}

// QueryRewriter expands one user query into multiple diverse search queries
// using a language model. Adapters must parse the model output defensively
// and return an error on malformed responses; the caller falls back to the
// original query.
type QueryRewriter interface {
	// Rewrite produces alternate phrasings of the query, using the supplied
	// conversation history to resolve pronouns and ellipsis.
	Rewrite(ctx context.Context, query string, history []domain.Turn) (*RewriteResult, error)

	// Close releases resources.
	Close() error
}

// RerankCandidate is one chunk offered to the reranker.
type RerankCandidate struct {
	// ID identifies the chunk.
	ID string

	// Text is the chunk content the reranker judges relevance on.
	Text string
}

// Reranker reorders retrieval candidates by relevance to the original
// query. It is optional and allowed to fail: callers bound it with a
// timeout and keep the pre-rerank order on any error. A reranker may return
// only a subset of the candidate ids.
type Reranker interface {
	// Rerank returns candidate ids in relevance order, best first.
	Rerank(ctx context.Context, query string, candidates []RerankCandidate, topN int) ([]string, error)

	// Close releases resources.
	Close() error
}

// AnswerGenerator produces a natural-language answer grounded in retrieved
// context. Only the contract is part of the core; the provider behind it is
// interchangeable.
type AnswerGenerator interface {
	// Generate completes the given prompt.
	Generate(ctx context.Context, system, prompt string) (string, error)

	// Close releases resources.
	Close() error
}

package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/logger"
)

const (
	// maxSubQueries caps how many sub-queries one question expands into.
	maxSubQueries = 4

	// maxHistoryTurns and maxHistoryChars bound how much conversation is
	// handed to the rewriter.
	maxHistoryTurns = 6
	maxHistoryChars = 2000
)

// queryExpander turns one user question into a small set of standalone
// search queries. Expansion is best-effort: any rewriter failure degrades
// to searching with the original query alone.
type queryExpander struct {
	rewriter driven.QueryRewriter
}

func newQueryExpander(rewriter driven.QueryRewriter) *queryExpander {
	return &queryExpander{rewriter: rewriter}
}

// Expand returns between one and maxSubQueries queries. The original query
// is the guaranteed fallback; it is never lost to a misbehaving model.
func (e *queryExpander) Expand(ctx context.Context, query string, history []domain.Turn) []string {
	if e.rewriter == nil {
		return []string{query}
	}

	result, err := e.rewriter.Rewrite(ctx, query, truncateHistory(history))
	if err != nil {
		logger.Warn("Query rewrite failed, using original query: %v", err)
		return []string{query}
	}

	queries := dedupeQueries(result.Queries)
	if len(queries) == 0 {
		logger.Debug("Rewriter returned no usable queries, using original")
		return []string{query}
	}
	if len(queries) > maxSubQueries {
		queries = queries[:maxSubQueries]
	}

	logger.Debug("Expanded query into %d sub-queries (strategy: %s)", len(queries), result.Strategy)
	return queries
}

// truncateHistory keeps the most recent turns within the turn and character
// budgets, dropping from the oldest end.
func truncateHistory(history []domain.Turn) []domain.Turn {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += len(history[i].Content)
		if total > maxHistoryChars {
			break
		}
		start = i
	}
	return history[start:]
}

// dedupeQueries trims, drops empties and removes case-insensitive
// duplicates while preserving order.
func dedupeQueries(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

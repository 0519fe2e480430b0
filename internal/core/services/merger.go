package services

import (
	"sort"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// MergeResult carries the deduplicated ranking plus bookkeeping used for
// hydration and logging.
type MergeResult struct {
	// Matches is the merged ranking, best first, truncated to the limit.
	Matches []domain.ChunkMatch

	// TotalCandidates counts hits across all sub-queries before dedup.
	TotalCandidates int

	// UniqueCandidates counts distinct chunks before truncation.
	UniqueCandidates int
}

// mergeMatches combines per-sub-query result lists into one ranking. A chunk
// found by several sub-queries keeps its best score rather than a sum, so
// one broad sub-query cannot crowd out precise hits from the others. Ties
// preserve first-encounter order. The result is truncated to limit when
// limit is positive.
func mergeMatches(perQuery [][]domain.ChunkMatch, limit int) MergeResult {
	type entry struct {
		match domain.ChunkMatch
		order int
	}

	byID := make(map[string]*entry)
	var ids []string
	total := 0

	for qi, matches := range perQuery {
		for _, m := range matches {
			total++
			e, seen := byID[m.ChunkID]
			if !seen {
				merged := m
				merged.MatchedBy = []int{qi}
				byID[m.ChunkID] = &entry{match: merged, order: len(ids)}
				ids = append(ids, m.ChunkID)
				continue
			}
			if m.Score > e.match.Score {
				e.match.Score = m.Score
			}
			e.match.MatchedBy = appendQueryIndex(e.match.MatchedBy, qi)
		}
	}

	merged := make([]domain.ChunkMatch, 0, len(ids))
	for _, id := range ids {
		merged = append(merged, byID[id].match)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	unique := len(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return MergeResult{
		Matches:          merged,
		TotalCandidates:  total,
		UniqueCandidates: unique,
	}
}

func appendQueryIndex(indices []int, qi int) []int {
	for _, existing := range indices {
		if existing == qi {
			return indices
		}
	}
	return append(indices, qi)
}

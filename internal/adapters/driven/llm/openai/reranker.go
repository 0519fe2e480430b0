package openai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

const rerankSystemPrompt = `You rank text passages by how well they answer a question.
Respond with JSON only, in this exact shape, best passage first:
{"ranking": ["passage-id", "passage-id"]}
Include only ids from the given list. You may omit irrelevant passages.`

// rerankSnippetChars bounds how much of each passage is shown to the model.
const rerankSnippetChars = 600

// Reranker reorders retrieval candidates by model-judged relevance.
type Reranker struct {
	client *Client
}

// NewReranker creates a reranker on the given client.
func NewReranker(client *Client) *Reranker {
	return &Reranker{client: client}
}

// Rerank returns candidate ids in relevance order. Ids the model invents
// are dropped; malformed output is an error and the caller keeps its
// original order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []driven.RerankCandidate, topN int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	reply, _, err := r.client.complete(ctx, rerankSystemPrompt, rerankUserPrompt(query, candidates, topN), 300, 0)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	payload, err := extractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	ids, err := parseStringList(payload, "ranking")
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rerank: model returned no known ids")
	}
	return out, nil
}

// Close releases resources.
func (r *Reranker) Close() error {
	return r.client.Close()
}

// rerankUserPrompt renders the question and the candidate passages.
func rerankUserPrompt(query string, candidates []driven.RerankCandidate, topN int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nRank the best %d passages.\n\n", query, topN)
	for _, c := range candidates {
		text := c.Text
		if len(text) > rerankSnippetChars {
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := rerankSnippetChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "…"
		}
		fmt.Fprintf(&sb, "id: %s\n%s\n\n", c.ID, text)
	}
	return sb.String()
}

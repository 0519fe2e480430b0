package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Rewriter implements the interface.
var _ driven.QueryRewriter = (*Rewriter)(nil)

const rewriteSystemPrompt = `You rewrite a user's question into search queries for a document index.
Produce 2 to 4 standalone queries that cover different phrasings and
aspects of the question. Resolve pronouns and references using the
conversation. Respond with JSON only, in this exact shape:
{"queries": ["...", "..."], "strategy": "short label"}`

// Rewriter expands a question into alternate search queries.
type Rewriter struct {
	client *Client
}

// NewRewriter creates a query rewriter on the given client.
func NewRewriter(client *Client) *Rewriter {
	return &Rewriter{client: client}
}

// Rewrite asks the model for alternate phrasings. Malformed model output is
// an error; the caller decides how to degrade.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []domain.Turn) (*driven.RewriteResult, error) {
	reply, tokens, err := r.client.complete(ctx, rewriteSystemPrompt, rewriteUserPrompt(query, history), 300, 0.3)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	payload, err := extractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	var parsed struct {
		Queries  []string `json:"queries"`
		Strategy string   `json:"strategy"`
	}
	if strings.HasPrefix(payload, "[") {
		if parsed.Queries, err = parseStringList(payload, "queries"); err != nil {
			return nil, fmt.Errorf("rewrite: %w", err)
		}
	} else if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("rewrite: parse reply: %w", err)
	}
	if len(parsed.Queries) == 0 {
		return nil, fmt.Errorf("rewrite: model returned no queries")
	}

	return &driven.RewriteResult{
		Queries:    parsed.Queries,
		Strategy:   parsed.Strategy,
		TokensUsed: tokens,
	}, nil
}

// Close releases resources.
func (r *Rewriter) Close() error {
	return r.client.Close()
}

// rewriteUserPrompt renders the question and recent conversation.
func rewriteUserPrompt(query string, history []domain.Turn) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range history {
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

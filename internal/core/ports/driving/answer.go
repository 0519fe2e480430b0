package driving

import (
	"context"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

// Answer is a generated response grounded in retrieved context.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"text"`

	// Pack is the context the answer was grounded in, kept for citation
	// display.
	Pack *domain.ContextPack `json:"pack"`
}

// AnswerService answers questions over an index by retrieving context and
// generating a grounded response.
type AnswerService interface {
	// Ask retrieves context for the question and generates an answer.
	Ask(ctx context.Context, req BuildRequest) (*Answer, error)
}

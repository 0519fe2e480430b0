package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// answerSystemPrompt constrains the model to the retrieved context.
const answerSystemPrompt = `You are a careful assistant answering questions about a document collection.
Answer only from the provided context passages. When the context does not
contain the answer, say so plainly instead of guessing. Cite passages by
their bracketed number, like [2].`

// AnswerService retrieves context and generates a grounded answer.
type AnswerService struct {
	retrieval driving.RetrievalService
	generator driven.AnswerGenerator
}

// NewAnswerService creates a new answer service.
func NewAnswerService(retrieval driving.RetrievalService, generator driven.AnswerGenerator) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		generator: generator,
	}
}

// Ask retrieves context for the question and generates an answer from it.
func (s *AnswerService) Ask(ctx context.Context, req driving.BuildRequest) (*driving.Answer, error) {
	if s.generator == nil {
		return nil, domain.ErrGeneratorUnavailable
	}

	pack, err := s.retrieval.BuildContext(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pack.Chunks) == 0 {
		return &driving.Answer{
			Text: "No relevant passages were found for this question.",
			Pack: pack,
		}, nil
	}

	prompt := buildAnswerPrompt(pack)
	logger.Debug("Generating answer from %d context chunks", len(pack.Chunks))

	text, err := s.generator.Generate(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &driving.Answer{
		Text: strings.TrimSpace(text),
		Pack: pack,
	}, nil
}

// buildAnswerPrompt renders the context pack into a numbered prompt the
// system prompt's citation instruction can refer to.
func buildAnswerPrompt(pack *domain.ContextPack) string {
	var sb strings.Builder
	sb.WriteString("Context passages:\n\n")
	for i, c := range pack.Chunks {
		sb.WriteString(fmt.Sprintf("[%d] (%s)\n%s\n\n", i+1, c.Citation, c.Text))
	}
	sb.WriteString("Question: ")
	sb.WriteString(pack.Query)
	sb.WriteString("\n")
	return sb.String()
}

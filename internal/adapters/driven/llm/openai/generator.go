package openai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.AnswerGenerator = (*Generator)(nil)

// generatorMaxTokens bounds answer length.
const generatorMaxTokens = 1024

// Generator produces grounded answers through chat completions.
type Generator struct {
	client *Client
}

// NewGenerator creates an answer generator on the given client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate completes the prompt under the given system instruction.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	reply, _, err := g.client.complete(ctx, system, prompt, generatorMaxTokens, 0.2)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return reply, nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return g.client.Close()
}

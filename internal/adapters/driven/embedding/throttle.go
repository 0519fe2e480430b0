// Package embedding provides decorators shared by the embedding adapters.
package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docquery/internal/core/ports/driven"
)

// Ensure Throttled implements the interface.
var _ driven.EmbeddingService = (*Throttled)(nil)

// Throttled wraps an embedding service with a request rate limit. Hosted
// embedding APIs enforce per-minute quotas; the limiter waits instead of
// letting the provider reject the batch mid-run.
type Throttled struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
}

// NewThrottled wraps inner so that at most requestsPerSecond calls reach
// the provider, with bursts of up to burst requests. A non-positive rate
// returns inner unchanged.
func NewThrottled(inner driven.EmbeddingService, requestsPerSecond float64, burst int) driven.EmbeddingService {
	if requestsPerSecond <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Embed waits for limiter capacity, then delegates.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Embed(ctx, text)
}

// EmbedBatch waits for limiter capacity, then delegates. One batch counts
// as one request, matching how providers meter the endpoint.
func (t *Throttled) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the embedding vector size.
func (t *Throttled) Dimensions() int {
	return t.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (t *Throttled) ModelName() string {
	return t.inner.ModelName()
}

// Ping delegates without consuming limiter capacity.
func (t *Throttled) Ping(ctx context.Context) error {
	return t.inner.Ping(ctx)
}

// Close releases resources.
func (t *Throttled) Close() error {
	return t.inner.Close()
}

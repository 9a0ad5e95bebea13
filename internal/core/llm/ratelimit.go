package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/chunkenizer/internal/core"
)

var _ core.EmbeddingProvider = (*RateLimitedEmbedder)(nil)

// RateLimitedEmbedder spaces out calls to a provider. One call, whatever its
// batch size, takes one token.
type RateLimitedEmbedder struct {
	next    core.EmbeddingProvider
	limiter *rate.Limiter
}

// WithRateLimit wraps p when rps is positive and returns p unchanged
// otherwise.
func WithRateLimit(p core.EmbeddingProvider, rps float64, burst int) core.EmbeddingProvider {
	if rps <= 0 {
		return p
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitedEmbedder) Dimension() int    { return r.next.Dimension() }
func (r *RateLimitedEmbedder) ModelName() string { return r.next.ModelName() }

func (r *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.EmbedTexts(ctx, texts)
}

package generator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a remote backend so a burst of retries
// does not get the API key throttled.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited wraps g so it is called at most perMinute times a minute.
func NewRateLimited(g Generator, perMinute int) *RateLimited {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimited{
		next:    g,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return r.next.Generate(ctx, prompt, maxTokens, temperature)
}

package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Fallback wraps a primary generator with a secondary one. After
// maxFailures consecutive primary failures it switches to the secondary for
// the rest of the session.
type Fallback struct {
	primary       Generator
	fallback      Generator
	failures      int
	maxFailures   int
	usingFallback bool
	mu            sync.Mutex
}

// NewFallback returns a failover chain. maxFailures below one is treated as
// one.
func NewFallback(primary, fallback Generator, maxFailures int) *Fallback {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Fallback{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
	}
}

// Generate uses the active generator. The lock is not held across the
// backend call so a slow primary does not serialize callers.
func (f *Fallback) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.mu.Lock()
	using := f.usingFallback
	f.mu.Unlock()

	if using {
		return f.fallback.Generate(ctx, prompt, maxTokens, temperature)
	}

	out, err := f.primary.Generate(ctx, prompt, maxTokens, temperature)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			log.Info("primary generator recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return out, nil
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	switchNow := failures >= f.maxFailures && !f.usingFallback
	if switchNow {
		f.usingFallback = true
	}
	f.mu.Unlock()

	log.Warn("primary generator failed", "attempt", failures, "max", f.maxFailures, "err", err)
	if !switchNow {
		return "", err
	}

	log.Warn("switching to fallback generator", "failures", failures)
	out, ferr := f.fallback.Generate(ctx, prompt, maxTokens, temperature)
	if ferr != nil {
		return "", fmt.Errorf("both generators failed: %w", ferr)
	}
	return out, nil
}

// UsingFallback reports whether the secondary generator is active.
func (f *Fallback) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Reset switches back to the primary generator.
func (f *Fallback) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = 0
	f.usingFallback = false
}

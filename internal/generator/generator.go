// Package generator provides text generation backends for rooms and NPC
// dialogue, plus decorators for rate limiting, completion logging and
// failover.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a backend answers with no text.
	ErrEmptyResponse = errors.New("generator returned an empty response")

	// ErrNotConfigured is returned when a backend is missing credentials.
	ErrNotConfigured = errors.New("generator is not configured")

	// ErrUnknownBackend is returned for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown generator backend")
)

// Generator produces text for a prompt. Implementations carry no retry
// policy; callers own retries and fallbacks.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f(ctx, prompt, maxTokens, temperature)
}

// Backend names accepted by New.
const (
	BackendOpenAI   = "openai"
	BackendLocal    = "local"
	BackendGemini   = "gemini"
	BackendScripted = "scripted"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	OpenAIKey   string
	OpenAIModel string

	LocalURL   string
	LocalModel string

	GeminiKey   string
	GeminiModel string

	// RequestsPerMinute limits calls to remote backends. Zero disables it.
	RequestsPerMinute int
}

// New returns the backend named in cfg. Remote backends are wrapped with a
// rate limiter when configured.
func New(ctx context.Context, cfg Config) (Generator, error) {
	var (
		g   Generator
		err error
	)

	switch strings.ToLower(cfg.Backend) {
	case BackendOpenAI:
		g, err = NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)
	case BackendLocal:
		g, err = NewLocal(cfg.LocalURL, cfg.LocalModel)
	case BackendGemini:
		g, err = NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case BackendScripted, "":
		return NewScripted(OfflineLines...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		g = NewRateLimited(g, cfg.RequestsPerMinute)
	}
	return g, nil
}

type contextKey string

const (
	operationKey contextKey = "operation"
	sessionIDKey contextKey = "session_id"
)

// WithOperation tags ctx with the kind of generation, e.g. "room" or "talk".
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// Operation returns the operation tag of ctx.
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// WithSessionID tags ctx with the game session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id of ctx.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

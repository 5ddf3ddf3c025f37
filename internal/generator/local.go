package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/observability"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLocalURL is the llama.cpp server's OpenAI-compatible endpoint.
const DefaultLocalURL = "http://127.0.0.1:8080/v1"

// Local sends raw prompts to a local OpenAI-compatible completion server such
// as llama.cpp, with the stop token enforced server-side.
type Local struct {
	client *goopenai.Client
	model  string
	tracer trace.Tracer
}

// NewLocal returns a backend for the server at baseURL.
func NewLocal(baseURL, model string) (*Local, error) {
	if baseURL == "" {
		baseURL = DefaultLocalURL
	}
	if model == "" {
		model = "local"
	}

	config := goopenai.DefaultConfig("no-key")
	config.BaseURL = strings.TrimSuffix(baseURL, "/")

	return &Local{
		client: goopenai.NewClientWithConfig(config),
		model:  model,
		tracer: otel.Tracer("maze/generator"),
	}, nil
}

// Generate requests a raw completion of the prompt.
func (l *Local) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, span := l.tracer.Start(ctx, "generator.local",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(observability.GenAIAttributes("llama.cpp", l.model, maxTokens, temperature)...),
	)
	defer span.End()

	start := time.Now()
	resp, err := l.client.CreateCompletion(ctx, goopenai.CompletionRequest{
		Model:       l.model,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
		Stop:        []string{StopToken, "\n\n", "### USER ###"},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", fmt.Errorf("local completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Text) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug("local completion", "model", l.model, "duration", time.Since(start))
	return resp.Choices[0].Text, nil
}

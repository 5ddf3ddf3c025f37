package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mazeofme/maze/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	tracer trace.Tracer
}

// NewGemini returns a Gemini backend. The API key is required.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: missing Gemini API key", ErrNotConfigured)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, tracer: otel.Tracer("maze/generator")}, nil
}

// Generate sends the user message with the system message as instruction.
func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, span := g.tracer.Start(ctx, "generator.gemini",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(observability.GenAIAttributes("gemini", g.model, maxTokens, temperature)...),
	)
	defer span.End()

	p := ParsePrompt(prompt)

	m := g.client.GenerativeModel(g.model)
	m.SetMaxOutputTokens(int32(maxTokens)) //nolint:gosec
	m.SetTemperature(float32(temperature))
	m.StopSequences = []string{StopToken}
	if p.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		break
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Close releases the client connection.
func (g *Gemini) Close() error {
	return g.client.Close()
}

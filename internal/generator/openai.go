package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/observability"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates text with the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	tracer trace.Tracer
}

// NewOpenAI returns an OpenAI backend. The API key is required.
func NewOpenAI(apiKey, model string, opts ...option.RequestOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrNotConfigured)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAI{
		client: &client,
		model:  model,
		tracer: otel.Tracer("maze/generator"),
	}, nil
}

// Generate sends the prompt as a system/user message pair.
func (o *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	spanName := "generator.openai"
	if op := Operation(ctx); op != "" {
		spanName += "." + op
	}
	ctx, span := o.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(observability.GenAIAttributes("openai", o.model, maxTokens, temperature)...),
	)
	defer span.End()

	if sid := SessionID(ctx); sid != "" {
		span.SetAttributes(attribute.String("session.id", sid))
	}

	p := ParsePrompt(prompt)
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(p.User))

	req := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(o.model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(temperature),
		Stop: openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(StopToken),
		},
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
		attribute.Int64("response_time_ms", time.Since(start).Milliseconds()),
	)
	log.Debug("openai completion", "model", o.model, "op", Operation(ctx), "duration", time.Since(start), "chars", len(content))

	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

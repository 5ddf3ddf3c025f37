package observability

import (
	"context"
	"testing"
)

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp.Enabled() {
		t.Error("expected disabled provider")
	}

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MAZE_OTEL_ENABLED", "true")
	t.Setenv("MAZE_OTEL_HEADERS", "Authorization:Basic abc")

	cfg, err := LoadConfigFromEnv("1.2.3")
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if !cfg.Enabled {
		t.Error("expected tracing enabled")
	}
	if cfg.Headers["Authorization"] != "Basic abc" {
		t.Errorf("unexpected headers %v", cfg.Headers)
	}
	if cfg.Endpoint == "" || cfg.Environment != "development" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected version %q", cfg.ServiceVersion)
	}
}

func TestGenAIAttributes(t *testing.T) {
	attrs := GenAIAttributes("openai", "gpt", 60, 0.8)
	if len(attrs) != 5 {
		t.Errorf("expected 5 attributes, got %d", len(attrs))
	}

	attrs = GenAIAttributes("local", "phi", 0, -1)
	if len(attrs) != 3 {
		t.Errorf("expected 3 attributes without limits, got %d", len(attrs))
	}
}

package generator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPromptRoundTrip(t *testing.T) {
	p := Prompt{System: "You are The Whisperer.", User: "Greet the player. Use {name}."}
	got := ParsePrompt(p.String())
	if got != p {
		t.Errorf("ParsePrompt(String()) = %+v, want %+v", got, p)
	}

	plain := ParsePrompt("just a question")
	if plain.System != "" || plain.User != "just a question" {
		t.Errorf("unexpected headerless parse %+v", plain)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"stop token", "Hello {name}. <END> trailing junk", "Hello {name}."},
		{"first line", "\n\nFirst line\nSecond line", "First line"},
		{"speaker prefix", "Assistant: \"Welcome back, {name}.\"", "Welcome back, {name}."},
		{"npc prefix", "NPC: You again?", "You again?"},
		{"markdown", "**Hush**, {contact} is *listening*.", "Hush, {contact} is listening."},
		{"assistant header", "### ASSISTANT ###\nThe door knows {event}.", "The door knows {event}."},
		{"empty", "   <END>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.raw); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestScriptedPrefersOfferedTokens(t *testing.T) {
	s := NewScripted("Hello {name}.", "Think of {contact}.", "No token here.")

	out, err := s.Generate(context.Background(), "Use exactly one of {contact}", 60, 0.8)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if Clean(out) != "Think of {contact}." {
		t.Errorf("expected contact line, got %q", out)
	}

	// Cycles onward from the last pick.
	out, _ = s.Generate(context.Background(), "Use exactly one of {contact}", 60, 0.8)
	if Clean(out) != "No token here." {
		t.Errorf("expected tokenless line next, got %q", out)
	}
	if s.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", s.Calls())
	}
}

func TestScriptedEmpty(t *testing.T) {
	s := NewScripted()
	out, err := s.Generate(context.Background(), "anything", 10, 0)
	if err != nil || out != "" {
		t.Errorf("expected empty answer, got %q, %v", out, err)
	}
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, Config{})
	if err != nil {
		t.Fatalf("New(scripted): %v", err)
	}
	if _, ok := g.(*Scripted); !ok {
		t.Errorf("expected scripted default, got %T", g)
	}

	if _, err := New(ctx, Config{Backend: "telepathy"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
	if _, err := New(ctx, Config{Backend: BackendOpenAI}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for keyless openai, got %v", err)
	}
	if _, err := New(ctx, Config{Backend: BackendGemini}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for keyless gemini, got %v", err)
	}

	g, err = New(ctx, Config{Backend: BackendLocal, RequestsPerMinute: 30})
	if err != nil {
		t.Fatalf("New(local): %v", err)
	}
	if _, ok := g.(*RateLimited); !ok {
		t.Errorf("expected rate limited local backend, got %T", g)
	}
}

func TestContextTags(t *testing.T) {
	ctx := WithSessionID(WithOperation(context.Background(), "talk"), "abc")
	if Operation(ctx) != "talk" || SessionID(ctx) != "abc" {
		t.Errorf("unexpected tags %q %q", Operation(ctx), SessionID(ctx))
	}
	if Operation(context.Background()) != "" {
		t.Error("expected empty operation")
	}
}

func TestRateLimitedCancelled(t *testing.T) {
	calls := 0
	g := NewRateLimited(Func(func(context.Context, string, int, float64) (string, error) {
		calls++
		return "ok", nil
	}), 1)

	if _, err := g.Generate(context.Background(), "p", 1, 0); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(ctx, "p", 1, 0); err == nil {
		t.Error("expected second call to hit the limiter deadline")
	}
	if calls != 1 {
		t.Errorf("expected 1 backend call, got %d", calls)
	}
}

func TestFallbackSwitches(t *testing.T) {
	failing := Func(func(context.Context, string, int, float64) (string, error) {
		return "", errors.New("primary down")
	})
	backup := NewScripted("backup line")

	f := NewFallback(failing, backup, 2)

	if _, err := f.Generate(context.Background(), "p", 1, 0); err == nil {
		t.Error("expected first failure to surface")
	}
	if f.UsingFallback() {
		t.Error("switched too early")
	}

	out, err := f.Generate(context.Background(), "p", 1, 0)
	if err != nil {
		t.Fatalf("expected fallback answer, got %v", err)
	}
	if !strings.HasPrefix(out, "backup line") {
		t.Errorf("unexpected fallback output %q", out)
	}
	if !f.UsingFallback() {
		t.Error("expected fallback to be active")
	}

	f.Reset()
	if f.UsingFallback() {
		t.Error("expected reset to restore primary")
	}
}

func TestFallbackRecovers(t *testing.T) {
	fail := true
	primary := Func(func(context.Context, string, int, float64) (string, error) {
		if fail {
			return "", errors.New("flaky")
		}
		return "primary", nil
	})
	f := NewFallback(primary, NewScripted("backup"), 3)

	_, _ = f.Generate(context.Background(), "p", 1, 0)
	fail = false
	out, err := f.Generate(context.Background(), "p", 1, 0)
	if err != nil || out != "primary" {
		t.Errorf("expected primary to recover, got %q, %v", out, err)
	}
	if f.UsingFallback() {
		t.Error("should not have switched")
	}
}

func TestLoggedRecordsCompletions(t *testing.T) {
	store, err := OpenCompletionStore(filepath.Join(t.TempDir(), "completions.db"))
	if err != nil {
		t.Fatalf("OpenCompletionStore: %v", err)
	}
	defer store.Close() //nolint:errcheck

	calls := 0
	g := NewLogged(Func(func(context.Context, string, int, float64) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return "Hello {name}.", nil
	}), store)

	ctx := WithSessionID(WithOperation(context.Background(), "talk"), "session-1")
	if _, err := g.Generate(ctx, "prompt one", 60, 0.8); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := g.Generate(ctx, "prompt two", 60, 0.8); err == nil {
		t.Fatal("expected error to pass through")
	}
	_, _ = g.Generate(WithSessionID(context.Background(), "other"), "prompt three", 10, 0)

	got, err := store.Recent(context.Background(), "session-1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 completions for session, got %d", len(got))
	}
	if got[0].Prompt != "prompt two" || got[0].Metadata.Error == nil {
		t.Errorf("expected newest failed completion first, got %+v", got[0])
	}
	if got[1].Response != "Hello {name}." || got[1].Operation != "talk" {
		t.Errorf("unexpected first completion %+v", got[1])
	}

	all, err := store.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 completions overall, got %d", len(all))
	}
}

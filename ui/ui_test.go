package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mazeofme/maze/internal/game"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/narrative"
	"github.com/mazeofme/maze/internal/tracks"
)

type fakeGame struct {
	mu        sync.Mutex
	choices   []string
	said      []string
	inspected []string
	items     []string
	held      []string
	liked     []bool
}

func (f *fakeGame) Advance(_ context.Context, choice string) game.Scene {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices = append(f.choices, choice)
	return game.Scene{
		Number: len(f.choices),
		Room: &narrative.Room{
			Number:      len(f.choices),
			Description: "A quiet study with a worn armchair.",
			Theme:       narrative.Happy,
			Furniture:   "armchair",
			Items:       f.items,
		},
		Line:     narrative.DialogueLine{Text: "Welcome back, Ada."},
		Track:    tracks.Track{Title: "Song", Artist: "Band"},
		HasTrack: true,
		Playing:  true,
	}
}

func (f *fakeGame) Talk(_ context.Context, utterance string) (narrative.DialogueLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, utterance)
	return narrative.DialogueLine{Text: "You asked about " + utterance + "."}, nil
}

func (f *fakeGame) Inspect(_ context.Context, query string) (narrative.DialogueLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspected = append(f.inspected, query)
	return narrative.DialogueLine{Text: "It is just an armchair."}, nil
}

func (f *fakeGame) Take(query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if strings.Contains(it, query) {
			f.items = append(f.items[:i:i], f.items[i+1:]...)
			f.held = append(f.held, it)
			return it, nil
		}
	}
	return "", game.ErrNoItem
}

func (f *fakeGame) Feedback(liked bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked = append(f.liked, liked)
	if liked {
		return narrative.Happy, nil
	}
	return narrative.Sad, nil
}

func (f *fakeGame) Items() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.items...)
}

func (f *fakeGame) Inventory() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.held...)
}

func (f *fakeGame) RecentTalk(int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.said {
		out = append(out, "You: "+s)
	}
	return out
}

func (f *fakeGame) MusicStats() (music.Stats, bool) {
	return music.Stats{Catalog: 4, Buffered: 1, Done: 2}, true
}

func testModel(t *testing.T, g *fakeGame) model {
	t.Helper()
	m := newModel(context.Background(), Config{GlamourStyle: "dark", LogLines: 10}, g)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(model)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds every message it yields back into the model,
// skipping timers.
func run(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	for _, msg := range collect(cmd) {
		updated, _ := m.Update(msg)
		m = updated.(model)
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case sceneMsg, lineMsg, takenMsg, errMsg, helpRenderedMsg:
		return []tea.Msg{msg}
	default:
		return nil
	}
}

func press(t *testing.T, m model, keys ...string) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var updated tea.Model
		updated, cmd = m.Update(keyMsg(k))
		m = updated.(model)
	}
	return m, cmd
}

func enterRoom(t *testing.T, g *fakeGame) model {
	t.Helper()
	m := testModel(t, g)
	return run(t, m, advance(context.Background(), g, "start"))
}

func TestWalkKeys(t *testing.T) {
	tests := []struct {
		key    string
		choice string
	}{
		{"left", "1"},
		{"1", "1"},
		{"right", "2"},
		{"2", "2"},
		{"up", "3"},
		{"3", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			g := &fakeGame{}
			m := enterRoom(t, g)

			m, cmd := press(t, m, tt.key)
			if m.state != stateThinking {
				t.Fatalf("expected thinking state, got %s", m.state)
			}
			m = run(t, m, cmd)
			if m.state != stateBrowse {
				t.Errorf("expected browse state, got %s", m.state)
			}
			if got := g.choices[len(g.choices)-1]; got != tt.choice {
				t.Errorf("expected choice %q, got %q", tt.choice, got)
			}
			if m.scene.Number != 2 {
				t.Errorf("expected room 2, got %d", m.scene.Number)
			}
		})
	}
}

func TestKeysIgnoredWhileThinking(t *testing.T) {
	g := &fakeGame{}
	m := testModel(t, g)

	m, cmd := press(t, m, "1", "t", "g")
	if cmd != nil {
		t.Error("expected no command while waiting")
	}
	if m.state != stateThinking || len(g.choices) != 0 {
		t.Errorf("unexpected state %s with choices %v", m.state, g.choices)
	}
}

func TestTalkInput(t *testing.T) {
	g := &fakeGame{}
	m := enterRoom(t, g)

	m, _ = press(t, m, "t")
	if m.state != stateInput || m.mode != inputTalk {
		t.Fatalf("expected talk input, got %s", m.state)
	}
	m, _ = press(t, m, "h", "i")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	if len(g.said) != 1 || g.said[0] != "hi" {
		t.Fatalf("expected the utterance to reach the game, got %v", g.said)
	}
	if m.line.Text != "You asked about hi." {
		t.Errorf("unexpected line %q", m.line.Text)
	}
	if !strings.Contains(m.viewport.View(), "You asked about hi.") {
		t.Error("expected the reply in the scene")
	}
}

func TestInputCancel(t *testing.T) {
	g := &fakeGame{}
	m := enterRoom(t, g)

	m, _ = press(t, m, "i", "x", "esc")
	if m.state != stateBrowse || m.input.Value() != "" {
		t.Errorf("expected a cleared input, got %s %q", m.state, m.input.Value())
	}
	if len(g.inspected) != 0 {
		t.Error("cancelled input should not inspect")
	}
}

func TestTake(t *testing.T) {
	g := &fakeGame{items: []string{"brass coin"}}
	m := enterRoom(t, g)

	m, _ = press(t, m, "g", "c", "o", "i", "n")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	if len(m.items) != 0 || m.statusMessage != "Took the brass coin" {
		t.Errorf("unexpected items %v, status %q", m.items, m.statusMessage)
	}

	m, cmd = press(t, m, "g")
	if m.state != stateBrowse || !m.statusIsError || cmd == nil {
		t.Errorf("expected an error status with nothing to take, got %s %q", m.state, m.statusMessage)
	}
}

func TestTakeMissing(t *testing.T) {
	g := &fakeGame{items: []string{"brass coin"}}
	m := enterRoom(t, g)

	m, _ = press(t, m, "g", "z")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)
	if !m.statusIsError || !strings.Contains(m.statusMessage, game.ErrNoItem.Error()) {
		t.Errorf("expected ErrNoItem in the status, got %q", m.statusMessage)
	}
	if m.state != stateBrowse {
		t.Errorf("expected browse state, got %s", m.state)
	}
}

func TestFeedbackKeys(t *testing.T) {
	g := &fakeGame{}
	m := enterRoom(t, g)

	m, _ = press(t, m, "+")
	if m.statusMessage != "Noted, more happy rooms" {
		t.Errorf("unexpected status %q", m.statusMessage)
	}
	m, _ = press(t, m, "-")
	if m.statusMessage != "Noted, steering toward sad rooms" {
		t.Errorf("unexpected status %q", m.statusMessage)
	}
	if len(g.liked) != 2 || !g.liked[0] || g.liked[1] {
		t.Errorf("unexpected feedback %v", g.liked)
	}
}

func TestLogToggle(t *testing.T) {
	g := &fakeGame{said: []string{"where am I?"}}
	m := enterRoom(t, g)

	m, _ = press(t, m, "l")
	if !m.showLog || !strings.Contains(m.viewport.View(), "You: where am I?") {
		t.Error("expected the conversation log")
	}
	m, _ = press(t, m, "l")
	if m.showLog || !strings.Contains(m.viewport.View(), "quiet study") {
		t.Error("expected the scene again")
	}
}

func TestYank(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { copyToClipboard = orig })

	m := enterRoom(t, &fakeGame{})
	m, _ = press(t, m, "y")
	if !strings.Contains(copied, "A quiet study") || !strings.Contains(copied, "Welcome back, Ada.") {
		t.Errorf("unexpected clipboard %q", copied)
	}
	if m.statusMessage != "Copied the scene" {
		t.Errorf("unexpected status %q", m.statusMessage)
	}
}

func TestHelpToggle(t *testing.T) {
	m := enterRoom(t, &fakeGame{})

	m, cmd := press(t, m, "?")
	m = run(t, m, cmd)
	if !strings.Contains(m.helpContent, "take the left path") {
		t.Fatal("expected the help table")
	}
	full := m.viewport.Height

	m, _ = press(t, m, "?")
	if m.helpContent != "" || m.viewport.Height <= full {
		t.Error("closing help should give the viewport its space back")
	}
}

func TestView(t *testing.T) {
	m := enterRoom(t, &fakeGame{})
	v := m.View()

	for _, want := range []string{"Room 1", "Happy", "Band - Song", "Welcome back, Ada.", "1 buffered"} {
		if !strings.Contains(v, want) {
			t.Errorf("expected %q in the view", want)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	m := enterRoom(t, &fakeGame{})
	updated, cmd := m.Update(errMsg{errors.New("nothing to inspect")})
	m = updated.(model)
	if !m.statusIsError || m.statusMessage != "nothing to inspect" || cmd == nil {
		t.Errorf("unexpected status %q", m.statusMessage)
	}

	updated, _ = m.Update(statusMessageTimeoutMsg{})
	if updated.(model).statusMessage != "" {
		t.Error("expected the status to clear")
	}
}

package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mazeofme/maze/internal/audio"
	"github.com/mazeofme/maze/internal/cache"
	"github.com/mazeofme/maze/internal/generator"
	"github.com/mazeofme/maze/internal/journal"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/narrative"
	"github.com/mazeofme/maze/internal/profile"
	"github.com/mazeofme/maze/internal/tracks"
)

type fileFetcher struct{ raw, wav string }

func (f fileFetcher) Resolve(_ context.Context, t tracks.Track) (string, error) {
	path := filepath.Join(f.raw, t.Key()+".m4a")
	return path, os.WriteFile(path, []byte("raw"), 0o600)
}

func (f fileFetcher) Transcode(_ context.Context, raw string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(raw), filepath.Ext(raw))
	path := filepath.Join(f.wav, stem+".wav")
	return path, os.WriteFile(path, []byte("wav"), 0o600)
}

func newNarrator(g generator.Generator) *narrative.Prefetcher {
	prof := &profile.Profile{
		FullName: "Ada Lovelace",
		Google:   profile.Google{Contacts: []profile.Contact{{Name: "Charles"}}},
	}
	return narrative.New(g, profile.NewStaticStore(prof), narrative.Config{
		Rand: rand.New(rand.NewPCG(3, 4)),
	})
}

func newMusic(t *testing.T) (*music.Prefetcher, *audio.MockPlayer) {
	t.Helper()
	tc, err := cache.OpenTrackCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	catalog := []tracks.Track{
		{ID: "1", Title: "One", Artist: "A"},
		{ID: "2", Title: "Two", Artist: "B"},
	}
	mp := audio.NewMockPlayer(time.Minute, audio.MockCallbacks{})
	return music.New(catalog, fileFetcher{tc.RawDir(), tc.WavDir()}, tc, mp, music.Config{
		Rand: rand.New(rand.NewPCG(5, 6)),
	}), mp
}

func TestAdvanceWithoutMusic(t *testing.T) {
	e := New(Config{Narrator: newNarrator(generator.NewScripted(generator.OfflineLines...))})

	if _, ok := e.Scene(); ok {
		t.Fatal("no scene before the first advance")
	}
	scene := e.Advance(context.Background(), "1")
	if scene.Room == nil || scene.Line.Text == "" || scene.HasTrack {
		t.Fatalf("unexpected scene %+v", scene)
	}
	if scene.Number != 1 {
		t.Errorf("expected room 1, got %d", scene.Number)
	}
	if _, ok := e.MusicStats(); ok {
		t.Error("no music stats without music")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAdvancePlaysMusicAndJournals(t *testing.T) {
	m, mp := newMusic(t)
	dir := t.TempDir()
	j, err := journal.Open(dir, journal.NewSessionID(), 0)
	if err != nil {
		t.Fatal(err)
	}

	e := New(Config{
		Narrator: newNarrator(generator.NewScripted(generator.OfflineLines...)),
		Music:    m,
		Journal:  j,
	})
	ctx := context.Background()

	for range 3 {
		scene := e.Advance(ctx, "3")
		if !scene.HasTrack || !scene.Playing {
			t.Fatalf("expected music with room %d", scene.Number)
		}
		m.WaitIdle(time.Second)
	}
	if mp.Metrics().PlayCount != 3 {
		t.Errorf("expected 3 plays, got %d", mp.Metrics().PlayCount)
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := journal.Read(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]int{}
	for _, en := range entries {
		kinds[en.Kind]++
	}
	if kinds[journal.KindRoom] != 3 || kinds[journal.KindNPC] != 3 || kinds[journal.KindTrack] != 3 {
		t.Errorf("unexpected journal %v", kinds)
	}
}

func TestActionsBeforeFirstRoom(t *testing.T) {
	e := New(Config{Narrator: newNarrator(generator.NewScripted())})
	ctx := context.Background()

	if _, err := e.Talk(ctx, "hi"); !errors.Is(err, ErrNoRoom) {
		t.Errorf("Talk: expected ErrNoRoom, got %v", err)
	}
	if _, err := e.Inspect(ctx, ""); !errors.Is(err, ErrNoRoom) {
		t.Errorf("Inspect: expected ErrNoRoom, got %v", err)
	}
	if _, err := e.Take("coin"); !errors.Is(err, ErrNoRoom) {
		t.Errorf("Take: expected ErrNoRoom, got %v", err)
	}
	if _, err := e.Feedback(true); !errors.Is(err, ErrNoRoom) {
		t.Errorf("Feedback: expected ErrNoRoom, got %v", err)
	}
}

func TestTalkKeepsConversation(t *testing.T) {
	g := generator.Func(func(context.Context, string, int, float64) (string, error) {
		return "", nil
	})
	e := New(Config{Narrator: newNarrator(g)})
	ctx := context.Background()
	e.Advance(ctx, "1")

	line, err := e.Talk(ctx, "who are you?")
	if err != nil {
		t.Fatal(err)
	}
	if line.Text != "Charles lingers here." {
		t.Errorf("expected the fallback line, got %q", line.Text)
	}

	talk := e.RecentTalk(2)
	if len(talk) != 2 || talk[0] != "You: who are you?" || talk[1] != "NPC: Charles lingers here." {
		t.Errorf("unexpected conversation %q", talk)
	}
}

func TestTakeAndInspect(t *testing.T) {
	g := generator.Func(func(context.Context, string, int, float64) (string, error) {
		return "The {item} hums.", nil
	})
	e := New(Config{Narrator: newNarrator(g)})
	ctx := context.Background()
	e.Advance(ctx, "1")

	e.mu.Lock()
	e.scene.Room.Items = []string{"brass coin", "chalk stub"}
	e.mu.Unlock()

	item, err := e.Take("coin")
	if err != nil || item != "brass coin" {
		t.Fatalf("Take = %q, %v", item, err)
	}
	if got := e.Items(); len(got) != 1 || got[0] != "chalk stub" {
		t.Errorf("unexpected room items %v", got)
	}
	if inv := e.Inventory(); len(inv) != 1 || inv[0] != "brass coin" {
		t.Errorf("unexpected inventory %v", inv)
	}
	if _, err := e.Take("coin"); !errors.Is(err, ErrNoItem) {
		t.Errorf("expected ErrNoItem, got %v", err)
	}

	line, err := e.Inspect(ctx, "chalk")
	if err != nil {
		t.Fatal(err)
	}
	if line.Text != "The chalk stub hums." {
		t.Errorf("unexpected inspect line %q", line.Text)
	}
}

func TestFeedback(t *testing.T) {
	e := New(Config{Narrator: newNarrator(generator.NewScripted())})
	e.Advance(context.Background(), "1")

	e.mu.Lock()
	e.scene.Room.Theme = narrative.Angry
	e.mu.Unlock()

	tests := []struct {
		liked bool
		want  string
	}{
		{true, narrative.Angry},
		{false, narrative.Neutral},
	}
	for _, tt := range tests {
		got, err := e.Feedback(tt.liked)
		if err != nil || got != tt.want {
			t.Errorf("Feedback(%v) = %q, %v; want %q", tt.liked, got, err, tt.want)
		}
	}
}

func TestInventory(t *testing.T) {
	var inv Inventory
	inv.Add("Dream Key")
	if !inv.Has("dream key") || inv.Len() != 1 {
		t.Error("expected case-insensitive lookup")
	}
	items := inv.Items()
	items[0] = "changed"
	if inv.Items()[0] != "Dream Key" {
		t.Error("Items should return a copy")
	}
}

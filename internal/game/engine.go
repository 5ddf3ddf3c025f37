// Package game ties the narrative and music prefetchers to the player's
// actions and records the session.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/journal"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/narrative"
	"github.com/mazeofme/maze/internal/tracks"
)

var (
	// ErrNoRoom is returned before the first Advance.
	ErrNoRoom = errors.New("not in a room yet")

	// ErrNoItem is returned when nothing in the room matches.
	ErrNoItem = errors.New("no such item here")
)

const recentTalk = 6

// Scene is what the player sees after an advance.
type Scene struct {
	Number   int
	Room     *narrative.Room
	Line     narrative.DialogueLine
	Track    tracks.Track
	HasTrack bool
	Playing  bool
}

// Config wires an Engine. Music and Journal are optional.
type Config struct {
	Narrator *narrative.Prefetcher
	Music    *music.Prefetcher
	Journal  *journal.Journal
}

// Engine runs one session. Its methods are called from the interaction
// loop; blocking ones are bounded by the prefetchers.
type Engine struct {
	narrator *narrative.Prefetcher
	music    *music.Prefetcher
	journal  *journal.Journal

	inventory Inventory

	mu    sync.Mutex
	scene Scene
	talk  []string
}

// New returns an engine.
func New(cfg Config) *Engine {
	return &Engine{
		narrator: cfg.Narrator,
		music:    cfg.Music,
		journal:  cfg.Journal,
	}
}

// Advance moves into the next room and starts music matching its theme.
func (e *Engine) Advance(ctx context.Context, choice string) Scene {
	pair := e.narrator.Advance(ctx, choice)

	scene := Scene{
		Number: pair.Room.Number,
		Room:   pair.Room,
		Line:   pair.Line,
	}
	if e.music != nil && len(e.music.Catalog()) > 0 {
		scene.Track, scene.Playing = e.music.SelectAndPlay(ctx, pair.Room.Theme)
		scene.HasTrack = true
		e.music.EvictLastCache()
	}

	e.mu.Lock()
	e.scene = scene
	e.mu.Unlock()
	e.remember("NPC: " + pair.Line.Text)

	e.record(journal.KindRoom, pair.Room.Description)
	e.record(journal.KindNPC, pair.Line.Text)
	if scene.HasTrack {
		e.record(journal.KindTrack, scene.Track.String())
	}
	return scene
}

// Scene returns the current scene.
func (e *Engine) Scene() (Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene, e.scene.Room != nil
}

// Talk asks the NPC something. An empty utterance asks for a greeting.
func (e *Engine) Talk(ctx context.Context, utterance string) (narrative.DialogueLine, error) {
	scene, ok := e.Scene()
	if !ok {
		return narrative.DialogueLine{}, ErrNoRoom
	}

	key := narrative.Greeting
	if u := strings.TrimSpace(utterance); u != "" {
		key = narrative.Question(u)
		e.remember("You: " + u)
		e.record(journal.KindPlayer, u)
	}

	line, _ := e.narrator.Talk(ctx, key, scene.Room, e.RecentTalk(recentTalk))
	e.remember("NPC: " + line.Text)
	e.record(journal.KindNPC, line.Text)
	return line, nil
}

// Inspect asks the NPC about the thing best matching query.
func (e *Engine) Inspect(ctx context.Context, query string) (narrative.DialogueLine, error) {
	scene, ok := e.Scene()
	if !ok {
		return narrative.DialogueLine{}, ErrNoRoom
	}

	line, err := e.narrator.InspectFurniture(ctx, scene.Room, query)
	if err != nil {
		return line, err
	}
	e.remember("NPC: " + line.Text)
	e.record(journal.KindNPC, line.Text)
	return line, nil
}

// Take moves the item best matching query from the room to the inventory.
func (e *Engine) Take(query string) (string, error) {
	e.mu.Lock()
	room := e.scene.Room
	if room == nil {
		e.mu.Unlock()
		return "", ErrNoRoom
	}
	item, ok := narrative.Match(room.Items, query)
	if ok {
		item, ok = room.TakeItem(item)
	}
	e.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoItem, query)
	}
	e.inventory.Add(item)
	e.record(journal.KindItem, item)
	return item, nil
}

// Items returns the room's remaining items.
func (e *Engine) Items() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene.Room == nil {
		return nil
	}
	return append([]string(nil), e.scene.Room.Items...)
}

// Inventory returns the held items.
func (e *Engine) Inventory() []string {
	return e.inventory.Items()
}

var opposites = map[string]string{
	narrative.Happy:   narrative.Sad,
	narrative.Sad:     narrative.Happy,
	narrative.Angry:   narrative.Neutral,
	narrative.Neutral: narrative.Happy,
	narrative.Dream:   narrative.Neutral,
}

// Feedback records whether the player liked the room's mood. Disliking a
// mood steers toward its opposite. It returns the recorded mood.
func (e *Engine) Feedback(liked bool) (string, error) {
	scene, ok := e.Scene()
	if !ok {
		return "", ErrNoRoom
	}

	mood := scene.Room.Theme
	if mood == narrative.Dream {
		mood = narrative.Neutral
	}
	if !liked {
		mood = opposites[scene.Room.Theme]
	}
	e.narrator.RecordFeedback(mood)
	e.record(journal.KindFeedback, mood)
	return mood, nil
}

// RecentTalk returns up to n of the latest conversation lines.
func (e *Engine) RecentTalk(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.talk) {
		n = len(e.talk)
	}
	return append([]string(nil), e.talk[len(e.talk)-n:]...)
}

// MusicStats returns the audio buffer state.
func (e *Engine) MusicStats() (music.Stats, bool) {
	if e.music == nil {
		return music.Stats{}, false
	}
	return e.music.Stats(), true
}

// Session returns the journal session id, if journaling.
func (e *Engine) Session() string {
	if e.journal == nil {
		return ""
	}
	return e.journal.Session()
}

// Close stops the music and closes the journal.
func (e *Engine) Close() error {
	var errs []error
	if e.music != nil {
		errs = append(errs, e.music.Stop())
	}
	if e.journal != nil {
		errs = append(errs, e.journal.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) remember(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.talk = append(e.talk, line)
	if len(e.talk) > 100 {
		e.talk = e.talk[len(e.talk)-100:]
	}
}

func (e *Engine) record(kind, text string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(kind, text); err != nil {
		log.Warn("unable to write journal", "kind", kind, "err", err)
	}
}

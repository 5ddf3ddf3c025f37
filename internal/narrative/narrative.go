// Package narrative keeps the next room and its NPC greeting built ahead of
// the player. Advance hands over the prepared pair at once and starts
// building the following one in the background.
package narrative

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/generator"
	"github.com/mazeofme/maze/internal/profile"
	"github.com/mazeofme/maze/internal/recency"
	"github.com/mazeofme/maze/internal/task"
)

// Defaults for Config.
const (
	DefaultGrace            = 50 * time.Millisecond
	DefaultTalkTimeout      = 8 * time.Second
	DefaultRoomRetries      = 12
	DefaultDialogueAttempts = 7
	feedbackMemory          = 10
)

// Pair is a room and the line its NPC opens with.
type Pair struct {
	Room *Room
	Line DialogueLine
}

// ProfileSource returns the current profile. It may return nil.
type ProfileSource interface {
	Get() *profile.Profile
}

// Config tunes a Prefetcher. Zero values take the defaults.
type Config struct {
	Grace            time.Duration
	TalkTimeout      time.Duration
	RoomRetries      int
	DialogueAttempts int
	RoomWindow       int
	DialogueWindow   int

	Rand *rand.Rand
	Now  func() time.Time
}

// Prefetcher holds the current and next pairs. The slots are guarded by mu;
// rooms and dialogue are built under their own locks so a slow generator
// never holds the slots.
type Prefetcher struct {
	gen      generator.Generator
	profiles ProfileSource

	grace            time.Duration
	talkTimeout      time.Duration
	roomRetries      int
	dialogueAttempts int
	now              func() time.Time

	rooms *recency.Window
	lines *recency.Window

	handle task.Handle

	// genMu serializes dialogue generation between builds and Talk.
	genMu sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	current  *Pair
	next     *Pair
	number   int
	feedback []string
}

// New returns a prefetcher that generates with gen and personalizes from
// profiles.
func New(gen generator.Generator, profiles ProfileSource, cfg Config) *Prefetcher {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.TalkTimeout <= 0 {
		cfg.TalkTimeout = DefaultTalkTimeout
	}
	if cfg.RoomRetries <= 0 {
		cfg.RoomRetries = DefaultRoomRetries
	}
	if cfg.DialogueAttempts <= 0 {
		cfg.DialogueAttempts = DefaultDialogueAttempts
	}
	if cfg.RoomWindow <= 0 {
		cfg.RoomWindow = recency.RoomCapacity
	}
	if cfg.DialogueWindow <= 0 {
		cfg.DialogueWindow = recency.DialogueCapacity
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Prefetcher{
		gen:              gen,
		profiles:         profiles,
		grace:            cfg.Grace,
		talkTimeout:      cfg.TalkTimeout,
		roomRetries:      cfg.RoomRetries,
		dialogueAttempts: cfg.DialogueAttempts,
		now:              cfg.Now,
		rooms:            recency.New(cfg.RoomWindow),
		lines:            recency.New(cfg.DialogueWindow),
		rng:              cfg.Rand,
	}
}

// Advance hands over the prepared pair as the current one and starts
// building the next. The first call builds synchronously. Later calls wait
// at most the grace interval for the previous build; when it is still
// running a template room with a fallback greeting is handed over instead,
// no new build starts and the running one lands in the next slot.
func (p *Prefetcher) Advance(ctx context.Context, choice string) Pair {
	idle := p.handle.Wait(p.grace)
	if !idle {
		log.Debug("previous build still running", "grace", p.grace)
	}

	p.mu.Lock()
	next := p.next
	first := p.current == nil
	p.next = nil
	p.mu.Unlock()

	if next == nil {
		if first {
			pair := p.build(ctx, choice)
			next = &pair
		} else {
			pair := p.quickPair()
			next = &pair
		}
	}

	p.mu.Lock()
	if p.current != nil && next.Room.Number <= p.current.Room.Number {
		// A build that outlived a template room keeps the numbering monotonic.
		next.Room.Number = p.current.Room.Number + 1
		p.number = max(p.number, next.Room.Number)
	}
	p.current = next
	p.mu.Unlock()

	if idle {
		p.handle.Go(func() {
			pair := p.build(context.WithoutCancel(ctx), choice)
			p.mu.Lock()
			p.next = &pair
			p.mu.Unlock()
		})
	}

	return *next
}

// Current returns the pair the player is in.
func (p *Prefetcher) Current() (Pair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Pair{}, false
	}
	return *p.current, true
}

// Next returns the prepared pair, if the build has finished.
func (p *Prefetcher) Next() (Pair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next == nil {
		return Pair{}, false
	}
	return *p.next, true
}

// WaitIdle waits up to d for the background build.
func (p *Prefetcher) WaitIdle(d time.Duration) bool {
	return p.handle.Wait(d)
}

// RecordFeedback remembers the player's reaction to a mood.
func (p *Prefetcher) RecordFeedback(mood string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.feedback = append(p.feedback, mood)
	if len(p.feedback) > feedbackMemory {
		p.feedback = p.feedback[len(p.feedback)-feedbackMemory:]
	}
}

// DominantMood returns the most frequent recent feedback mood.
func (p *Prefetcher) DominantMood() string {
	return dominantMood(p.feedbackSnapshot())
}

func (p *Prefetcher) feedbackSnapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.feedback...)
}

func (p *Prefetcher) nextNumber() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.number++
	return p.number
}

func (p *Prefetcher) profile() *profile.Profile {
	if p.profiles == nil {
		return nil
	}
	return p.profiles.Get()
}

// build makes a room and its greeting.
func (p *Prefetcher) build(ctx context.Context, choice string) Pair {
	prof := p.profile()
	room := p.buildRoom(prof, p.nextNumber())
	line := p.dialogue(ctx, prof, Greeting, room, nil, choice)
	log.Debug("built room", "room", room.Number, "theme", room.Theme, "fallback", line.Fallback)
	return Pair{Room: room, Line: line}
}

// quickPair makes a room without calling the generator.
func (p *Prefetcher) quickPair() Pair {
	prof := p.profile()
	room := p.buildRoom(prof, p.nextNumber())
	line := DialogueLine{Text: profileFallback(prof), Key: Greeting, Fallback: true}
	p.lines.Record(line.Text)
	return Pair{Room: room, Line: line}
}

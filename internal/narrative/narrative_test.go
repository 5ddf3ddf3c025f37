package narrative

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mazeofme/maze/internal/generator"
	"github.com/mazeofme/maze/internal/profile"
)

func testProfile() *profile.Profile {
	return &profile.Profile{
		FullName: "Ada Lovelace",
		Google: profile.Google{
			Contacts: []profile.Contact{{Name: "Charles"}},
		},
	}
}

func newTestPrefetcher(g generator.Generator, prof *profile.Profile, cfg Config) *Prefetcher {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(7, 11))
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	}
	return New(g, profile.NewStaticStore(prof), cfg)
}

// sequence answers with lines in order, repeating the last one.
func sequence(lines ...string) generator.Func {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string, int, float64) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		line := lines[min(i, len(lines)-1)]
		i++
		return line, nil
	}
}

func TestAdvanceDoubleBuffer(t *testing.T) {
	p := newTestPrefetcher(generator.NewScripted(generator.OfflineLines...), testProfile(), Config{})
	ctx := context.Background()

	first := p.Advance(ctx, "1")
	if first.Room == nil || first.Line.Text == "" {
		t.Fatalf("first advance should build a pair, got %+v", first)
	}

	for i := range 10 {
		if !p.WaitIdle(time.Second) {
			t.Fatal("background build did not finish")
		}
		next, ok := p.Next()
		if !ok {
			t.Fatalf("advance %d: next slot empty after build", i)
		}

		got := p.Advance(ctx, "3")
		if got.Room != next.Room || got.Line != next.Line {
			t.Fatalf("advance %d: expected the prepared pair", i)
		}
		if cur, _ := p.Current(); cur.Room != got.Room {
			t.Fatalf("advance %d: current does not match the returned pair", i)
		}
		if got.Line.Text == "" {
			t.Fatalf("advance %d: empty line", i)
		}
	}
	p.WaitIdle(time.Second)
}

func TestAdvanceDoesNotWaitForSlowBuild(t *testing.T) {
	slow := generator.Func(func(context.Context, string, int, float64) (string, error) {
		time.Sleep(150 * time.Millisecond)
		return "Hello {name}.", nil
	})
	p := newTestPrefetcher(slow, testProfile(), Config{Grace: 10 * time.Millisecond})
	ctx := context.Background()

	p.Advance(ctx, "1")

	start := time.Now()
	second := p.Advance(ctx, "2")
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("advance blocked for %v", elapsed)
	}
	if second.Room == nil || !second.Line.Fallback || second.Line.Text == "" {
		t.Errorf("expected a template room with a fallback line, got %+v", second.Line)
	}
	p.WaitIdle(2 * time.Second)
}

func TestAdvanceKeepsOneBuildInFlight(t *testing.T) {
	release := make(chan struct{})
	var blocking atomic.Bool
	var calls atomic.Int32
	g := generator.Func(func(context.Context, string, int, float64) (string, error) {
		if blocking.Load() {
			<-release
		}
		return fmt.Sprintf("Hello {name}, visit %d.", calls.Add(1)), nil
	})
	p := newTestPrefetcher(g, testProfile(), Config{Grace: time.Millisecond})
	ctx := context.Background()

	last := p.Advance(ctx, "1").Room.Number
	if !p.WaitIdle(time.Second) {
		t.Fatal("background build did not finish")
	}
	blocking.Store(true)

	// Hands over the prepared room and starts the build that will block.
	last = p.Advance(ctx, "2").Room.Number
	started := p.handle.Started()

	for i := range 50 {
		pair := p.Advance(ctx, "3")
		if !pair.Line.Fallback {
			t.Fatalf("advance %d: expected a template room while the build runs", i)
		}
		if pair.Room.Number <= last {
			t.Fatalf("advance %d: room number went from %d to %d", i, last, pair.Room.Number)
		}
		last = pair.Room.Number
	}
	if got := p.handle.Started(); got != started {
		t.Errorf("expected no new builds while one runs, started %d more", got-started)
	}

	close(release)
	if !p.WaitIdle(time.Second) {
		t.Fatal("blocked build did not finish")
	}
	late := p.Advance(ctx, "1")
	if late.Line.Fallback {
		t.Errorf("expected the late build to be handed over, got %+v", late.Line)
	}
	if late.Room.Number <= last {
		t.Errorf("late room numbered %d after %d", late.Room.Number, last)
	}
	if got := p.handle.Started(); got != started+1 {
		t.Errorf("expected one new build after the handover, started %d more", got-started)
	}
	p.WaitIdle(time.Second)
}

func TestOneBuildAtATime(t *testing.T) {
	var active, peak atomic.Int32
	g := generator.Func(func(context.Context, string, int, float64) (string, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return "", nil
	})
	p := newTestPrefetcher(g, testProfile(), Config{Grace: time.Millisecond, DialogueAttempts: 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 30 {
			p.Advance(ctx, "1")
		}
	}()
	go func() {
		defer wg.Done()
		for range 30 {
			if cur, ok := p.Current(); ok {
				p.Talk(ctx, Question("who are you"), cur.Room, nil)
			}
		}
	}()
	wg.Wait()
	p.WaitIdle(5 * time.Second)

	if got := peak.Load(); got > 1 {
		t.Errorf("expected at most one generation at a time, saw %d", got)
	}
}

func TestRoomUniquenessTerminates(t *testing.T) {
	saved := palettes
	t.Cleanup(func() { palettes = saved })

	limited := palette{
		templates: []string{"Room one.", "Room two.", "Room three."},
		furniture: []string{"stool"},
		colors:    []string{"grey"},
		items:     []string{"coin"},
	}
	palettes = map[string]palette{Happy: limited, Sad: limited, Angry: limited, Neutral: limited, Dream: limited}

	p := newTestPrefetcher(generator.NewScripted(), nil, Config{RoomWindow: 5, RoomRetries: 12})
	for n := 1; n <= 20; n++ {
		room := p.buildRoom(nil, n)
		if !strings.HasPrefix(room.Description, "Room ") {
			t.Fatalf("room %d: unexpected description %q", n, room.Description)
		}
	}
	if got := p.rooms.Len(); got != 5 {
		t.Errorf("expected the window to hold 5 rooms, got %d", got)
	}
}

func TestRoomCadence(t *testing.T) {
	p := newTestPrefetcher(generator.NewScripted(), testProfile(), Config{})

	tests := []struct {
		number int
		dream  bool
		dejaVu bool
	}{
		{1, false, false},
		{5, false, true},
		{6, true, false},
		{12, true, false},
		{30, true, true},
	}
	for _, tt := range tests {
		room := p.buildRoom(testProfile(), tt.number)
		if (room.Theme == Dream) != tt.dream {
			t.Errorf("room %d: theme %q, dream %v", tt.number, room.Theme, tt.dream)
		}
		if strings.HasSuffix(room.Description, dejaVu) != tt.dejaVu {
			t.Errorf("room %d: deja vu %v in %q", tt.number, tt.dejaVu, room.Description)
		}
		if len(room.Items) > maxItems {
			t.Errorf("room %d: %d items", tt.number, len(room.Items))
		}
		if strings.ContainsAny(room.Description, "{}") {
			t.Errorf("room %d: unrendered token in %q", tt.number, room.Description)
		}
	}
}

func TestDreamRoomUsesStandoutFact(t *testing.T) {
	prof := testProfile()
	prof.Google.CalendarEvents = []profile.Event{{Summary: "Dentist", Start: "2024-03-01T09:00:00Z"}}

	p := newTestPrefetcher(generator.NewScripted(), prof, Config{})
	room := p.buildRoom(prof, 6)
	if room.Hook != "Dentist" || !strings.Contains(room.Description, "Dentist") {
		t.Errorf("expected today's event in the dream room, got %q", room.Description)
	}
}

func TestPickMoodBias(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	feedback := []string{Sad, Happy, Sad, Sad}

	sad := 0
	const n = 2000
	for range n {
		if pickMood(rng, feedback) == Sad {
			sad++
		}
	}
	// 60% forced plus a quarter of the rest.
	if frac := float64(sad) / n; frac < 0.64 || frac > 0.76 {
		t.Errorf("sad fraction %.2f, want about 0.70", frac)
	}

	if dominantMood(nil) != "" {
		t.Error("no feedback should have no dominant mood")
	}
	if got := dominantMood([]string{Happy, Sad}); got != Sad {
		t.Errorf("latest should win ties, got %q", got)
	}
}

func TestRecordFeedbackIsBounded(t *testing.T) {
	p := newTestPrefetcher(generator.NewScripted(), nil, Config{})
	for range 15 {
		p.RecordFeedback(Angry)
	}
	p.RecordFeedback(Happy)
	if got := len(p.feedbackSnapshot()); got != feedbackMemory {
		t.Errorf("expected %d remembered moods, got %d", feedbackMemory, got)
	}
	if p.DominantMood() != Angry {
		t.Errorf("expected angry to dominate, got %q", p.DominantMood())
	}
}

func TestTalkSubstitutesHook(t *testing.T) {
	p := newTestPrefetcher(sequence("NPC: **Hello {name}.** <END>"), testProfile(), Config{})

	line, hint := p.Talk(context.Background(), Greeting, &Room{Description: "A room."}, nil)
	if line.Text != "Hello Ada." || hint != "Ada" || line.Hook != "name" || line.Fallback {
		t.Errorf("unexpected line %+v hint %q", line, hint)
	}
}

func TestTalkRejectsRecentLines(t *testing.T) {
	p := newTestPrefetcher(sequence("Hello {name}.", "Hello {name}.", "Goodbye {name}."), testProfile(), Config{})
	room := &Room{Description: "A room."}

	first, _ := p.Talk(context.Background(), Greeting, room, nil)
	second, _ := p.Talk(context.Background(), Greeting, room, nil)
	if first.Text != "Hello Ada." || second.Text != "Goodbye Ada." {
		t.Errorf("expected the repeat to be retried, got %q then %q", first.Text, second.Text)
	}
}

func TestTalkFallback(t *testing.T) {
	failing := generator.Func(func(context.Context, string, int, float64) (string, error) {
		return "", errors.New("model offline")
	})

	tests := []struct {
		name string
		gen  generator.Generator
		prof *profile.Profile
		want string
	}{
		{"empty with contact", generator.NewScripted(), testProfile(), "Charles lingers here."},
		{"errors with contact", failing, testProfile(), "Charles lingers here."},
		{"no token", sequence("Just words."), testProfile(), "Charles lingers here."},
		{"two tokens", sequence("{name} and {contact}."), testProfile(), "Charles lingers here."},
		{"name only", generator.NewScripted(), &profile.Profile{FullName: "Grace Hopper"}, "Grace lingers here."},
		{"no profile", generator.NewScripted(), nil, "The figure lingers here."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPrefetcher(tt.gen, tt.prof, Config{})
			line, _ := p.Talk(context.Background(), Greeting, &Room{}, nil)
			if line.Text != tt.want || !line.Fallback {
				t.Errorf("got %+v, want %q", line, tt.want)
			}
		})
	}
}

func TestTalkTimeout(t *testing.T) {
	release := make(chan struct{})
	blocked := generator.Func(func(context.Context, string, int, float64) (string, error) {
		<-release
		return "", nil
	})
	defer close(release)

	p := newTestPrefetcher(blocked, testProfile(), Config{TalkTimeout: 20 * time.Millisecond})

	start := time.Now()
	line, hint := p.Talk(context.Background(), Question("hello?"), &Room{}, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("talk blocked for %v", elapsed)
	}
	if line.Text != "Charles lingers here." || !line.Fallback || hint != "" {
		t.Errorf("unexpected timeout line %+v", line)
	}
	if !p.lines.Contains(line.Text) {
		t.Error("expected the timeout line in the dialogue window")
	}
}

func TestInspectFurniture(t *testing.T) {
	p := newTestPrefetcher(sequence("The {item} remembers you."), testProfile(), Config{})
	room := &Room{Furniture: "dusty piano", Items: []string{"wilted rose"}}

	line, err := p.InspectFurniture(context.Background(), room, "rose")
	if err != nil {
		t.Fatal(err)
	}
	if line.Key != Inspect("wilted rose") || line.Text != "The wilted rose remembers you." {
		t.Errorf("unexpected inspect line %+v", line)
	}

	if _, err := p.InspectFurniture(context.Background(), room, "xylophone"); !errors.Is(err, ErrNothingToInspect) {
		t.Errorf("expected ErrNothingToInspect, got %v", err)
	}
	if _, err := p.InspectFurniture(context.Background(), &Room{}, ""); !errors.Is(err, ErrNothingToInspect) {
		t.Errorf("expected ErrNothingToInspect for an empty room, got %v", err)
	}
}

func TestKeyAndMatch(t *testing.T) {
	k := Question(" where am I ")
	if k.Kind() != "question" || k.Arg() != "where am I" {
		t.Errorf("unexpected key parts %q %q", k.Kind(), k.Arg())
	}
	if Greeting.Kind() != "greeting" || Greeting.Arg() != "" {
		t.Error("greeting has no argument")
	}

	things := []string{"dusty piano", "wilted rose"}
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"", "dusty piano", true},
		{"pno", "dusty piano", true},
		{"rose", "wilted rose", true},
		{"zzz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := Match(things, tt.query)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Match(%q) = %q, %v", tt.query, got, ok)
			}
		})
	}
}

func TestTakeItem(t *testing.T) {
	room := &Room{Furniture: "cot", Items: []string{"brass coin", "chalk stub"}}
	if got, ok := room.TakeItem("Brass Coin"); !ok || got != "brass coin" {
		t.Fatalf("TakeItem = %q, %v", got, ok)
	}
	if _, ok := room.TakeItem("brass coin"); ok {
		t.Error("item should be gone")
	}
	if got := room.Things(); len(got) != 2 || got[1] != "chalk stub" {
		t.Errorf("unexpected things %v", got)
	}
}

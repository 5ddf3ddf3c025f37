package narrative

import (
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/hooks"
	"github.com/mazeofme/maze/internal/profile"
)

// Moods rooms are themed with. Dream rooms are forced by the room counter.
const (
	Happy   = "happy"
	Sad     = "sad"
	Angry   = "angry"
	Neutral = "neutral"
	Dream   = "dream"
)

// Moods lists the moods the picker chooses from.
var Moods = []string{Happy, Sad, Angry, Neutral}

const (
	dreamEvery  = 6
	dejaVuEvery = 5
	dejaVu      = " A strange déjà vu clings to the air."
	maxItems    = 2
)

// Room is a generated maze room. Only Items changes after the room is
// shown, and only from the interaction loop.
type Room struct {
	Number      int
	Description string
	Theme       string
	Furniture   string
	WallColor   string
	Hook        string
	Items       []string
}

// TakeItem removes the item matching name, ignoring case.
func (r *Room) TakeItem(name string) (string, bool) {
	for i, it := range r.Items {
		if strings.EqualFold(it, name) {
			r.Items = append(r.Items[:i:i], r.Items[i+1:]...)
			return it, true
		}
	}
	return "", false
}

// Things returns the furniture followed by the items.
func (r *Room) Things() []string {
	out := make([]string, 0, len(r.Items)+1)
	if r.Furniture != "" {
		out = append(out, r.Furniture)
	}
	return append(out, r.Items...)
}

type palette struct {
	templates []string
	furniture []string
	colors    []string
	items     []string
}

var palettes = map[string]palette{
	Happy: {
		templates: []string{
			"Sunbeams dance across {wall_color} walls and a {furniture}. Hope swells as memories of {hook} resurface.",
			"A faint, upbeat melody echoes from the {furniture}. Perhaps you remember {hook}?",
			"The scent of citrus lingers, and somewhere a calendar reminder for {hook} whispers from the corners.",
		},
		furniture: []string{"plush sofa", "vintage jukebox", "beanbag"},
		colors:    []string{"honey yellow", "peach", "warm cream"},
		items:     []string{"paper crown", "sticky note", "pressed flower", "cassette tape"},
	},
	Sad: {
		templates: []string{
			"Muted {wall_color} walls press inwards. A lone {furniture} creaks. Drips echo the countdown to {hook}.",
			"Your footsteps echo past the {furniture} like memories you'd rather forget. Was it {hook}?",
			"Rain taps the {furniture}. The air is thick with something left unsaid: {hook}.",
		},
		furniture: []string{"rocking chair", "dusty piano", "torn loveseat"},
		colors:    []string{"washed-out blue", "ashen grey", "cold teal"},
		items:     []string{"wilted rose", "unsent letter", "cracked photo frame", "wet umbrella"},
	},
	Angry: {
		templates: []string{
			"Ragged shadows slash the {wall_color} walls; a {furniture} rattles. Your pulse matches the room's fury at {hook}.",
			"Something overturned the {furniture}. Was it anger about {hook}?",
			"The air burns, the {furniture} looks battered. Did you remember {hook}?",
		},
		furniture: []string{"metal desk", "barred window", "shattered mirror"},
		colors:    []string{"scarlet", "burnt umber", "dark crimson"},
		items:     []string{"bent key", "torn ticket", "rusted nail", "broken watch"},
	},
	Neutral: {
		templates: []string{
			"Bare {wall_color} walls and a simple {furniture}. Silence reigns; only {hook} remains.",
			"A corridor of smooth {wall_color} stretches past a {furniture}. {hook} lingers in the quiet air.",
			"The {furniture} waits, perfectly centered. The maze itself seems to pause for {hook}.",
		},
		furniture: []string{"wooden stool", "plain cot", "unmarked door"},
		colors:    []string{"bone white", "pale beige", "soft grey"},
		items:     []string{"blank notebook", "brass coin", "spool of thread", "chalk stub"},
	},
	Dream: {
		templates: []string{
			"The {wall_color} walls melt into a memory you did not choose: {hook}. A {furniture} drifts just out of reach.",
			"You are somewhere else now. {hook} plays on a loop behind a {furniture}, and the {wall_color} light forgets to flicker.",
			"A {furniture} hangs upside down in {wall_color} fog. Someone is still talking about {hook}.",
		},
		furniture: []string{"floating door", "melting clock", "staircase to nowhere"},
		colors:    []string{"iridescent", "starlit violet", "fog-silver"},
		items:     []string{"glass feather", "dream key", "hourglass of sand"},
	},
}

// roomHooks are the facts a room may mention, tried in a random order.
var roomHooks = []string{hooks.Event, hooks.Upcoming, hooks.Birthday, hooks.YouTube, hooks.Contact}

// standoutHooks are tried in order for dream rooms.
var standoutHooks = []string{hooks.Event, hooks.Upcoming, hooks.YouTube, hooks.Birthday, hooks.Contact, hooks.Task}

const unknownHook = "something you forgot"

// pickMood returns the dominant feedback mood with 60% probability when
// there is feedback, else a uniform choice.
func pickMood(rng *rand.Rand, feedback []string) string {
	if dominant := dominantMood(feedback); dominant != "" && rng.Float64() < 0.6 {
		return dominant
	}
	return Moods[rng.IntN(len(Moods))]
}

// dominantMood returns the most frequent mood, the latest one winning ties.
func dominantMood(feedback []string) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, m := range feedback {
		counts[m]++
		if counts[m] >= bestN {
			best, bestN = m, counts[m]
		}
	}
	return best
}

// roomHook picks the fact a room mentions.
func roomHook(rng *rand.Rand, set *hooks.Set, dream bool) string {
	names := standoutHooks
	if !dream {
		names = append([]string(nil), roomHooks...)
		rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	}
	for _, name := range names {
		if v, ok := set.Get(name); ok {
			return v
		}
	}
	return unknownHook
}

// renderRoom fills one template for mood. The caller checks uniqueness.
func renderRoom(rng *rand.Rand, mood, hook string, number int) *Room {
	pal, ok := palettes[mood]
	if !ok {
		mood, pal = Neutral, palettes[Neutral]
	}

	tpl := pal.templates[rng.IntN(len(pal.templates))]
	if number > 0 && number%dejaVuEvery == 0 {
		tpl += dejaVu
	}
	furniture := pal.furniture[rng.IntN(len(pal.furniture))]
	color := pal.colors[rng.IntN(len(pal.colors))]

	desc := hooks.FromValues(
		[]string{"furniture", "wall_color", "hook"},
		map[string]string{"furniture": furniture, "wall_color": color, "hook": hook},
	).Render(tpl)

	return &Room{
		Number:      number,
		Description: desc,
		Theme:       mood,
		Furniture:   furniture,
		WallColor:   color,
		Hook:        hook,
		Items:       pickItems(rng, pal.items),
	}
}

func pickItems(rng *rand.Rand, pool []string) []string {
	n := rng.IntN(maxItems + 1)
	if n == 0 {
		return nil
	}
	perm := rng.Perm(len(pool))
	out := make([]string, 0, n)
	for _, i := range perm[:n] {
		out = append(out, pool[i])
	}
	return out
}

// buildRoom renders room number, retrying against the recency window. On
// exhaustion the last rendering is kept. The accepted description is
// recorded either way.
func (p *Prefetcher) buildRoom(prof *profile.Profile, number int) *Room {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()

	dream := number > 0 && number%dreamEvery == 0
	mood := Dream
	if !dream {
		mood = pickMood(p.rng, p.feedbackSnapshot())
	}
	set := hooks.Build(prof, p.now(), p.rng, nil)

	var room *Room
	for attempt := 1; attempt <= p.roomRetries; attempt++ {
		room = renderRoom(p.rng, mood, roomHook(p.rng, set, dream), number)
		if !p.rooms.Contains(room.Description) {
			break
		}
		log.Debug("room repeats a recent one", "attempt", attempt, "room", number)
	}
	p.rooms.Record(room.Description)
	return room
}

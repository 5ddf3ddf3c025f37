// Package hooks turns profile facts into named personalization tokens and
// validates that generated text used exactly one of them.
package hooks

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mazeofme/maze/internal/profile"
)

// Hook names built from profile facts.
const (
	Name     = "name"
	Event    = "event"
	Upcoming = "upcoming"
	Birthday = "birthday"
	YouTube  = "youtube"
	Contact  = "contact"
	Task     = "task"
	Genre    = "genre"
)

// UpcomingWindow is how far ahead calendar events count as upcoming.
const UpcomingWindow = 14 * 24 * time.Hour

// Set maps hook names to personalization values. Every hook holds at least
// one non-empty candidate; Rotate cycles through the candidates.
type Set struct {
	order      []string
	candidates map[string][]string
	pos        map[string]int
	next       int
}

// Build assembles a Set from the profile. Hook order is shuffled with rng.
// Extras are merged in after profile facts and override them; empty values
// are dropped.
func Build(p *profile.Profile, now time.Time, rng *rand.Rand, extras map[string]string) *Set {
	s := &Set{
		candidates: make(map[string][]string),
		pos:        make(map[string]int),
	}
	if p != nil {
		s.add(Name, p.FirstName())
		s.add(Event, p.TodayEvent(now))

		for _, ev := range p.UpcomingEvents(now, UpcomingWindow) {
			start, _ := ev.StartTime()
			s.add(Upcoming, ev.Summary+", "+humanize.RelTime(start, now, "ago", "from now"))
		}

		if next, ok := p.NextBirthday(now); ok {
			s.add(Birthday, birthdayCountdown(next, now))
		}

		s.add(YouTube, shuffled(rng, p.VideoTitles())...)
		s.add(Contact, shuffled(rng, p.ContactNames())...)
		s.add(Task, shuffled(rng, p.TaskTitles())...)
		s.add(Genre, shuffled(rng, p.Genres())...)
	}

	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(extras[k]); v != "" && validName(k) {
			delete(s.candidates, k)
			s.add(k, v)
		}
	}

	s.order = make([]string, 0, len(s.candidates))
	for k := range s.candidates {
		s.order = append(s.order, k)
	}
	sort.Strings(s.order)
	if rng != nil {
		rng.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })
	}
	return s
}

// FromValues builds a Set from fixed values in the given order.
func FromValues(order []string, values map[string]string) *Set {
	s := &Set{
		candidates: make(map[string][]string),
		pos:        make(map[string]int),
	}
	for _, k := range order {
		if v := strings.TrimSpace(values[k]); v != "" && validName(k) {
			s.add(k, v)
			s.order = append(s.order, k)
		}
	}
	return s
}

func (s *Set) add(name string, values ...string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			s.candidates[name] = append(s.candidates[name], v)
		}
	}
}

// Len returns the number of hooks.
func (s *Set) Len() int {
	return len(s.order)
}

// Names returns hook names in the set's order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Get returns the current value of a hook.
func (s *Set) Get(name string) (string, bool) {
	c, ok := s.candidates[name]
	if !ok {
		return "", false
	}
	return c[s.pos[name]%len(c)], true
}

// Values returns the current value of every hook.
func (s *Set) Values() map[string]string {
	out := make(map[string]string, len(s.order))
	for _, k := range s.order {
		out[k], _ = s.Get(k)
	}
	return out
}

// First returns the first hook in the set's order.
func (s *Set) First() (name, value string, ok bool) {
	if len(s.order) == 0 {
		return "", "", false
	}
	name = s.order[0]
	value, _ = s.Get(name)
	return name, value, true
}

// Tokens returns the hook tokens in the set's order, e.g. "{name}".
func (s *Set) Tokens() []string {
	out := make([]string, len(s.order))
	for i, k := range s.order {
		out[i] = Token(k)
	}
	return out
}

// Rotate advances a hook to its next candidate value. It reports whether the
// value changed.
func (s *Set) Rotate(name string) bool {
	c := s.candidates[name]
	if len(c) < 2 {
		return false
	}
	s.pos[name] = (s.pos[name] + 1) % len(c)
	return true
}

// RotateOne advances the next hook, in cyclic order, that has more than one
// candidate. It returns the rotated hook name, or "" when no hook can rotate.
func (s *Set) RotateOne() string {
	for i := 0; i < len(s.order); i++ {
		name := s.order[(s.next+i)%len(s.order)]
		if s.Rotate(name) {
			s.next = (s.next + i + 1) % len(s.order)
			return name
		}
	}
	return ""
}

// Token formats a hook name as a substitution token.
func Token(name string) string {
	return "{" + name + "}"
}

func birthdayCountdown(next, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(next.Sub(today).Hours() / 24)
	switch days {
	case 0:
		return "your birthday, today"
	case 1:
		return "your birthday, tomorrow"
	default:
		return fmt.Sprintf("your birthday, %d days from now", days)
	}
}

func shuffled(rng *rand.Rand, in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	if rng != nil {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

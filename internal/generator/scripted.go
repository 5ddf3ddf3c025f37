package generator

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// OfflineLines are spoken by the scripted backend when no model is
// configured. Each line carries one hook token.
var OfflineLines = []string{
	"I remember {name} pacing these halls before you.",
	"Did you forget {event}? The walls did not.",
	"Someone keeps whispering about {contact}.",
	"{youtube} still plays somewhere behind this door.",
	"Count the days with me: {upcoming}.",
	"You left {task} unfinished. It followed you here.",
	"The floor hums along to {genre}.",
	"I kept a candle lit for {birthday}.",
	"{name}, the maze bends the way you lean.",
	"Ask {contact} where the door went.",
}

var promptTokenRe = regexp.MustCompile(`\{[a-z][a-z0-9_]*\}`)

// Scripted is a deterministic generator that cycles through fixed lines.
// It prefers lines whose hook tokens appear in the prompt so offline play
// still personalizes. It is safe for concurrent use.
type Scripted struct {
	mu    sync.Mutex
	lines []string
	pos   int
	calls int
}

// NewScripted returns a generator over lines. With no lines it always
// answers with an empty string.
func NewScripted(lines ...string) *Scripted {
	return &Scripted{lines: append([]string(nil), lines...)}
}

// Generate returns the next suitable line followed by the stop token.
func (s *Scripted) Generate(ctx context.Context, prompt string, _ int, _ float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.lines) == 0 {
		return "", nil
	}

	offered := promptTokenRe.FindAllString(prompt, -1)
	for i := range s.lines {
		idx := (s.pos + i) % len(s.lines)
		if len(offered) == 0 || usesOffered(s.lines[idx], offered) {
			s.pos = idx + 1
			return s.lines[idx] + " " + StopToken, nil
		}
	}

	line := s.lines[s.pos%len(s.lines)]
	s.pos++
	return line + " " + StopToken, nil
}

// Calls returns how many times Generate ran.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func usesOffered(line string, offered []string) bool {
	toks := promptTokenRe.FindAllString(line, -1)
	if len(toks) == 0 {
		return true
	}
	for _, tok := range toks {
		found := false
		for _, o := range offered {
			if strings.EqualFold(tok, o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

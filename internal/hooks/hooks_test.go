package hooks

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/mazeofme/maze/internal/profile"
)

func testProfile() *profile.Profile {
	return &profile.Profile{
		FullName: "Ada Lovelace",
		Birthday: "1815-10-19",
		Google: profile.Google{
			CalendarEvents: []profile.Event{
				{Summary: "Dentist", Start: "2026-10-17T15:00:00Z"},
				{Summary: "Concert", Start: "2026-10-24T20:00:00Z"},
			},
			YouTubeHistory: []profile.Video{{Title: "Cats"}, {Title: "Dogs"}, {Title: "Owls"}},
			Contacts:       []profile.Contact{{Name: "Charles"}},
		},
	}
}

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func TestBuild(t *testing.T) {
	s := Build(testProfile(), testNow, rand.New(rand.NewPCG(1, 2)), map[string]string{
		"last_utterance": "hello?",
		"empty":          "   ",
	})

	want := map[string]string{
		Name:             "Ada",
		Event:            "Dentist",
		Contact:          "Charles",
		"last_utterance": "hello?",
	}
	for k, v := range want {
		got, ok := s.Get(k)
		if !ok || got != v {
			t.Errorf("hook %s: expected %q, got %q (ok=%v)", k, v, got, ok)
		}
	}

	if _, ok := s.Get("empty"); ok {
		t.Error("empty extras must be dropped")
	}
	if _, ok := s.Get(Task); ok {
		t.Error("missing fact categories must not produce hooks")
	}

	up, ok := s.Get(Upcoming)
	if !ok || !strings.HasPrefix(up, "Dentist") {
		t.Errorf("expected soonest upcoming event first, got %q", up)
	}

	bday, ok := s.Get(Birthday)
	if !ok || bday != "your birthday, 2 days from now" {
		t.Errorf("unexpected birthday hook %q", bday)
	}

	for k, v := range s.Values() {
		if strings.TrimSpace(v) == "" {
			t.Errorf("hook %s has empty value", k)
		}
	}
}

func TestBuildNilProfile(t *testing.T) {
	s := Build(nil, testNow, nil, map[string]string{"last_utterance": "hi"})
	if s.Len() != 1 {
		t.Fatalf("expected only the extra hook, got %v", s.Names())
	}
	if _, _, ok := s.First(); !ok {
		t.Error("expected First to return the extra hook")
	}
}

func TestRotate(t *testing.T) {
	s := Build(testProfile(), testNow, nil, nil)

	first, _ := s.Get(YouTube)
	if !s.Rotate(YouTube) {
		t.Fatal("expected youtube hook to rotate")
	}
	second, _ := s.Get(YouTube)
	if first == second {
		t.Error("rotation should change the value")
	}

	if s.Rotate(Name) {
		t.Error("single-valued hook should not rotate")
	}
	if s.Rotate("missing") {
		t.Error("unknown hook should not rotate")
	}
}

func TestRotateOne(t *testing.T) {
	s := FromValues([]string{Name}, map[string]string{Name: "Ada"})
	if got := s.RotateOne(); got != "" {
		t.Errorf("expected no rotatable hook, got %q", got)
	}

	s = Build(testProfile(), testNow, nil, nil)
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		v, _ := s.Get(YouTube)
		seen[v] = true
		if got := s.RotateOne(); got == "" {
			t.Fatal("expected a hook to rotate")
		}
	}
	if len(seen) < 2 {
		t.Errorf("expected rotation to cycle values, saw %v", seen)
	}
}

func TestValidate(t *testing.T) {
	s := FromValues([]string{Name, Contact}, map[string]string{Name: "Ada", Contact: "Charles"})

	tests := []struct {
		name    string
		text    string
		want    string
		hook    string
		wantErr error
	}{
		{name: "ok", text: "Did {contact} follow you here?", want: "Did Charles follow you here?", hook: Contact},
		{name: "trims", text: "  {name}, wake up. ", want: "Ada, wake up.", hook: Name},
		{name: "empty", text: "   ", wantErr: ErrEmpty},
		{name: "no token", text: "The walls breathe.", wantErr: ErrNoToken},
		{name: "two tokens", text: "{name} and {contact}", wantErr: ErrMultipleTokens},
		{name: "unknown", text: "Remember {birthday}?", wantErr: ErrUnknownToken},
		{name: "unbalanced", text: "Remember {name", wantErr: ErrMalformedToken},
		{name: "stray brace", text: "{name} is }here", wantErr: ErrMalformedToken},
		{name: "bad name", text: "Remember {Name With Spaces}", wantErr: ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := s.Validate(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sub.Text != tt.want || sub.Hook != tt.hook {
				t.Errorf("expected (%q, %q), got (%q, %q)", tt.want, tt.hook, sub.Text, sub.Hook)
			}
		})
	}
}

func TestRender(t *testing.T) {
	s := FromValues([]string{Name}, map[string]string{Name: "Ada"})
	got := s.Render("{name} sees a {furniture}.")
	if got != "Ada sees a {furniture}." {
		t.Errorf("unexpected render %q", got)
	}
}

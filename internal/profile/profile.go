// Package profile reads the player profile written by the external
// collectors. The game never writes to it.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// ErrNoProfile is returned when the profile file does not exist.
var ErrNoProfile = errors.New("profile not found")

// Profile is the collected personalization data.
type Profile struct {
	FullName string  `json:"full_name"`
	Age      int     `json:"age,omitempty"`
	Birthday string  `json:"birthday,omitempty"` // YYYY-MM-DD
	Google   Google  `json:"google"`
	Spotify  Spotify `json:"spotify"`
}

// Google holds calendar, YouTube, contact and task data.
type Google struct {
	Profile        map[string]any `json:"profile,omitempty"`
	CalendarEvents []Event        `json:"calendar_events,omitempty"`
	YouTubeHistory []Video        `json:"youtube_history,omitempty"`
	Contacts       []Contact      `json:"contacts,omitempty"`
	Tasks          []Task         `json:"tasks,omitempty"`
}

// Event is a calendar entry. Start and End are RFC 3339 timestamps or plain
// dates for all-day events.
type Event struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end,omitempty"`
}

// Video is a YouTube history entry.
type Video struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Contact is a person the player knows.
type Contact struct {
	Name string `json:"name"`
}

// Task is a to-do item.
type Task struct {
	Title string `json:"title"`
}

// Spotify holds listening data.
type Spotify struct {
	TopTracks     []Track             `json:"top_tracks,omitempty"`
	AudioFeatures map[string]Features `json:"audio_features,omitempty"`
	Genres        []string            `json:"genres,omitempty"`
}

// Track is a Spotify top track.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	URI     string   `json:"uri,omitempty"`
}

// Artist returns the first credited artist.
func (t Track) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Features are Spotify audio features. Missing values stay nil.
type Features struct {
	Valence *float64 `json:"valence,omitempty"`
	Energy  *float64 `json:"energy,omitempty"`
}

// Load reads a profile from path.
func Load(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoProfile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unable to parse profile %s: %w", path, err)
	}
	return &p, nil
}

// FirstName returns the first word of the player's name.
func (p *Profile) FirstName() string {
	fields := strings.Fields(p.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// StartTime parses the event start.
func (e Event) StartTime() (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, e.Start); err == nil {
		return t, true
	}
	if len(e.Start) >= 10 {
		if t, err := time.ParseInLocation(time.DateOnly, e.Start[:10], time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TodayEvent returns the summary of the first event starting on now's date.
func (p *Profile) TodayEvent(now time.Time) string {
	today := now.Format(time.DateOnly)
	for _, ev := range p.Google.CalendarEvents {
		if strings.TrimSpace(ev.Summary) == "" {
			continue
		}
		if len(ev.Start) >= 10 && ev.Start[:10] == today {
			return ev.Summary
		}
	}
	return ""
}

// UpcomingEvents returns events starting after now and within the given
// window, soonest first.
func (p *Profile) UpcomingEvents(now time.Time, within time.Duration) []Event {
	var out []Event
	for _, ev := range p.Google.CalendarEvents {
		start, ok := ev.StartTime()
		if !ok || strings.TrimSpace(ev.Summary) == "" {
			continue
		}
		if start.After(now) && start.Sub(now) <= within {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].StartTime()
		b, _ := out[j].StartTime()
		return a.Before(b)
	})
	return out
}

// NextBirthday returns the next occurrence of the player's birthday on or
// after now's date.
func (p *Profile) NextBirthday(now time.Time) (time.Time, bool) {
	if p.Birthday == "" {
		return time.Time{}, false
	}
	b, err := time.ParseInLocation(time.DateOnly, p.Birthday, now.Location())
	if err != nil {
		return time.Time{}, false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := time.Date(now.Year(), b.Month(), b.Day(), 0, 0, 0, 0, now.Location())
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return next, true
}

// VideoTitles returns non-empty YouTube titles in history order.
func (p *Profile) VideoTitles() []string {
	out := make([]string, 0, len(p.Google.YouTubeHistory))
	for _, v := range p.Google.YouTubeHistory {
		if t := strings.TrimSpace(v.Title); t != "" && t != "Untitled" {
			out = append(out, t)
		}
	}
	return out
}

// ContactNames returns non-empty contact names.
func (p *Profile) ContactNames() []string {
	out := make([]string, 0, len(p.Google.Contacts))
	for _, c := range p.Google.Contacts {
		if n := strings.TrimSpace(c.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// TaskTitles returns non-empty task titles.
func (p *Profile) TaskTitles() []string {
	out := make([]string, 0, len(p.Google.Tasks))
	for _, t := range p.Google.Tasks {
		if s := strings.TrimSpace(t.Title); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Genres returns non-empty music genres.
func (p *Profile) Genres() []string {
	out := make([]string, 0, len(p.Spotify.Genres))
	for _, g := range p.Spotify.Genres {
		if s := strings.TrimSpace(g); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FeaturesFor returns the audio features recorded for a track id.
func (p *Profile) FeaturesFor(id string) (Features, bool) {
	f, ok := p.Spotify.AudioFeatures[id]
	return f, ok
}

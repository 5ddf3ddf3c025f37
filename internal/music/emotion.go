// Package music keeps audio ready ahead of the player: it buffers
// downloaded and transcoded tracks, picks tracks that fit a room's emotion
// and bounds the on-disk cache to the buffer plus one trailing track.
package music

import (
	"strings"

	"github.com/mazeofme/maze/internal/tracks"
)

// Emotions with a selection strategy.
const (
	Happy   = "happy"
	Sad     = "sad"
	Angry   = "angry"
	Neutral = "neutral"
	Dream   = "dream"
)

// Strategy classifies a track by its valence and energy.
type Strategy struct {
	Emotion string
	Match   func(valence, energy float64) bool
}

var strategies = map[string]Strategy{
	Happy: {Happy, func(v, _ float64) bool { return v > 0.7 }},
	Sad:   {Sad, func(v, _ float64) bool { return v < 0.3 }},
	Angry: {Angry, func(v, e float64) bool { return e > 0.7 && v < 0.4 }},
	Neutral: {Neutral, func(v, e float64) bool {
		return v >= 0.3 && v <= 0.7 && e <= 0.6
	}},
	Dream: {Dream, func(_, e float64) bool { return e < 0.4 }},
}

// StrategyFor returns the strategy for emotion.
func StrategyFor(emotion string) (Strategy, bool) {
	s, ok := strategies[strings.ToLower(strings.TrimSpace(emotion))]
	return s, ok
}

// Matches reports whether t fits emotion. Tracks without audio features
// are judged on the default valence and energy.
func Matches(t tracks.Track, emotion string) bool {
	s, ok := StrategyFor(emotion)
	if !ok {
		return false
	}
	v, e := t.Valence, t.Energy
	if !t.HasFeatures {
		v, e = tracks.DefaultFeature, tracks.DefaultFeature
	}
	return s.Match(v, e)
}

// Candidates returns the catalog indices matching emotion, or every index
// when nothing matches.
func Candidates(catalog []tracks.Track, emotion string) []int {
	var out []int
	for i, t := range catalog {
		if Matches(t, emotion) {
			out = append(out, i)
		}
	}
	if len(out) > 0 {
		return out
	}

	out = make([]int, len(catalog))
	for i := range catalog {
		out[i] = i
	}
	return out
}

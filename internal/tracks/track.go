// Package tracks builds the music catalog and fetches playable audio for a
// track: yt-dlp resolves and downloads, ffmpeg transcodes to WAV.
package tracks

import (
	"regexp"
	"strings"

	"github.com/mazeofme/maze/internal/profile"
)

// DefaultFeature is assumed for a missing valence or energy value.
const DefaultFeature = 0.5

// Track is one entry of the catalog. Index is its position in the catalog.
type Track struct {
	Index  int
	ID     string
	Title  string
	Artist string

	Valence     float64
	Energy      float64
	HasFeatures bool

	// LocalPath is set for tracks imported from a music directory.
	LocalPath string
}

// Query is the yt-dlp search for the track.
func (t Track) Query() string {
	if t.Artist == "" {
		return "ytsearch1:" + t.Title
	}
	return "ytsearch1:" + t.Artist + " - " + t.Title
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Key is the stable cache identifier of the track, safe to use as a file
// name stem.
func (t Track) Key() string {
	if k := strings.Trim(unsafeKey.ReplaceAllString(t.ID, "_"), "_-"); k != "" {
		return k
	}
	k := strings.Trim(unsafeKey.ReplaceAllString(strings.ToLower(t.Artist+"-"+t.Title), "_"), "_-")
	if k == "" {
		return "track"
	}
	return k
}

// String renders "Artist - Title".
func (t Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// FromProfile builds the catalog from the Spotify top tracks joined with
// their audio features. Tracks without a name are skipped.
func FromProfile(p *profile.Profile) []Track {
	if p == nil {
		return nil
	}

	out := make([]Track, 0, len(p.Spotify.TopTracks))
	for _, st := range p.Spotify.TopTracks {
		if strings.TrimSpace(st.Name) == "" {
			continue
		}
		t := Track{
			Index:   len(out),
			ID:      st.ID,
			Title:   st.Name,
			Artist:  st.Artist(),
			Valence: DefaultFeature,
			Energy:  DefaultFeature,
		}
		if f, ok := p.FeaturesFor(st.ID); ok {
			t.HasFeatures = true
			if f.Valence != nil {
				t.Valence = *f.Valence
			}
			if f.Energy != nil {
				t.Energy = *f.Energy
			}
		}
		out = append(out, t)
	}
	return out
}

// Reindex sets each track's Index to its position.
func Reindex(ts []Track) []Track {
	for i := range ts {
		ts[i].Index = i
	}
	return ts
}

package tracks

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/gitcha"
)

// AudioExtensions are the file patterns picked up by ScanLibrary.
var AudioExtensions = []string{"*.mp3", "*.flac", "*.ogg", "*.opus", "*.m4a", "*.wav", "*.webm"}

// ScanLibrary builds a catalog from audio files below dir. File names of the
// form "Artist - Title.ext" are split; anything else becomes the title.
// Library tracks carry no audio features.
func ScanLibrary(dir string) ([]Track, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to expand library path: %w", err)
	}

	ch, err := gitcha.FindAllFilesExcept(dir, AudioExtensions, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to scan music library: %w", err)
	}

	var out []Track
	for res := range ch {
		if res.Info != nil && res.Info.IsDir() {
			continue
		}
		artist, title := splitName(res.Path)
		rel, err := filepath.Rel(dir, res.Path)
		if err != nil {
			rel = filepath.Base(res.Path)
		}
		out = append(out, Track{
			ID:        "local_" + strings.TrimSuffix(rel, filepath.Ext(rel)),
			Title:     title,
			Artist:    artist,
			Valence:   DefaultFeature,
			Energy:    DefaultFeature,
			LocalPath: res.Path,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LocalPath < out[j].LocalPath
	})
	log.Debug("scanned music library", "dir", dir, "tracks", len(out))
	return Reindex(out), nil
}

func splitName(path string) (artist, title string) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if a, t, ok := strings.Cut(name, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", strings.TrimSpace(name)
}

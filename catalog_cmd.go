package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mazeofme/maze/internal/cache"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/profile"
	"github.com/mazeofme/maze/internal/tracks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var catalogEmotions = []string{music.Happy, music.Sad, music.Angry, music.Neutral, music.Dream}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the tracks the maze can play",
	Long: paragraph(fmt.Sprintf("\n%s the music catalog with the moods each track fits and whether it is cached.",
		keyword("List"))),
	Example: paragraph("maze catalog\nmaze catalog --emotion sad\nmaze catalog --music-dir ~/Music"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		emotion, _ := cmd.Flags().GetString("emotion")
		if dir, _ := cmd.Flags().GetString("music-dir"); dir != "" {
			viper.Set("music.dir", dir)
		}

		var p *profile.Profile
		if viper.GetString("music.dir") == "" {
			var err error
			p, err = profile.Load(expandPath(viper.GetString("profile")))
			if err != nil {
				return err
			}
		}
		catalog, err := loadCatalog(p)
		if err != nil {
			return err
		}

		tc, err := cache.OpenTrackCache(cacheDir(), 0)
		if err != nil {
			return err
		}
		cached := make(map[string]int64)
		for _, e := range tc.Entries() {
			cached[e.Key] = e.Size
		}
		_ = tc.Close()

		return printCatalog(cmd.OutOrStdout(), catalog, cached, emotion)
	},
}

func init() {
	catalogCmd.Flags().StringP("emotion", "e", "", "only tracks chosen for this room mood")
	catalogCmd.Flags().String("music-dir", "", "list a local music directory instead of the profile's top tracks")
}

// printCatalog lists catalog, marking tracks whose key is in cached.
func printCatalog(w io.Writer, catalog []tracks.Track, cached map[string]int64, emotion string) error {
	if len(catalog) == 0 {
		_, err := fmt.Fprintln(w, "The catalog is empty.")
		return err
	}

	indices := make([]int, len(catalog))
	for i := range catalog {
		indices[i] = i
	}
	if emotion != "" {
		indices = music.Candidates(catalog, emotion)
	}

	title := cases.Title(language.English)
	var cachedBytes int64
	for _, i := range indices {
		t := catalog[i]

		var moods []string
		for _, e := range catalogEmotions {
			if music.Matches(t, e) {
				moods = append(moods, title.String(e))
			}
		}
		mood := strings.Join(moods, ", ")
		if !t.HasFeatures {
			mood = "any"
		}

		mark := " "
		if size, ok := cached[t.Key()]; ok {
			mark = "*"
			cachedBytes += size
		}
		if _, err := fmt.Fprintf(w, "%3d %s %-48s %s\n", t.Index, mark, t.String(), mood); err != nil {
			return fmt.Errorf("unable to write to writer: %w", err)
		}
	}

	_, err := fmt.Fprintf(w, "\n%d %s, %s cached\n",
		len(indices), pluralize(len(indices), "track", "tracks"), humanize.Bytes(uint64(max(0, cachedBytes)))) //nolint:gosec
	return err
}

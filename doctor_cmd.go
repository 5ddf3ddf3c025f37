package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mazeofme/maze/internal/audio"
	"github.com/mazeofme/maze/internal/cache"
	"github.com/mazeofme/maze/internal/profile"
	"github.com/mazeofme/maze/internal/tracks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const toneLength = time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that everything the game needs is in place",
	Long: paragraph(fmt.Sprintf("\n%s the profile, the music tools, the track cache and the generator settings. With --tone, play a short test tone.",
		keyword("Check"))),
	Example: paragraph("maze doctor\nmaze doctor --tone"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tone, _ := cmd.Flags().GetBool("tone")
		d := doctor{w: cmd.OutOrStdout()}
		d.run(tone)
		if d.failed > 0 {
			return fmt.Errorf("%d %s failed", d.failed, pluralize(d.failed, "check", "checks"))
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().Bool("tone", false, "play a test tone on the audio device")
}

type doctor struct {
	w      io.Writer
	failed int
}

func (d *doctor) ok(name, detail string) {
	fmt.Fprintf(d.w, "%s  %-10s %s\n", keyword("ok"), name, detail)
}

func (d *doctor) fail(name string, err error) {
	d.failed++
	fmt.Fprintf(d.w, "!!  %-10s %v\n", name, err)
}

func (d *doctor) run(tone bool) {
	path := expandPath(viper.GetString("profile"))
	if p, err := profile.Load(path); err != nil {
		d.fail("profile", err)
	} else {
		d.ok("profile", fmt.Sprintf("%s (%d tracks, %d contacts)", path, len(tracks.FromProfile(p)), len(p.ContactNames())))
	}

	tools := tracks.CheckTools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := tools[name]; err != nil {
			d.fail(name, err)
		} else {
			d.ok(name, "found")
		}
	}

	if tc, err := cache.OpenTrackCache(cacheDir(), viper.GetInt64("cache.max_size")<<20); err != nil {
		d.fail("cache", err)
	} else {
		st := tc.Stats()
		d.ok("cache", fmt.Sprintf("%s, %d tracks, %s", tc.RawDir(), st.ItemCount, humanize.Bytes(uint64(max(0, st.Size))))) //nolint:gosec
		_ = tc.Close()
	}

	backend := viper.GetString("generator.backend")
	if err := checkBackend(backend); err != nil {
		d.fail("generator", err)
	} else {
		d.ok("generator", backend)
	}

	if tone {
		if err := playTone(); err != nil {
			d.fail("audio", err)
		} else {
			d.ok("audio", "played a test tone")
		}
	}
}

func checkBackend(backend string) error {
	if err := validateBackend(backend); err != nil {
		return err
	}
	switch backend {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
	case "gemini":
		if firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")) == "" {
			return fmt.Errorf("GEMINI_API_KEY is not set")
		}
	}
	return nil
}

// playTone writes a short sine wave to a WAV file and plays it.
func playTone() error {
	cfg := audio.DefaultPlayerConfig()
	format := cache.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels, BitsPerSample: cfg.BitDepth}

	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, sineWave(format, 440, toneLength), format); err != nil {
		return err
	}
	path := filepath.Join(os.TempDir(), "maze-tone.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("unable to write test tone: %w", err)
	}
	defer os.Remove(path) //nolint:errcheck

	p, err := audio.NewPlayer(cfg)
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	if err := p.Play(path); err != nil {
		return err
	}
	deadline := time.Now().Add(toneLength + time.Second)
	for p.IsBusy() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// sineWave returns signed 16-bit little-endian PCM at a quarter of full
// scale.
func sineWave(f cache.Format, freq float64, d time.Duration) []byte {
	frames := int(float64(f.SampleRate) * d.Seconds())
	pcm := make([]byte, frames*f.Channels*2)
	for i := range frames {
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate)) * math.MaxInt16 / 4)
		for c := range f.Channels {
			binary.LittleEndian.PutUint16(pcm[(i*f.Channels+c)*2:], uint16(v)) //nolint:gosec
		}
	}
	return pcm
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

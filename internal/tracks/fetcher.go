package tracks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Fetcher turns a catalog track into a playable file. Both steps are
// fallible and may block for a long time.
type Fetcher interface {
	// Resolve finds the track's source audio and materializes it in the
	// raw directory, returning its path.
	Resolve(ctx context.Context, t Track) (string, error)

	// Transcode converts raw audio to a playable WAV file.
	Transcode(ctx context.Context, rawPath string) (string, error)
}

// Default time budgets for the external tools.
const (
	DefaultResolveTimeout   = 90 * time.Second
	DefaultTranscodeTimeout = 60 * time.Second
)

// Downloader fetches tracks with yt-dlp and transcodes them with ffmpeg.
// Files are named after the track key, so fetching the same track twice
// reuses the files already on disk.
type Downloader struct {
	RawDir string
	WavDir string

	YTDLP  string
	FFmpeg string

	ResolveTimeout   time.Duration
	TranscodeTimeout time.Duration

	Runner Runner
}

// NewDownloader returns a downloader writing into rawDir and wavDir.
func NewDownloader(rawDir, wavDir string) *Downloader {
	return &Downloader{
		RawDir:           rawDir,
		WavDir:           wavDir,
		YTDLP:            "yt-dlp",
		FFmpeg:           "ffmpeg",
		ResolveTimeout:   DefaultResolveTimeout,
		TranscodeTimeout: DefaultTranscodeTimeout,
		Runner:           ExecRunner{},
	}
}

// Resolve downloads the best audio stream of the first search hit, or copies
// a local library file into the raw directory.
func (d *Downloader) Resolve(ctx context.Context, t Track) (string, error) {
	key := t.Key()
	if existing := d.findRaw(key); existing != "" {
		log.Debug("raw audio already on disk", "track", t.String(), "path", existing)
		return existing, nil
	}

	if t.LocalPath != "" {
		dst := filepath.Join(d.RawDir, key+strings.ToLower(filepath.Ext(t.LocalPath)))
		if err := copyFile(t.LocalPath, dst); err != nil {
			return "", &FetchError{Stage: StageImport, Track: t.String(), Cause: err}
		}
		return dst, nil
	}

	args := []string{
		"--format", "bestaudio",
		"--quiet",
		"--no-playlist",
		"--no-progress",
		"--no-simulate",
		"--print", "after_move:filepath",
		"--output", filepath.Join(d.RawDir, key+".%(ext)s"),
		t.Query(),
	}

	start := time.Now()
	out, err := d.Runner.Run(ctx, d.ResolveTimeout, d.YTDLP, args...)
	if err != nil {
		return "", &FetchError{Stage: StageResolve, Track: t.String(), Cause: err}
	}

	path := lastLine(string(out))
	if path == "" {
		path = d.findRaw(key)
	}
	if path == "" {
		return "", &FetchError{Stage: StageResolve, Track: t.String(), Cause: ErrNoOutput}
	}

	log.Debug("downloaded track", "track", t.String(), "path", path, "duration", time.Since(start))
	return path, nil
}

// Transcode converts rawPath to 16-bit 44.1kHz stereo WAV named after the
// raw file's stem. An existing WAV is reused.
func (d *Downloader) Transcode(ctx context.Context, rawPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	dst := filepath.Join(d.WavDir, stem+".wav")
	if fi, err := os.Stat(dst); err == nil && fi.Size() > 0 {
		return dst, nil
	}

	// ffmpeg picks the muxer from the extension, so the temp file keeps .wav.
	tmp := filepath.Join(d.WavDir, stem+".part.wav")
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", rawPath,
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		tmp,
	}

	if _, err := d.Runner.Run(ctx, d.TranscodeTimeout, d.FFmpeg, args...); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", &FetchError{Stage: StageTranscode, Track: stem, Cause: err}
	}
	if fi, err := os.Stat(tmp); err != nil || fi.Size() == 0 {
		os.Remove(tmp) //nolint:errcheck
		return "", &FetchError{Stage: StageTranscode, Track: stem, Cause: ErrNoOutput}
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", &FetchError{Stage: StageTranscode, Track: stem, Cause: err}
	}
	return dst, nil
}

// findRaw returns a finished raw file for key, if any.
func (d *Downloader) findRaw(key string) string {
	matches, err := filepath.Glob(filepath.Join(d.RawDir, key+".*"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		switch filepath.Ext(m) {
		case ".part", ".ytdl", ".tmp":
			continue
		}
		if fi, err := os.Stat(m); err == nil && fi.Size() > 0 {
			return m
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()    //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("copy failed: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return os.Rename(tmp, dst)
}

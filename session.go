package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/audio"
	"github.com/mazeofme/maze/internal/cache"
	"github.com/mazeofme/maze/internal/game"
	"github.com/mazeofme/maze/internal/generator"
	"github.com/mazeofme/maze/internal/journal"
	"github.com/mazeofme/maze/internal/music"
	"github.com/mazeofme/maze/internal/narrative"
	"github.com/mazeofme/maze/internal/observability"
	"github.com/mazeofme/maze/internal/profile"
	"github.com/mazeofme/maze/internal/tracks"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// session owns everything one run of the game opens.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	engine *game.Engine

	closers []func() error
}

func newSession(parent context.Context) (_ *session, err error) {
	id := journal.NewSessionID()
	ctx, cancel := context.WithCancel(generator.WithSessionID(parent, id))
	s := &session{id: id, ctx: ctx, cancel: cancel}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	log.Info("starting session", "id", id, "version", Version)

	if err := s.initTracing(); err != nil {
		return nil, err
	}

	store, err := profile.NewStore(expandPath(viper.GetString("profile")))
	if err != nil {
		return nil, fmt.Errorf("unable to load profile: %w", err)
	}
	if err := store.Watch(ctx, func(p *profile.Profile) {
		log.Info("profile reloaded", "name", p.FirstName())
	}); err != nil {
		log.Warn("unable to watch profile", "error", err)
	}

	gen, err := s.newGenerator()
	if err != nil {
		return nil, err
	}
	narrator := narrative.New(gen, store, narrative.Config{
		TalkTimeout: viper.GetDuration("narrative.talk_timeout"),
	})

	var mp *music.Prefetcher
	if !viper.GetBool("music.disabled") {
		mp, err = s.newMusic(store.Get())
		if err != nil {
			return nil, err
		}
	}

	var j *journal.Journal
	if viper.GetBool("journal.enabled") {
		j, err = journal.Open(journalDir(), id, 0)
		if err != nil {
			log.Warn("journal disabled", "error", err)
			j = nil
		}
	}

	s.engine = game.New(game.Config{
		Narrator: narrator,
		Music:    mp,
		Journal:  j,
	})
	// The engine stops the music before the device and cache are closed.
	s.closers = append(s.closers, s.engine.Close)
	return s, nil
}

func (s *session) initTracing() error {
	cfg, err := observability.LoadConfigFromEnv(Version)
	if err != nil {
		return err
	}
	tp, err := observability.InitTracing(s.ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to start tracing: %w", err)
	}
	s.closers = append(s.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	})
	return nil
}

func (s *session) newGenerator() (generator.Generator, error) {
	backend := viper.GetString("generator.backend")
	g, err := generator.New(s.ctx, generator.Config{
		Backend:           backend,
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       viper.GetString("generator.openai.model"),
		LocalURL:          viper.GetString("generator.local.url"),
		LocalModel:        viper.GetString("generator.local.model"),
		GeminiKey:         firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:       viper.GetString("generator.gemini.model"),
		RequestsPerMinute: viper.GetInt("generator.requests_per_minute"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create generator: %w", err)
	}
	if c, ok := g.(io.Closer); ok {
		s.closers = append(s.closers, c.Close)
	}
	log.Info("using generator", "backend", backend)

	if backend != generator.BackendScripted && viper.GetBool("generator.offline_fallback") {
		g = generator.NewFallback(g, generator.NewScripted(generator.OfflineLines...), viper.GetInt("generator.max_failures"))
	}

	if viper.GetBool("generator.log_completions") {
		store, err := generator.OpenCompletionStore(dataPath("completions.db"))
		if err != nil {
			log.Warn("completion log disabled", "error", err)
			return g, nil
		}
		s.closers = append(s.closers, store.Close)
		g = generator.NewLogged(g, store)
	}
	return g, nil
}

func (s *session) newMusic(p *profile.Profile) (*music.Prefetcher, error) {
	catalog, err := loadCatalog(p)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		log.Info("no tracks in the catalog, music disabled")
		return nil, nil
	}

	tc, err := openTrackCache()
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, tc.Close)

	for name, err := range tracks.CheckTools() {
		if err != nil {
			log.Warn("music tool missing, tracks will fail to load", "tool", name)
		}
	}

	sink := newSink()
	if c, ok := sink.(io.Closer); ok {
		s.closers = append(s.closers, c.Close)
	}

	mp := music.New(catalog, tracks.NewDownloader(tc.RawDir(), tc.WavDir()), tc, sink, music.Config{
		PlayWait: viper.GetDuration("music.play_wait"),
		Ahead:    viper.GetInt("music.ahead"),
	})
	mp.Start(s.ctx)
	log.Info("music ready", "tracks", len(catalog), "cache", tc.RawDir())
	return mp, nil
}

func newSink() audio.Sink {
	if viper.GetBool("music.silent") {
		return &audio.Silent{}
	}
	p, err := audio.NewPlayer(audio.DefaultPlayerConfig())
	if err != nil {
		log.Warn("no audio device, music stays silent", "error", err)
		return &audio.Silent{}
	}
	return p
}

func loadCatalog(p *profile.Profile) ([]tracks.Track, error) {
	if dir := viper.GetString("music.dir"); dir != "" {
		ts, err := tracks.ScanLibrary(expandPath(dir))
		if err != nil {
			return nil, err
		}
		return ts, nil
	}
	return tracks.FromProfile(p), nil
}

// openTrackCache opens the audio cache and drops files older than
// cache.max_age.
func openTrackCache() (*cache.TrackCache, error) {
	tc, err := cache.OpenTrackCache(cacheDir(), viper.GetInt64("cache.max_size")<<20)
	if err != nil {
		return nil, fmt.Errorf("unable to open track cache: %w", err)
	}
	if age := viper.GetDuration("cache.max_age"); age > 0 {
		if n := tc.RemoveOlderThan(time.Now().Add(-age)); n > 0 {
			log.Info("removed stale tracks", "count", n)
		}
	}
	return tc, nil
}

// Close releases everything in reverse order of opening.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	s.cancel()
	return errors.Join(errs...)
}

func cacheDir() string {
	if dir := viper.GetString("cache.dir"); dir != "" {
		return expandPath(dir)
	}
	dir, err := gap.NewScope(gap.User, "maze").CacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "maze", "audio")
	}
	return filepath.Join(dir, "audio")
}

func dataPath(name string) string {
	if dir := viper.GetString("data.dir"); dir != "" {
		return filepath.Join(expandPath(dir), name)
	}
	p, err := gap.NewScope(gap.User, "maze").DataPath(name)
	if err != nil {
		return filepath.Join(os.TempDir(), "maze", name)
	}
	return p
}

func journalDir() string {
	return dataPath("journal")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

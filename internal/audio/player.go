package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/mazeofme/maze/internal/cache"
)

// Player plays WAV files through a single oto context. Decoded PCM is kept
// in an LRU so a replayed file skips decoding.
type Player struct {
	context *oto.Context
	player  *oto.Player

	// The oto player reads from this buffer; it must stay referenced while
	// playing.
	active []byte
	path   string

	state  atomic.Int32  // PlayerState
	volume atomic.Uint64 // math.Float64bits

	startTime time.Time

	mu sync.Mutex

	sampleRate int
	channels   int

	pcm *cache.PCMCache
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int   // 44100 or 48000 Hz only
	Channels   int   // 1 = mono, 2 = stereo
	BitDepth   int   // 16 bits per sample
	BufferSize int   // bytes
	CacheBytes int64 // decoded PCM kept in memory
}

// DefaultPlayerConfig matches the transcoder output.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
		BufferSize: 8192,
		CacheBytes: 128 << 20,
	}
}

func validateConfig(config PlayerConfig) error {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// NewPlayer opens the audio device. Only one oto context may exist per
// process, so only one Player should be created.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	if config.CacheBytes <= 0 {
		config.CacheBytes = DefaultPlayerConfig().CacheBytes
	}

	p := &Player{
		context:    ctx,
		sampleRate: config.SampleRate,
		channels:   config.Channels,
		pcm:        cache.NewPCMCache(config.CacheBytes),
	}
	p.state.Store(int32(StateStopped))
	p.volume.Store(math.Float64bits(1.0))
	return p, nil
}

// Play decodes the WAV file at path and starts playing it, replacing any
// current playback.
func (p *Player) Play(path string) error {
	if PlayerState(p.state.Load()) == StateClosed {
		return ErrPlayerClosed
	}

	pcm, format, err := p.load(path)
	if err != nil {
		return err
	}
	if format.SampleRate != p.sampleRate || format.Channels != p.channels || format.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d Hz, %d channels, %d bits", ErrUnsupportedFormat,
			format.SampleRate, format.Channels, format.BitsPerSample)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(math.Float64frombits(p.volume.Load()))

	p.player = player
	p.active = pcm
	p.path = path
	p.startTime = time.Now()

	player.Play()
	p.state.Store(int32(StatePlaying))

	log.Debug("playing", "path", path, "bytes", len(pcm))
	return nil
}

func (p *Player) load(path string) ([]byte, cache.Format, error) {
	if pcm, format, ok := p.pcm.Get(path); ok {
		return pcm, format, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, cache.Format{}, fmt.Errorf("unable to open audio: %w", err)
	}
	defer f.Close() //nolint:errcheck

	pcm, format, err := DecodeWAV(bufio.NewReader(f))
	if err != nil {
		return nil, cache.Format{}, fmt.Errorf("unable to decode %s: %w", path, err)
	}
	if err := p.pcm.Put(path, pcm, format); err != nil {
		log.Debug("not caching decoded audio", "path", path, "err", err)
	}
	return pcm, format, nil
}

// Stop stops playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.player != nil {
		p.player.Pause()
		if err := p.player.Close(); err != nil {
			log.Debug("unable to close oto player", "err", err)
		}
		p.player = nil
	}
	p.active = nil
	p.path = ""
	if PlayerState(p.state.Load()) != StateClosed {
		p.state.Store(int32(StateStopped))
	}
}

// Pause pauses playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PlayerState(p.state.Load()) != StatePlaying || p.player == nil {
		return fmt.Errorf("cannot pause: player is %s", PlayerState(p.state.Load()))
	}
	p.player.Pause()
	p.state.Store(int32(StatePaused))
	return nil
}

// Resume resumes paused playback.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PlayerState(p.state.Load()) != StatePaused || p.player == nil {
		return fmt.Errorf("cannot resume: player is %s", PlayerState(p.state.Load()))
	}
	p.player.Play()
	p.state.Store(int32(StatePlaying))
	return nil
}

// IsBusy reports whether audio is still coming out.
func (p *Player) IsBusy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PlayerState(p.state.Load()) != StatePlaying || p.player == nil {
		return false
	}
	if !p.player.IsPlaying() {
		p.stopLocked()
		return false
	}
	return true
}

// Current returns the playing path and how long it has played.
func (p *Player) Current() (string, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return "", 0
	}
	return p.path, time.Since(p.startTime)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(math.Float64bits(volume))

	p.mu.Lock()
	if p.player != nil {
		p.player.SetVolume(volume)
	}
	p.mu.Unlock()
	return nil
}

// Volume returns the playback volume.
func (p *Player) Volume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Forget drops decoded audio for path.
func (p *Player) Forget(path string) {
	p.pcm.Delete(path)
}

// State returns the current player state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// Close stops playback. oto keeps the device open until the process exits.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.state.Store(int32(StateClosed))
	return nil
}

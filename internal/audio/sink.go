package audio

import (
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	// ErrPlayerClosed is returned by a player after Close.
	ErrPlayerClosed = errors.New("player is closed")

	// ErrUnsupportedFormat is returned for audio the output cannot play.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrEmptyAudio is returned for files without samples.
	ErrEmptyAudio = errors.New("audio data is empty")
)

// Sink plays audio files. Play replaces whatever is playing.
type Sink interface {
	Play(path string) error
	Stop() error
	IsBusy() bool
}

// Forgetter is implemented by sinks that keep decoded audio around; the
// music prefetcher calls Forget when it deletes a file.
type Forgetter interface {
	Forget(path string)
}

// PlayerState represents the current state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the state name.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Silent is a sink for sessions without an audio device. It remembers the
// last path so the status bar can still name the track.
type Silent struct {
	last atomic.Value // string
}

// Play records path.
func (s *Silent) Play(path string) error {
	s.last.Store(path)
	log.Debug("silent sink", "path", path)
	return nil
}

// Stop is a no-op.
func (s *Silent) Stop() error { return nil }

// IsBusy is always false.
func (s *Silent) IsBusy() bool { return false }

// Last returns the last path passed to Play.
func (s *Silent) Last() string {
	v, _ := s.last.Load().(string)
	return v
}

package tracks

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrToolMissing is returned when yt-dlp or ffmpeg is not installed.
	ErrToolMissing = errors.New("external tool not found")

	// ErrNoOutput is returned when a tool exits cleanly without producing
	// a file.
	ErrNoOutput = errors.New("tool produced no output")

	// ErrTimeout is returned when a tool exceeds its time budget.
	ErrTimeout = errors.New("tool timed out")
)

// Stage names the step of a fetch that failed.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageTranscode Stage = "transcode"
	StageImport    Stage = "import"
)

// FetchError reports a failed fetch step for a track.
type FetchError struct {
	Stage Stage
	Track string
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Track, e.Cause)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether trying again later could succeed. Missing
// tools never recover within a session.
func (e *FetchError) IsRetryable() bool {
	switch {
	case errors.Is(e.Cause, ErrToolMissing):
		return false
	case errors.Is(e.Cause, ErrTimeout), errors.Is(e.Cause, context.DeadlineExceeded):
		return true
	default:
		return e.Stage == StageResolve
	}
}

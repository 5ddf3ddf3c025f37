package tracks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// killGrace is how long a process gets to exit after the interrupt.
const killGrace = 100 * time.Millisecond

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses in their own process group so a
// timeout also stops any children they spawned.
type ExecRunner struct{}

// Run starts name with args and waits for it or for the timeout. On timeout
// the process group is interrupted, then killed after a short grace period.
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(path, args...)
	cmd.Stdin = strings.NewReader("")
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, lastLine(stderr.String()))
		}
		return stdout.Bytes(), nil

	case <-ctx.Done():
		if err := interruptProcess(cmd); err != nil {
			log.Debug("unable to interrupt process", "cmd", name, "err", err)
		}
		select {
		case <-done:
		case <-time.After(killGrace):
			if err := killProcess(cmd); err != nil {
				log.Debug("unable to kill process", "cmd", name, "err", err)
			}
			<-done
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, timeout)
		}
		return nil, ctx.Err()
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// CheckTools reports, for each tool the downloader needs, where it was found
// or the lookup error.
func CheckTools(names ...string) map[string]error {
	if len(names) == 0 {
		names = []string{"yt-dlp", "ffmpeg"}
	}
	out := make(map[string]error, len(names))
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			out[name] = fmt.Errorf("%w: %s", ErrToolMissing, name)
			continue
		}
		out[name] = nil
	}
	return out
}

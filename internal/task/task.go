// Package task provides a handle for at most one logically in-flight
// background build per pipeline.
package task

import (
	"sync"
	"time"
)

// Handle tracks the most recently started background function. Starting a
// new one does not cancel the previous; callers join with a bounded Wait
// before starting the next.
type Handle struct {
	mu      sync.Mutex
	done    chan struct{}
	started int64
}

// Go runs fn in a new goroutine and makes it the tracked task.
func (h *Handle) Go(fn func()) {
	done := make(chan struct{})

	h.mu.Lock()
	h.done = done
	h.started++
	h.mu.Unlock()

	go func() {
		defer close(done)
		fn()
	}()
}

// Wait blocks until the tracked task finishes or d elapses. It reports
// whether the task is finished. With no task it returns true immediately.
func (h *Handle) Wait(d time.Duration) bool {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	if done == nil {
		return true
	}

	select {
	case <-done:
		return true
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Running reports whether the tracked task is still running.
func (h *Handle) Running() bool {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Started returns how many tasks have been started on the handle.
func (h *Handle) Started() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

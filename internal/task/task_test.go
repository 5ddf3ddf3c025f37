package task

import (
	"testing"
	"time"
)

func TestHandleEmpty(t *testing.T) {
	var h Handle
	if h.Running() {
		t.Error("empty handle should not be running")
	}
	if !h.Wait(time.Millisecond) {
		t.Error("wait on empty handle should succeed immediately")
	}
}

func TestHandleWaitFinishes(t *testing.T) {
	var h Handle
	h.Go(func() { time.Sleep(5 * time.Millisecond) })

	if !h.Wait(time.Second) {
		t.Fatal("expected task to finish within the wait")
	}
	if h.Running() {
		t.Error("finished task should not be running")
	}
}

func TestHandleWaitTimesOut(t *testing.T) {
	var h Handle
	release := make(chan struct{})
	h.Go(func() { <-release })
	defer close(release)

	start := time.Now()
	if h.Wait(20 * time.Millisecond) {
		t.Fatal("expected bounded wait to give up")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wait took too long: %v", elapsed)
	}
	if !h.Running() {
		t.Error("blocked task should still be running")
	}
}

func TestHandleTracksLatest(t *testing.T) {
	var h Handle
	slow := make(chan struct{})
	h.Go(func() { <-slow })
	h.Go(func() {})

	// the latest task finishes even though the first is still blocked
	if !h.Wait(time.Second) {
		t.Error("expected latest task to be tracked")
	}
	if h.Started() != 2 {
		t.Errorf("expected 2 started tasks, got %d", h.Started())
	}
	close(slow)
}

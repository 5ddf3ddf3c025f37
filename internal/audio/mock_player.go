package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer is a Sink for tests. It records played paths and reports busy
// for a simulated track length.
type MockPlayer struct {
	state     atomic.Int32 // PlayerState
	startTime time.Time
	length    time.Duration

	played    []string
	forgotten []string

	callbacks MockCallbacks
	failWith  error

	mu sync.Mutex

	playCount atomic.Int64
	stopCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay func(path string)
	OnStop func()
}

// MockPlayerMetrics contains playback counters.
type MockPlayerMetrics struct {
	PlayCount int64
	StopCount int64
}

// NewMockPlayer returns a mock whose tracks last length.
func NewMockPlayer(length time.Duration, callbacks MockCallbacks) *MockPlayer {
	mp := &MockPlayer{length: length, callbacks: callbacks}
	mp.state.Store(int32(StateStopped))
	return mp
}

// Play records path and marks the mock busy.
func (mp *MockPlayer) Play(path string) error {
	mp.mu.Lock()
	if PlayerState(mp.state.Load()) == StateClosed {
		mp.mu.Unlock()
		return ErrPlayerClosed
	}
	if mp.failWith != nil {
		err := mp.failWith
		mp.mu.Unlock()
		return err
	}

	mp.played = append(mp.played, path)
	mp.startTime = time.Now()
	mp.state.Store(int32(StatePlaying))
	mp.playCount.Add(1)
	cb := mp.callbacks.OnPlay
	mp.mu.Unlock()

	if cb != nil {
		cb(path)
	}
	return nil
}

// Stop ends simulated playback.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	if PlayerState(mp.state.Load()) == StatePlaying {
		mp.state.Store(int32(StateStopped))
	}
	mp.stopCount.Add(1)
	cb := mp.callbacks.OnStop
	mp.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// IsBusy reports whether the simulated track is still playing.
func (mp *MockPlayer) IsBusy() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if PlayerState(mp.state.Load()) != StatePlaying {
		return false
	}
	if mp.length > 0 && time.Since(mp.startTime) >= mp.length {
		mp.state.Store(int32(StateStopped))
		return false
	}
	return true
}

// Forget records path.
func (mp *MockPlayer) Forget(path string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.forgotten = append(mp.forgotten, path)
}

// Close marks the mock closed.
func (mp *MockPlayer) Close() error {
	mp.state.Store(int32(StateClosed))
	return nil
}

// SetFailure makes every following Play return err. A nil err clears it.
func (mp *MockPlayer) SetFailure(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failWith = err
}

// Played returns the played paths in order.
func (mp *MockPlayer) Played() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]string(nil), mp.played...)
}

// Forgotten returns the paths passed to Forget.
func (mp *MockPlayer) Forgotten() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]string(nil), mp.forgotten...)
}

// State returns the current state.
func (mp *MockPlayer) State() PlayerState {
	return PlayerState(mp.state.Load())
}

// Metrics returns playback counters.
func (mp *MockPlayer) Metrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		PlayCount: mp.playCount.Load(),
		StopCount: mp.stopCount.Load(),
	}
}

// WaitForPlays waits until at least n plays happened.
func (mp *MockPlayer) WaitForPlays(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if mp.playCount.Load() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return mp.playCount.Load() >= n
}

// Package recency keeps bounded windows of recently generated content so that
// builders can steer retries away from immediate repeats.
package recency

import "sync"

// Default window capacities.
const (
	RoomCapacity     = 40
	DialogueCapacity = 30
)

// Window is a fixed-capacity FIFO of strings. Recording beyond capacity
// evicts the oldest entry. A Window never guarantees uniqueness; it only
// answers whether a value was seen recently.
type Window struct {
	mu       sync.RWMutex
	capacity int
	items    []string
	counts   map[string]int
}

// New returns a window holding at most capacity entries. A capacity below one
// is treated as one.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		items:    make([]string, 0, capacity),
		counts:   make(map[string]int, capacity),
	}
}

// Contains reports whether s is currently in the window.
func (w *Window) Contains(s string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.counts[s] > 0
}

// Record appends s, evicting the oldest entries beyond capacity.
func (w *Window) Record(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = append(w.items, s)
	w.counts[s]++

	for len(w.items) > w.capacity {
		oldest := w.items[0]
		w.items = w.items[1:]
		if w.counts[oldest]--; w.counts[oldest] <= 0 {
			delete(w.counts, oldest)
		}
	}
}

// Len returns the number of entries in the window.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.items)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Items returns a copy of the entries, oldest first.
func (w *Window) Items() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, len(w.items))
	copy(out, w.items)
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = w.items[:0]
	w.counts = make(map[string]int, w.capacity)
}

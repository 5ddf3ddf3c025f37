package queue

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the buffer is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed
	// queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrDuplicate is returned when an index is already buffered.
	ErrDuplicate = errors.New("index already buffered")
)

// Ready maps a track index to its playable file and remembers the order in
// which indices became ready. It is safe for concurrent use.
type Ready struct {
	maxSize int

	paths map[int]string
	order []int

	mu sync.Mutex

	closed bool
	stats  Stats
}

// Stats tracks buffer metrics.
type Stats struct {
	TotalBuffered int64
	TotalTaken    int64
	TotalDropped  int64
	CurrentSize   int
	PeakSize      int
	LastBuffered  time.Time
	LastTaken     time.Time
}

// NewReady returns a buffer holding at most maxSize entries. maxSize below
// one means unbounded.
func NewReady(maxSize int) *Ready {
	return &Ready{
		maxSize: maxSize,
		paths:   make(map[int]string),
	}
}

// Put buffers path for index and appends index to the ready order.
func (q *Ready) Put(index int, path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.paths[index]; ok {
		q.stats.TotalDropped++
		return ErrDuplicate
	}
	if q.maxSize > 0 && len(q.order) >= q.maxSize {
		q.stats.TotalDropped++
		return ErrQueueFull
	}

	q.paths[index] = path
	q.order = append(q.order, index)

	q.stats.TotalBuffered++
	q.stats.LastBuffered = time.Now()
	q.stats.CurrentSize = len(q.order)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}
	return nil
}

// Take removes index from the buffer and returns its path.
func (q *Ready) Take(index int) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	path, ok := q.paths[index]
	if !ok {
		return "", false
	}
	delete(q.paths, index)
	for i, idx := range q.order {
		if idx == index {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	q.stats.TotalTaken++
	q.stats.LastTaken = time.Now()
	q.stats.CurrentSize = len(q.order)
	return path, true
}

// Contains reports whether index is buffered.
func (q *Ready) Contains(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.paths[index]
	return ok
}

// Path returns the buffered path of index without removing it.
func (q *Ready) Path(index int) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.paths[index]
	return p, ok
}

// Indices returns buffered indices, oldest first.
func (q *Ready) Indices() []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]int(nil), q.order...)
}

// Len returns the number of buffered entries.
func (q *Ready) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.order)
}

// Full reports whether Put would be rejected for lack of space.
func (q *Ready) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.maxSize > 0 && len(q.order) >= q.maxSize
}

// Clear empties the buffer and returns the paths that were held.
func (q *Ready) Clear() map[int]string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.paths
	q.paths = make(map[int]string)
	q.order = nil
	q.stats.CurrentSize = 0
	return out
}

// Stats returns buffer metrics.
func (q *Ready) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.stats
}

// Close rejects further Puts.
func (q *Ready) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	return nil
}

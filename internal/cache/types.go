package cache

import (
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when a track is not cached.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidKey is returned for keys that cannot name a file.
	ErrInvalidKey = errors.New("invalid cache key")
)

// Stats holds cache metrics.
type Stats struct {
	Capacity  int64 // bytes, zero when unbounded
	Size      int64 // bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) updateHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Entry describes one cached track.
type Entry struct {
	Key        string
	RawPath    string
	WavPath    string
	Size       int64 // raw plus wav bytes on disk
	Stored     time.Time
	LastAccess time.Time
	Hits       int64
}

package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const indexName = "cache.index"

// TrackCache indexes track audio files under a base directory:
//
//	<base>/raw/<id>.<ext>
//	<base>/wav/<id>.wav
//	<base>/cache.index
//
// Files are produced by the downloader and transcoder; the cache only
// records, looks up and deletes them.
type TrackCache struct {
	basePath string
	capacity int64 // bytes, zero disables size-based eviction
	size     int64

	index map[string]*Entry

	mu sync.RWMutex

	stats Stats
}

// OpenTrackCache opens or creates a cache in basePath. A missing or corrupt
// index starts empty; entries whose wav file is gone are dropped.
func OpenTrackCache(basePath string, capacity int64) (*TrackCache, error) {
	for _, dir := range []string{basePath, filepath.Join(basePath, "raw"), filepath.Join(basePath, "wav")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tc := &TrackCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*Entry),
		stats:    Stats{Capacity: capacity},
	}

	if err := tc.loadIndex(); err != nil {
		log.Debug("starting with empty track cache index", "err", err)
		tc.index = make(map[string]*Entry)
	}
	for key, e := range tc.index {
		if _, err := os.Stat(e.WavPath); err != nil {
			delete(tc.index, key)
		}
	}
	tc.calculateSize()

	return tc, nil
}

// RawDir is where the downloader writes source audio.
func (tc *TrackCache) RawDir() string { return filepath.Join(tc.basePath, "raw") }

// WavDir is where the transcoder writes playable audio.
func (tc *TrackCache) WavDir() string { return filepath.Join(tc.basePath, "wav") }

// Lookup returns the entry for key if its playable file still exists.
func (tc *TrackCache) Lookup(key string) (Entry, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	e, ok := tc.index[key]
	if !ok {
		tc.stats.Misses++
		return Entry{}, false
	}
	if _, err := os.Stat(e.WavPath); err != nil {
		tc.size -= e.Size
		delete(tc.index, key)
		tc.stats.Misses++
		return Entry{}, false
	}

	e.LastAccess = time.Now()
	e.Hits++
	tc.stats.Hits++
	tc.stats.LastAccess = e.LastAccess
	return *e, true
}

// Contains reports whether key is indexed, without touching access times.
func (tc *TrackCache) Contains(key string) bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	_, ok := tc.index[key]
	return ok
}

// Store records the files for key. Older entries are evicted when the
// cache has a capacity and would exceed it.
func (tc *TrackCache) Store(key, rawPath, wavPath string) (Entry, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	size := fileSize(rawPath) + fileSize(wavPath)

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.capacity > 0 && size > tc.capacity {
		return Entry{}, ErrItemTooLarge
	}

	if existing, ok := tc.index[key]; ok {
		tc.size -= existing.Size
		if existing.RawPath != rawPath {
			removeFile(existing.RawPath)
		}
		if existing.WavPath != wavPath {
			removeFile(existing.WavPath)
		}
		delete(tc.index, key)
	}

	for tc.capacity > 0 && tc.size+size > tc.capacity && len(tc.index) > 0 {
		tc.evictOldest()
	}

	now := time.Now()
	e := &Entry{
		Key:        key,
		RawPath:    rawPath,
		WavPath:    wavPath,
		Size:       size,
		Stored:     now,
		LastAccess: now,
	}
	tc.index[key] = e
	tc.size += size
	tc.stats.Size = tc.size
	tc.stats.ItemCount = int64(len(tc.index))

	return *e, nil
}

// Evict deletes the raw and wav files of key and forgets it. Evicting an
// unknown key is a no-op.
func (tc *TrackCache) Evict(key string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	e, ok := tc.index[key]
	if !ok {
		return nil
	}
	tc.removeEntry(e)
	tc.stats.Evictions++
	tc.stats.LastEvict = time.Now()
	return nil
}

// Clear deletes every indexed file.
func (tc *TrackCache) Clear() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for _, e := range tc.index {
		removeFile(e.RawPath)
		removeFile(e.WavPath)
	}
	tc.index = make(map[string]*Entry)
	tc.size = 0
	tc.stats.Size = 0
	tc.stats.ItemCount = 0

	return tc.saveIndex()
}

// Entries returns all entries, least recently used first.
func (tc *TrackCache) Entries() []Entry {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	out := make([]Entry, 0, len(tc.index))
	for _, e := range tc.index {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccess.Before(out[j].LastAccess)
	})
	return out
}

// RemoveOlderThan evicts entries stored before cutoff.
func (tc *TrackCache) RemoveOlderThan(cutoff time.Time) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	removed := 0
	for _, e := range tc.index {
		if e.Stored.Before(cutoff) {
			tc.removeEntry(e)
			removed++
		}
	}
	return removed
}

// Size returns the indexed bytes on disk.
func (tc *TrackCache) Size() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.size
}

// Stats returns cache statistics.
func (tc *TrackCache) Stats() Stats {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	stats := tc.stats
	stats.Size = tc.size
	stats.ItemCount = int64(len(tc.index))
	stats.updateHitRate()
	return stats
}

// Close saves the index.
func (tc *TrackCache) Close() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.saveIndex()
}

// must be called with the lock held
func (tc *TrackCache) removeEntry(e *Entry) {
	removeFile(e.RawPath)
	removeFile(e.WavPath)
	tc.size -= e.Size
	delete(tc.index, e.Key)
	tc.stats.Size = tc.size
	tc.stats.ItemCount = int64(len(tc.index))
}

func (tc *TrackCache) evictOldest() {
	var oldest *Entry
	for _, e := range tc.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		log.Debug("evicting cached track", "key", oldest.Key)
		tc.removeEntry(oldest)
		tc.stats.Evictions++
		tc.stats.LastEvict = time.Now()
	}
}

func (tc *TrackCache) loadIndex() error {
	file, err := os.Open(filepath.Join(tc.basePath, indexName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close() //nolint:errcheck

	return gob.NewDecoder(file).Decode(&tc.index)
}

func (tc *TrackCache) saveIndex() error {
	indexPath := filepath.Join(tc.basePath, indexName)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(tc.index)
	closeErr := file.Close()
	if err != nil {
		os.Remove(tempPath) //nolint:errcheck
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath) //nolint:errcheck
		return closeErr
	}

	return os.Rename(tempPath, indexPath)
}

func (tc *TrackCache) calculateSize() {
	tc.size = 0
	for _, e := range tc.index {
		tc.size += e.Size
	}
	tc.stats.Size = tc.size
	tc.stats.ItemCount = int64(len(tc.index))
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Debug("unable to remove cached file", "path", path, "err", err)
	}
}

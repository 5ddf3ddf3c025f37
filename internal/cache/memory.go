package cache

import (
	"container/list"
	"sync"
	"time"
)

// PCMCache is an in-memory LRU of decoded audio keyed by file path. The
// player uses it so replays and restarts skip decoding.
type PCMCache struct {
	capacity int64 // bytes
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu sync.Mutex

	stats Stats
}

type pcmEntry struct {
	key    string
	pcm    []byte
	format Format
	stored time.Time
}

// Format describes decoded PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// NewPCMCache returns a cache holding at most capacity bytes.
func NewPCMCache(capacity int64) *PCMCache {
	return &PCMCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the decoded audio for key.
func (c *PCMCache) Get(key string) ([]byte, Format, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, Format{}, false
	}

	c.eviction.MoveToFront(elem)
	e := elem.Value.(*pcmEntry)
	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return e.pcm, e.format, true
}

// Put stores decoded audio, evicting least recently used entries to make
// room.
func (c *PCMCache) Put(key string, pcm []byte, format Format) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(pcm))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	for c.size+n > c.capacity && c.eviction.Len() > 0 {
		c.removeElement(c.eviction.Back())
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}

	c.items[key] = c.eviction.PushFront(&pcmEntry{
		key:    key,
		pcm:    pcm,
		format: format,
		stored: time.Now(),
	})
	c.size += n
	return nil
}

// Delete drops key.
func (c *PCMCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the number of cached entries.
func (c *PCMCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *PCMCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	stats.updateHitRate()
	return stats
}

// must be called with the lock held
func (c *PCMCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	e := elem.Value.(*pcmEntry)
	delete(c.items, e.key)
	c.size -= int64(len(e.pcm))
}

package music

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mazeofme/maze/internal/audio"
	"github.com/mazeofme/maze/internal/cache"
	"github.com/mazeofme/maze/internal/queue"
	"github.com/mazeofme/maze/internal/task"
	"github.com/mazeofme/maze/internal/tracks"
	"golang.org/x/sync/singleflight"
)

// Defaults for Config.
const (
	DefaultPlayWait = 3 * time.Second
	DefaultAhead    = 2
)

// Config tunes a Prefetcher.
type Config struct {
	// PlayWait bounds how long SelectAndPlay waits for an unbuffered track.
	PlayWait time.Duration

	// Ahead caps the number of buffered, unplayed tracks.
	Ahead int

	// Rand drives track choice. Nil uses a random seed.
	Rand *rand.Rand
}

// Stats is a snapshot for the status bar.
type Stats struct {
	Catalog  int
	Buffered int
	Done     int
	InFlight int
	Current  string
	Cache    cache.Stats
	Queue    queue.Stats
}

// Prefetcher owns the audio ahead-buffer. The buffer, the played set and
// the in-flight set are guarded by one mutex; downloads run outside it.
type Prefetcher struct {
	catalog []tracks.Track
	fetcher tracks.Fetcher
	cache   *cache.TrackCache
	sink    audio.Sink

	ready  *queue.Ready
	group  singleflight.Group
	handle task.Handle

	playWait time.Duration

	mu       sync.Mutex
	rng      *rand.Rand
	done     map[int]bool
	inflight map[int]bool
	gen      uint64
	selected int
	current  int

	// spent holds indices whose files are on disk but that are neither
	// buffered nor playing: replaced tracks, stale late arrivals and
	// fetches the full buffer turned away.
	spent map[int]bool
}

// New returns a prefetcher over catalog. The cache is required: it names
// the files to evict.
func New(catalog []tracks.Track, fetcher tracks.Fetcher, tc *cache.TrackCache, sink audio.Sink, cfg Config) *Prefetcher {
	if cfg.PlayWait <= 0 {
		cfg.PlayWait = DefaultPlayWait
	}
	if cfg.Ahead <= 0 {
		cfg.Ahead = DefaultAhead
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec
	}

	return &Prefetcher{
		catalog:  tracks.Reindex(slices.Clone(catalog)),
		fetcher:  fetcher,
		cache:    tc,
		sink:     sink,
		ready:    queue.NewReady(cfg.Ahead),
		playWait: cfg.PlayWait,
		rng:      cfg.Rand,
		done:     make(map[int]bool),
		inflight: make(map[int]bool),
		spent:    make(map[int]bool),
		selected: -1,
		current:  -1,
	}
}

// Catalog returns the tracks in index order.
func (p *Prefetcher) Catalog() []tracks.Track {
	return slices.Clone(p.catalog)
}

// Start preloads one random track in the background so the first room
// usually has music.
func (p *Prefetcher) Start(ctx context.Context) {
	if len(p.catalog) == 0 {
		return
	}
	p.mu.Lock()
	first := p.rng.IntN(len(p.catalog))
	p.mu.Unlock()

	p.handle.Go(func() { p.PreloadTrack(ctx, first) })
}

// PreloadTrack downloads and transcodes track index into the buffer. It is
// a no-op when the index was played, is buffered or is being fetched.
// Failures are logged and leave the slot empty.
func (p *Prefetcher) PreloadTrack(ctx context.Context, index int) {
	if index < 0 || index >= len(p.catalog) {
		return
	}

	p.mu.Lock()
	skip := p.done[index] || p.ready.Contains(index)
	p.mu.Unlock()
	if skip {
		return
	}

	_, err, _ := p.group.Do(strconv.Itoa(index), p.fetchFunc(ctx, index))
	if err != nil {
		log.Warn("preload failed", "index", index, "track", p.catalog[index].String(), "err", err)
	}
}

// fetchFunc returns the shared fetch for index. The result goes into the
// buffer unless the index was played meanwhile.
func (p *Prefetcher) fetchFunc(ctx context.Context, index int) func() (any, error) {
	return func() (any, error) {
		p.mu.Lock()
		p.inflight[index] = true
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			delete(p.inflight, index)
			p.mu.Unlock()
		}()

		// A superseded fetch keeps running; only its waiters stop waiting.
		path, err := p.fetch(context.WithoutCancel(ctx), p.catalog[index])
		if err != nil {
			return "", err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.done[index] {
			if err := p.ready.Put(index, path); err != nil && !errors.Is(err, queue.ErrDuplicate) {
				log.Debug("not buffering track", "index", index, "err", err)
				if index != p.current {
					p.spent[index] = true
				}
			} else if err == nil {
				log.Debug("preloaded track", "index", index, "path", path)
			}
		}
		return path, nil
	}
}

func (p *Prefetcher) fetch(ctx context.Context, t tracks.Track) (string, error) {
	key := t.Key()
	if e, ok := p.cache.Lookup(key); ok {
		return e.WavPath, nil
	}

	raw, err := p.fetcher.Resolve(ctx, t)
	if err != nil {
		return "", err
	}
	wav, err := p.fetcher.Transcode(ctx, raw)
	if err != nil {
		return "", err
	}
	if _, err := p.cache.Store(key, raw, wav); err != nil {
		return "", fmt.Errorf("unable to index %s: %w", key, err)
	}
	return wav, nil
}

// SelectAndPlay picks a track for emotion, marks it played and starts it.
// A buffered track plays at once; otherwise the track is fetched, waiting
// at most the configured play wait. A fetch that finishes later still
// starts playback unless a newer selection happened. It reports the chosen
// track and whether playback started before returning.
func (p *Prefetcher) SelectAndPlay(ctx context.Context, emotion string) (tracks.Track, bool) {
	if len(p.catalog) == 0 {
		return tracks.Track{}, false
	}

	p.mu.Lock()
	index := p.chooseLocked(emotion)
	p.done[index] = true
	p.gen++
	gen := p.gen
	p.selected = index
	path, buffered := p.ready.Take(index)
	p.mu.Unlock()

	t := p.catalog[index]
	log.Debug("selected track", "index", index, "emotion", emotion, "track", t.String(), "buffered", buffered)

	started := false
	if buffered {
		started = p.play(index, gen, path)
	} else {
		started = p.playWhenReady(ctx, index, gen)
	}

	p.scheduleNext(ctx)
	return t, started
}

func (p *Prefetcher) playWhenReady(ctx context.Context, index int, gen uint64) bool {
	ch := p.group.DoChan(strconv.Itoa(index), p.fetchFunc(ctx, index))

	timer := time.NewTimer(p.playWait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			log.Warn("track unavailable", "index", index, "err", res.Err)
			return false
		}
		return p.play(index, gen, res.Val.(string))

	case <-ctx.Done():
	case <-timer.C:
	}

	log.Debug("track not ready in time, playing when it arrives", "index", index)
	go func() {
		res := <-ch
		if res.Err != nil {
			log.Warn("track unavailable", "index", index, "err", res.Err)
			return
		}
		p.play(index, gen, res.Val.(string))
	}()
	return false
}

// play starts path if gen is still the latest selection.
func (p *Prefetcher) play(index int, gen uint64, path string) bool {
	p.mu.Lock()
	if gen != p.gen {
		if index != p.current && index != p.selected && !p.ready.Contains(index) {
			p.spent[index] = true
		}
		p.mu.Unlock()
		log.Debug("discarding stale track", "index", index)
		return false
	}
	if p.current >= 0 && p.current != index {
		p.spent[p.current] = true
	}
	delete(p.spent, index)
	p.current = index
	p.mu.Unlock()

	if err := p.sink.Play(path); err != nil {
		log.Warn("unable to play track", "path", path, "err", err)
		return false
	}
	return true
}

// chooseLocked picks an index for emotion. Unplayed candidates come
// first; among them a buffered one wins in ready order, else the choice is
// uniform.
func (p *Prefetcher) chooseLocked(emotion string) int {
	cands := Candidates(p.catalog, emotion)

	pool := make([]int, 0, len(cands))
	for _, i := range cands {
		if !p.done[i] {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		pool = cands
	}

	for _, i := range p.ready.Indices() {
		if slices.Contains(pool, i) {
			return i
		}
	}
	return pool[p.rng.IntN(len(pool))]
}

// nextLocked picks the next index to preload, excluding played, buffered,
// in-flight and current tracks. When that excludes everything the played set is
// cleared and the catalog starts over. It returns -1 when every track is
// buffered or in flight.
func (p *Prefetcher) nextLocked() int {
	avail := p.availableLocked()
	if len(avail) == 0 {
		log.Debug("catalog exhausted, starting over", "tracks", len(p.catalog))
		clear(p.done)
		avail = p.availableLocked()
	}
	if len(avail) == 0 {
		return -1
	}
	return avail[p.rng.IntN(len(avail))]
}

func (p *Prefetcher) availableLocked() []int {
	var out []int
	for i := range p.catalog {
		if i == p.current || p.done[i] || p.inflight[i] || p.ready.Contains(i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// scheduleNext starts one background preload unless one is still running
// or the buffer is full.
func (p *Prefetcher) scheduleNext(ctx context.Context) {
	if p.handle.Running() {
		log.Debug("preload still in flight, not scheduling another")
		return
	}
	if p.ready.Full() {
		return
	}

	p.mu.Lock()
	next := p.nextLocked()
	if next >= 0 {
		// Claimed now so eviction leaves it alone until the fetch is done.
		p.inflight[next] = true
	}
	p.mu.Unlock()
	if next < 0 {
		return
	}

	p.handle.Go(func() {
		defer func() {
			p.mu.Lock()
			delete(p.inflight, next)
			p.mu.Unlock()
		}()
		p.PreloadTrack(ctx, next)
	})
}

// EvictLastCache deletes the files of tracks played before the current
// one, and of fetched tracks that were never played or buffered. Tracks
// buffered again or being fetched are kept for a later call.
func (p *Prefetcher) EvictLastCache() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for index := range p.spent {
		if index == p.current {
			delete(p.spent, index)
			continue
		}
		if index == p.selected {
			continue
		}
		if p.ready.Contains(index) || p.inflight[index] {
			continue
		}
		delete(p.spent, index)
		p.evictLocked(index)
	}
}

func (p *Prefetcher) evictLocked(index int) {
	key := p.catalog[index].Key()
	e, ok := p.cache.Lookup(key)
	if !ok {
		return
	}
	if f, ok := p.sink.(audio.Forgetter); ok {
		f.Forget(e.WavPath)
	}
	if err := p.cache.Evict(key); err != nil {
		log.Debug("unable to evict track", "key", key, "err", err)
		return
	}
	log.Debug("evicted track", "index", index, "key", key)
}

// Stop silences playback.
func (p *Prefetcher) Stop() error {
	return p.sink.Stop()
}

// Playing reports whether the sink is busy.
func (p *Prefetcher) Playing() bool {
	return p.sink.IsBusy()
}

// WaitIdle waits up to d for the background preload to finish.
func (p *Prefetcher) WaitIdle(d time.Duration) bool {
	return p.handle.Wait(d)
}

// Stats returns a snapshot of the buffer state.
func (p *Prefetcher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Catalog:  len(p.catalog),
		Buffered: p.ready.Len(),
		Done:     len(p.done),
		InFlight: len(p.inflight),
		Cache:    p.cache.Stats(),
		Queue:    p.ready.Stats(),
	}
	if p.current >= 0 {
		s.Current = p.catalog[p.current].String()
	}
	return s
}

package profile

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Store holds the current profile and swaps it when the file changes on disk.
type Store struct {
	path    string
	current atomic.Pointer[Profile]
}

// NewStore loads the profile at path.
func NewStore(path string) (*Store, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(p)
	return s, nil
}

// NewStaticStore wraps an in-memory profile. Watch is a no-op for it.
func NewStaticStore(p *Profile) *Store {
	s := &Store{}
	s.current.Store(p)
	return s
}

// Get returns the current profile.
func (s *Store) Get() *Profile {
	return s.current.Load()
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the profile file. On error the previous profile is kept.
func (s *Store) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(p)
	return nil
}

// Watch reloads the profile whenever the collector rewrites it, until ctx is
// done. onChange, if set, is called after each successful reload.
func (s *Store) Watch(ctx context.Context, onChange func(*Profile)) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: collectors replace the file rather than write in place.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	log.Debug("watching profile", "dir", dir)

	go func() {
		defer watcher.Close() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					log.Warn("profile reload failed", "path", s.path, "error", err)
					continue
				}
				log.Info("profile reloaded", "path", s.path)
				if onChange != nil {
					onChange(s.Get())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}()

	return nil
}

// Package journal records a play session as zstd-compressed text lines,
// one file per session.
package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Ext is the journal file suffix.
const Ext = ".log.zst"

// Entry kinds.
const (
	KindRoom     = "room"
	KindNPC      = "npc"
	KindPlayer   = "player"
	KindItem     = "item"
	KindTrack    = "track"
	KindFeedback = "feedback"
)

// ErrClosed is returned when appending to a closed journal.
var ErrClosed = errors.New("journal is closed")

// Entry is one journal line.
type Entry struct {
	Time time.Time
	Kind string
	Text string
}

func (e Entry) String() string {
	return e.Time.Format(time.RFC3339) + "\t" + e.Kind + "\t" + e.Text
}

func parseEntry(line string) (Entry, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("malformed journal line %q", line)
	}
	t, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed journal time: %w", err)
	}
	return Entry{Time: t, Kind: parts[1], Text: parts[2]}, nil
}

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Journal appends entries for one session. Recent entries are kept in
// memory for the log view. It is safe for concurrent use.
type Journal struct {
	session string
	path    string

	mu     sync.Mutex
	file   *os.File
	enc    *zstd.Encoder
	recent []Entry
	keep   int
	closed bool
	now    func() time.Time
}

// Open creates the journal for session in dir. keep bounds the entries
// held in memory.
func Open(dir, session string, keep int) (*Journal, error) {
	if _, err := uuid.Parse(session); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", session, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create journal directory: %w", err)
	}

	path := filepath.Join(dir, session+Ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("unable to start journal encoder: %w", err)
	}

	if keep <= 0 {
		keep = 200
	}
	return &Journal{
		session: session,
		path:    path,
		file:    f,
		enc:     enc,
		keep:    keep,
		now:     time.Now,
	}, nil
}

// Session returns the session id.
func (j *Journal) Session() string { return j.session }

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// Append writes one entry and flushes it so a crash loses at most the
// entry being written. Newlines in text are folded into spaces.
func (j *Journal) Append(kind, text string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	e := Entry{
		Time: j.now().Truncate(time.Second),
		Kind: kind,
		Text: strings.Join(strings.Fields(text), " "),
	}
	if _, err := io.WriteString(j.enc, e.String()+"\n"); err != nil {
		return fmt.Errorf("unable to write journal: %w", err)
	}
	if err := j.enc.Flush(); err != nil {
		return fmt.Errorf("unable to flush journal: %w", err)
	}

	j.recent = append(j.recent, e)
	if len(j.recent) > j.keep {
		j.recent = j.recent[len(j.recent)-j.keep:]
	}
	return nil
}

// Recent returns up to n of the latest entries, oldest first.
func (j *Journal) Recent(n int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n <= 0 || n > len(j.recent) {
		n = len(j.recent)
	}
	out := make([]Entry, n)
	copy(out, j.recent[len(j.recent)-n:])
	return out
}

// Close finishes the compressed stream.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	err := j.enc.Close()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Read decodes every entry of the journal at path. Appending to a journal
// after reopening it adds a new zstd frame, which the decoder reads through.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal: %w", err)
	}
	defer f.Close() //nolint:errcheck

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to start journal decoder: %w", err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if sc.Text() == "" {
			continue
		}
		e, err := parseEntry(sc.Text())
		if err != nil {
			log.Debug("skipping journal line", "path", path, "err", err)
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, fmt.Errorf("unable to read journal: %w", err)
	}
	return out, nil
}

// Session describes a journal file on disk.
type Session struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the sessions in dir, newest first. A missing dir has none.
func List(dir string) ([]Session, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to list journals: %w", err)
	}

	var out []Session
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Session{
			ID:      strings.TrimSuffix(name, Ext),
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].ModTime.After(out[k].ModTime)
	})
	return out, nil
}

// Find returns the session whose id starts with prefix.
func Find(dir, prefix string) (Session, error) {
	sessions, err := List(dir)
	if err != nil {
		return Session{}, err
	}
	var found []Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return Session{}, fmt.Errorf("no journal matches %q", prefix)
	case 1:
		return found[0], nil
	default:
		return Session{}, fmt.Errorf("%d journals match %q", len(found), prefix)
	}
}

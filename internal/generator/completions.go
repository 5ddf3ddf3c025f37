package generator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Completion is one logged generator call.
type Completion struct {
	ID        int64
	Timestamp time.Time
	SessionID string
	Operation string
	Prompt    string
	Response  string
	Metadata  CompletionMetadata
}

// CompletionMetadata describes how a completion was produced.
type CompletionMetadata struct {
	MaxTokens    int           `json:"max_tokens"`
	Temperature  float64       `json:"temperature"`
	ResponseTime time.Duration `json:"response_time_ms"`
	Error        *string       `json:"error,omitempty"`
}

// CompletionStore records generator calls in a sqlite database.
type CompletionStore struct {
	db *sql.DB
}

// OpenCompletionStore opens or creates the database at path.
func OpenCompletionStore(path string) (*CompletionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &CompletionStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *CompletionStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		session_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		metadata TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_completions_session ON completions(session_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Log inserts one completion.
func (s *CompletionStore) Log(ctx context.Context, c Completion) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completions (timestamp, session_id, operation, prompt, response, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Timestamp.UTC(), c.SessionID, c.Operation, c.Prompt, c.Response, string(meta))
	return err
}

// Recent returns up to limit completions, newest first. An empty session
// matches all sessions.
func (s *CompletionStore) Recent(ctx context.Context, session string, limit int) ([]Completion, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, session_id, operation, prompt, response, metadata
		FROM completions
		WHERE ? = '' OR session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, session, session, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Completion
	for rows.Next() {
		var (
			c    Completion
			meta string
		)
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.SessionID, &c.Operation, &c.Prompt, &c.Response, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			log.Debug("bad completion metadata", "id", c.ID, "err", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *CompletionStore) Close() error {
	return s.db.Close()
}

// Logged records every call of the wrapped generator. Logging failures are
// reported at debug level and never fail the call.
type Logged struct {
	next  Generator
	store *CompletionStore
}

// NewLogged wraps g with the completion store.
func NewLogged(g Generator, store *CompletionStore) *Logged {
	return &Logged{next: g, store: store}
}

// Generate delegates and records the outcome.
func (l *Logged) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	start := time.Now()
	out, err := l.next.Generate(ctx, prompt, maxTokens, temperature)

	meta := CompletionMetadata{
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		msg := err.Error()
		meta.Error = &msg
	}

	// The caller may already have stopped waiting; the row is still worth
	// keeping.
	logCtx := context.WithoutCancel(ctx)
	if lerr := l.store.Log(logCtx, Completion{
		Timestamp: start,
		SessionID: SessionID(ctx),
		Operation: Operation(ctx),
		Prompt:    prompt,
		Response:  out,
		Metadata:  meta,
	}); lerr != nil {
		log.Debug("unable to log completion", "err", lerr)
	}
	return out, err
}

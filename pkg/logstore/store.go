// Package logstore persists log entries in a capped, append-only SQLite log.
package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/storyeval/storyeval/pkg/models"
)

// DefaultMaxEntries is the retained entry count when none is configured.
const DefaultMaxEntries = 1000

// ErrStorage marks a failure to read or write the underlying database.
var ErrStorage = errors.New("log store unavailable")

// Filter narrows ReadAll results. The zero value matches every entry.
type Filter struct {
	StoryModel string
}

// Snapshot is a consistent view of the store at one revision.
type Snapshot struct {
	Entries  []models.LogEntry
	Revision int64
}

// Store records and reads log entries.
type Store interface {
	// Append persists one entry, evicting the oldest beyond capacity, and returns its id.
	Append(ctx context.Context, entry models.LogEntry) (string, error)
	// ReadAll returns matching entries oldest first.
	ReadAll(ctx context.Context, f Filter) ([]models.LogEntry, error)
	// Snapshot returns every entry together with the revision it was read at.
	Snapshot(ctx context.Context) (Snapshot, error)
	// Revision returns a counter that grows with every append.
	Revision(ctx context.Context) (int64, error)
	// Count returns the number of retained entries.
	Count(ctx context.Context) (int, error)
	// StoryModels returns distinct story model ids in first-seen order.
	StoryModels(ctx context.Context) ([]string, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	mu         sync.Mutex
	maxEntries int
	logger     *slog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithMaxEntries sets the retained entry cap. Values below 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithLogger sets the logger used to report skipped rows.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

const createTable = `
CREATE TABLE IF NOT EXISTS log_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	story_model TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_entries_model ON log_entries(story_model, seq);
`

// New creates a SQLiteStore and runs auto-migration.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	// One connection: writers queue behind each other and readers only see committed rows.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate log store: %w", err)
	}

	s := &SQLiteStore{db: db, maxEntries: DefaultMaxEntries, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Append stores an entry and trims the log to capacity in the same transaction.
func (s *SQLiteStore) Append(ctx context.Context, entry models.LogEntry) (string, error) {
	if entry.ID == "" {
		return "", errors.New("append entry: missing id")
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO log_entries (id, story_model, created_at, body) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.StoryModel(), entry.Timestamp.UTC(), string(body),
	)
	if err != nil {
		return "", storageErr("insert entry", err)
	}

	// Drop everything older than the newest maxEntries rows.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM log_entries WHERE seq <= (
			SELECT seq FROM log_entries ORDER BY seq DESC LIMIT 1 OFFSET ?
		)`,
		s.maxEntries,
	)
	if err != nil {
		return "", storageErr("evict entries", err)
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit append", err)
	}
	return entry.ID, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) readEntries(ctx context.Context, q querier, f Filter) ([]models.LogEntry, error) {
	query := `SELECT seq, body FROM log_entries`
	var args []any
	if f.StoryModel != "" {
		query += ` WHERE story_model = ?`
		args = append(args, f.StoryModel)
	}
	query += ` ORDER BY seq ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query entries", err)
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		var seq int64
		var body string
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, storageErr("scan entry", err)
		}
		e, bad, err := decodeEntry([]byte(body))
		if err != nil {
			s.logger.Warn("skipping unreadable log entry", "seq", seq, "error", err)
			continue
		}
		if len(bad) > 0 {
			s.logger.Warn("defaulted unreadable log entry fields", "seq", seq, "fields", bad)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate entries", err)
	}
	return entries, nil
}

// ReadAll returns entries oldest first, optionally filtered by story model.
func (s *SQLiteStore) ReadAll(ctx context.Context, f Filter) ([]models.LogEntry, error) {
	return s.readEntries(ctx, s.db, f)
}

// Snapshot reads every entry and the current revision in one transaction.
func (s *SQLiteStore) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, storageErr("begin snapshot", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM log_entries`).Scan(&rev); err != nil {
		return Snapshot{}, storageErr("read revision", err)
	}

	entries, err := s.readEntries(ctx, tx, Filter{})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Entries: entries, Revision: rev}, nil
}

// Revision returns the sequence number of the newest entry, or 0 when empty.
func (s *SQLiteStore) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM log_entries`).Scan(&rev); err != nil {
		return 0, storageErr("read revision", err)
	}
	return rev, nil
}

// Count returns the number of retained entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_entries`).Scan(&n); err != nil {
		return 0, storageErr("count entries", err)
	}
	return n, nil
}

// StoryModels returns distinct story model ids ordered by first appearance.
func (s *SQLiteStore) StoryModels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT story_model FROM log_entries GROUP BY story_model ORDER BY MIN(seq) ASC`)
	if err != nil {
		return nil, storageErr("list story models", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan story model", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate story models", err)
	}
	return ids, nil
}

// MaxEntries returns the retained entry cap.
func (s *SQLiteStore) MaxEntries() int {
	return s.maxEntries
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/cadence/internal/model"

	_ "modernc.org/sqlite"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    ended_at   DATETIME
)`

const createConsoleLinesTable = `
CREATE TABLE IF NOT EXISTS console_lines (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    frame      INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    text       TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

const createConsoleLinesIndex = `
CREATE INDEX IF NOT EXISTS idx_console_lines_session ON console_lines (session_id, seq)`

// sessionColumns selects a session with its line and error counts.
const sessionColumns = `
SELECT s.id, s.started_at, s.ended_at,
    (SELECT COUNT(*) FROM console_lines c WHERE c.session_id = s.id),
    (SELECT COUNT(*) FROM console_lines c WHERE c.session_id = s.id AND c.kind IN ('error', 'timeout'))
FROM sessions s`

// ErrNotFound is returned when a session is not found.
var ErrNotFound = errors.New("session not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" opens a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, stmt := range map[string]string{
		"sessions table":      createSessionsTable,
		"console_lines table": createConsoleLinesTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
	}
	if _, err := db.Exec(createConsoleLinesIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("create console_lines index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session record. Creating an existing session is
// a no-op.
func (s *SQLiteStore) CreateSession(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)",
		id, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession sets the end time of a session.
func (s *SQLiteStore) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ? WHERE id = ?",
		endedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{}
	err := s.db.QueryRowContext(ctx, sessionColumns+" WHERE s.id = ?", id).Scan(
		&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Lines, &sess.Errors,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns a page of sessions, most recent first, along with the
// total count of all sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		sessionColumns+" ORDER BY s.started_at DESC, s.id DESC LIMIT ? OFFSET ?", limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess := &model.Session{}
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.Lines, &sess.Errors); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, total, nil
}

// InsertConsoleLine appends a console line to its session's history.
func (s *SQLiteStore) InsertConsoleLine(ctx context.Context, seq int, line model.ConsoleLine) error {
	created := line.Time
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO console_lines (session_id, seq, frame, kind, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		line.Session, seq, line.Frame, line.Kind, line.Text, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert console line: %w", err)
	}
	return nil
}

// GetConsoleLines returns a session's console lines in sequence order.
func (s *SQLiteStore) GetConsoleLines(ctx context.Context, sessionID string) ([]model.StoredConsoleLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, frame, kind, text, created_at
		FROM console_lines WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get console lines: %w", err)
	}
	defer rows.Close()

	var lines []model.StoredConsoleLine
	for rows.Next() {
		var l model.StoredConsoleLine
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Seq, &l.Frame, &l.Kind, &l.Text, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan console line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate console lines: %w", err)
	}
	return lines, nil
}

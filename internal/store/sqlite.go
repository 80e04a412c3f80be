// File: internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/stats"
)

const localSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL,
    cycles INTEGER NOT NULL,
    successes TEXT NOT NULL,
    failures TEXT NOT NULL,
    last_price INTEGER NOT NULL,
    dropped_events INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS session_events (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    at TEXT NOT NULL,
    type TEXT NOT NULL,
    kind TEXT NOT NULL,
    price INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
`

const localTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LocalStore keeps session history in a SQLite file for setups without PostgreSQL.
type LocalStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenLocal opens (or creates) the SQLite database at path. ":memory:" is accepted.
func OpenLocal(ctx context.Context, path string, logger *zap.Logger) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &LocalStore{db: db, log: logger.Named("store.local")}, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the history tables if they do not exist.
func (s *LocalStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, localSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSession writes the session row and its events in one transaction.
func (s *LocalStore) SaveSession(ctx context.Context, rec SessionRecord, events []stats.Event) (err error) {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", rec.ID, err)
	}
	successes, err := encodeCounts(rec.Successes)
	if err != nil {
		return err
	}
	failures, err := encodeCounts(rec.Failures)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, mode, started_at, ended_at, cycles, successes, failures, last_price, dropped_events, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), formatTime(rec.StartedAt), formatTime(rec.EndedAt), rec.Cycles,
		string(successes), string(failures), rec.LastPrice, rec.Dropped, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(events) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_events (session_id, seq, at, type, kind, price) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare event insert: %w", err)
		}
		defer stmt.Close()
		for i, e := range events {
			if _, err := stmt.ExecContext(ctx, rec.ID, i, formatTime(e.At), string(e.Type), e.Kind, e.Price); err != nil {
				return fmt.Errorf("failed to insert event %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Session saved.", zap.String("session_id", rec.ID), zap.Int("events", len(events)))
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *LocalStore) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, mode, started_at, ended_at, cycles, successes, failures, last_price, dropped_events, error
FROM sessions
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var mode, started, ended, successes, failures string
		if err := rows.Scan(&rec.ID, &mode, &started, &ended, &rec.Cycles,
			&successes, &failures, &rec.LastPrice, &rec.Dropped, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.Mode = schemas.OperationMode(mode)
		if rec.StartedAt, err = time.Parse(localTimeLayout, started); err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
		}
		if rec.EndedAt, err = time.Parse(localTimeLayout, ended); err != nil {
			return nil, fmt.Errorf("invalid ended_at %q: %w", ended, err)
		}
		if rec.Successes, err = decodeCounts([]byte(successes)); err != nil {
			return nil, err
		}
		if rec.Failures, err = decodeCounts([]byte(failures)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// CountEvents returns the number of stored events of a session.
func (s *LocalStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_events WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// formatTime stores UTC with a fixed layout so text ordering matches time ordering.
func formatTime(t time.Time) string {
	return t.UTC().Format(localTimeLayout)
}

// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/stats"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    mode TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    cycles INTEGER NOT NULL,
    successes JSONB NOT NULL,
    failures JSONB NOT NULL,
    last_price BIGINT NOT NULL,
    dropped_events BIGINT NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS session_events (
    session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    at TIMESTAMPTZ NOT NULL,
    type TEXT NOT NULL,
    kind TEXT NOT NULL,
    price BIGINT NOT NULL,
    PRIMARY KEY (session_id, seq)
);
`

const insertSessionSQL = `
INSERT INTO sessions (id, mode, started_at, ended_at, cycles, successes, failures, last_price, dropped_events, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`

const listSessionsSQL = `
SELECT id, mode, started_at, ended_at, cycles, successes, failures, last_price, dropped_events, error
FROM sessions
ORDER BY started_at DESC
LIMIT $1;
`

var eventColumns = []string{"session_id", "seq", "at", "type", "kind", "price"}

// SessionRecord is one finished session as stored in the sessions table.
type SessionRecord struct {
	ID        string
	Mode      schemas.OperationMode
	StartedAt time.Time
	EndedAt   time.Time
	Cycles    int
	Successes map[string]int
	Failures  map[string]int
	LastPrice int64
	Dropped   int64
	// Error is empty for sessions that ended cleanly.
	Error string
}

// NewSessionRecord builds a record with a fresh ID from a final statistics snapshot.
func NewSessionRecord(mode schemas.OperationMode, snap stats.Snapshot, sessionErr error) SessionRecord {
	rec := SessionRecord{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: snap.StartedAt,
		EndedAt:   snap.UpdatedAt,
		Cycles:    snap.Cycles,
		Successes: snap.Successes,
		Failures:  snap.Failures,
		LastPrice: snap.LastPrice,
		Dropped:   snap.Dropped,
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = rec.StartedAt
	}
	if sessionErr != nil {
		rec.Error = sessionErr.Error()
	}
	return rec
}

// Store persists session history in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSession writes the session row and its events in one transaction.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord, events []stats.Event) error {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, insertSessionSQL,
		rec.ID, string(rec.Mode), rec.StartedAt.UTC(), rec.EndedAt.UTC(), rec.Cycles,
		successes, failures, rec.LastPrice, rec.Dropped, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(events) > 0 {
		if err := s.copyEvents(ctx, tx, rec.ID, events); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Session saved.", zap.String("session_id", rec.ID), zap.Int("events", len(events)))
	return nil
}

func (s *Store) copyEvents(ctx context.Context, tx pgx.Tx, sessionID string, events []stats.Event) error {
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{sessionID, i, e.At.UTC(), string(e.Type), e.Kind, e.Price}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"session_events"}, eventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy session events: %w", err)
	}
	if int(n) != len(events) {
		return fmt.Errorf("mismatch in copied events count: expected %d, got %d", len(events), n)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var mode string
		var successes, failures []byte
		if err := rows.Scan(&rec.ID, &mode, &rec.StartedAt, &rec.EndedAt, &rec.Cycles,
			&successes, &failures, &rec.LastPrice, &rec.Dropped, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.Mode = schemas.OperationMode(mode)
		if rec.Successes, err = decodeCounts(successes); err != nil {
			return nil, err
		}
		if rec.Failures, err = decodeCounts(failures); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func encodeCounts(m map[string]int) ([]byte, error) {
	if m == nil {
		m = map[string]int{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode counters: %w", err)
	}
	return data, nil
}

func decodeCounts(data []byte) (map[string]int, error) {
	m := map[string]int{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode counters: %w", err)
	}
	return m, nil
}

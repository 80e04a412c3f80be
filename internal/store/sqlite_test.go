// File: internal/store/sqlite_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/stats"
)

func newLocalStore(t *testing.T, path string) *LocalStore {
	t.Helper()
	s, err := OpenLocal(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocalStore(t, ":memory:")

	older := sampleRecord()
	newer := sampleRecord()
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	newer.EndedAt = newer.StartedAt.Add(90 * time.Second)
	newer.Mode = schemas.ModeEditUpdate
	newer.Failures = nil
	newer.Error = "device disconnected"

	events := []stats.Event{
		{At: older.StartedAt, Type: stats.EventCycle},
		{At: older.StartedAt.Add(time.Second), Type: stats.EventSuccess, Kind: schemas.KindCreate, Price: 505},
	}
	require.NoError(t, s.SaveSession(ctx, older, events))
	require.NoError(t, s.SaveSession(ctx, newer, nil))

	sessions, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	newer.Failures = map[string]int{}
	if diff := cmp.Diff([]SessionRecord{newer, older}, sessions); diff != "" {
		t.Errorf("ListSessions mismatch (-want +got):\n%s", diff)
	}

	n, err := s.CountEvents(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	limited, err := s.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}

func TestLocalStoreRejectsDuplicatesAtomically(t *testing.T) {
	ctx := context.Background()
	s := newLocalStore(t, ":memory:")

	rec := sampleRecord()
	require.NoError(t, s.SaveSession(ctx, rec, []stats.Event{{At: rec.StartedAt, Type: stats.EventCycle}}))

	err := s.SaveSession(ctx, rec, []stats.Event{{At: rec.StartedAt, Type: stats.EventCycle}, {At: rec.EndedAt, Type: stats.EventCycle}})
	assert.ErrorContains(t, err, "failed to insert session")

	n, err := s.CountEvents(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the failed save must not leave events behind")
}

func TestLocalStoreInvalidID(t *testing.T) {
	s := newLocalStore(t, ":memory:")
	rec := sampleRecord()
	rec.ID = "not-a-uuid"
	assert.ErrorContains(t, s.SaveSession(context.Background(), rec, nil), "invalid session id")
}

func TestLocalStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	rec := sampleRecord()
	rec.ID = uuid.NewString()

	first, err := OpenLocal(context.Background(), path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.EnsureSchema(context.Background()))
	require.NoError(t, first.SaveSession(context.Background(), rec, nil))
	require.NoError(t, first.Close())

	second := newLocalStore(t, path)
	sessions, err := second.ListSessions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rec.ID, sessions[0].ID)
	assert.True(t, rec.StartedAt.Equal(sessions[0].StartedAt))
}

package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewEvent(t *testing.T) {
	e := NewEvent("sess-1", CategoryScript, "run")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, CategoryScript, e.Category)
	assert.False(t, e.StartedAt.IsZero())

	done := e.Finish(StatusError, fmt.Errorf("boom"))
	assert.Equal(t, StatusError, done.Status)
	assert.Equal(t, "boom", done.Error)
	assert.GreaterOrEqual(t, done.Duration, int64(0))
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := NewEvent("sess-1", CategoryModel, "complete")
		require.NoError(t, store.Record(ctx, e.Finish(StatusSuccess, nil)))
	}
	other := NewEvent("sess-2", CategoryScript, "run")
	other.ExitCode = 1
	require.NoError(t, store.Record(ctx, other.Finish(StatusError, fmt.Errorf("exit 1"))))

	events, err := store.Recent(ctx, "sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "sess-1", e.SessionID)
		assert.Equal(t, StatusSuccess, e.Status)
	}

	// Empty session id spans all sessions.
	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	limited, err := store.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecentFailedRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := NewEvent("sess-1", CategoryScript, "run")
	e.ExitCode = 3
	require.NoError(t, store.Record(ctx, e.Finish(StatusError, nil)))

	events, err := store.Recent(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].ExitCode)
	assert.Equal(t, StatusError, events[0].Status)
}

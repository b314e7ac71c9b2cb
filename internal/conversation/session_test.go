package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernlabs/taskd/internal/task"
)

func openSessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()
	taskStore, err := task.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = taskStore.Close() })

	sqlite, err := NewSQLiteSessionStore(taskStore.Conn(), 0)
	require.NoError(t, err)

	mem := NewMemorySessionStore(0)
	t.Cleanup(mem.Close)

	return map[string]SessionStore{"sqlite": sqlite, "memory": mem}
}

func TestSessionStore_RoundTrip(t *testing.T) {
	for name, store := range openSessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "u1", "s1")
			require.NoError(t, err)
			assert.False(t, ok)

			due := time.Date(2030, 5, 1, 23, 59, 0, 0, time.UTC)
			sess := Session{
				UserID:    "u1",
				SessionID: "s1",
				State:     StateCollecting,
				Workflow:  WorkflowCreate,
				Step:      StepDeadline,
				Draft:     Draft{Title: "buy milk", Priority: task.PriorityHigh, DueDate: &due, DueSet: true},
				UpdatedAt: time.Now().UTC().Truncate(time.Second),
			}
			require.NoError(t, store.Put(ctx, sess))

			got, ok, err := store.Get(ctx, "u1", "s1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StateCollecting, got.State)
			assert.Equal(t, WorkflowCreate, got.Workflow)
			assert.Equal(t, StepDeadline, got.Step)
			assert.Equal(t, "buy milk", got.Draft.Title)
			require.NotNil(t, got.Draft.DueDate)
			assert.True(t, got.Draft.DueDate.Equal(due))
			assert.True(t, got.Draft.DueSet)

			// Put replaces.
			sess.State = StateIdle
			sess.Workflow = WorkflowNone
			require.NoError(t, store.Put(ctx, sess))
			got, ok, err = store.Get(ctx, "u1", "s1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StateIdle, got.State)

			require.NoError(t, store.Delete(ctx, "u1", "s1"))
			_, ok, err = store.Get(ctx, "u1", "s1")
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting again is fine.
			assert.NoError(t, store.Delete(ctx, "u1", "s1"))
		})
	}
}

func TestSessionStore_ScopedByUser(t *testing.T) {
	for name, store := range openSessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, Session{UserID: "u1", SessionID: "shared", State: StateIdle, UpdatedAt: time.Now()}))

			_, ok, err := store.Get(ctx, "u2", "shared")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSQLiteSessionStore_TTL(t *testing.T) {
	taskStore, err := task.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer taskStore.Close()

	store, err := NewSQLiteSessionStore(taskStore.Conn(), time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Session{
		UserID: "u1", SessionID: "old", State: StateConfirming,
		UpdatedAt: time.Now().Add(-2 * time.Minute),
	}))
	require.NoError(t, store.Put(ctx, Session{
		UserID: "u1", SessionID: "fresh", State: StateConfirming,
		UpdatedAt: time.Now(),
	}))

	_, ok, err := store.Get(ctx, "u1", "old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "u1", "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	// Sweep removes only expired rows.
	require.NoError(t, store.Put(ctx, Session{
		UserID: "u1", SessionID: "old2", State: StateIdle,
		UpdatedAt: time.Now().Add(-2 * time.Minute),
	}))
	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSessionReset(t *testing.T) {
	sess := Session{
		UserID: "u1", SessionID: "s1",
		State: StateConfirming, Workflow: WorkflowDelete,
		TargetID: 7, Candidates: []int64{1, 2}, Query: "milk",
	}
	sess.Reset()
	assert.Equal(t, StateIdle, sess.State)
	assert.Equal(t, WorkflowNone, sess.Workflow)
	assert.Zero(t, sess.TargetID)
	assert.Nil(t, sess.Candidates)
	assert.Empty(t, sess.Query)
	// Identity survives.
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "s1", sess.SessionID)
}

func TestActivityTag(t *testing.T) {
	sess := Session{State: StateIdle, Workflow: WorkflowCreate}
	assert.Empty(t, string(sess.ActivityTag()))

	sess.State = StateCollecting
	assert.EqualValues(t, "creating", sess.ActivityTag())

	sess.Workflow = WorkflowUncomplete
	assert.EqualValues(t, "completing", sess.ActivityTag())
}

package taskstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strp(s string) *string { return &s }

func TestUpsertInsertsNewTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "task-1", UpsertParams{
		Action:    strp("run_and_score"),
		Workspace: strp("/tmp/ws1"),
		State:     strp(StateSubmitted),
	})
	require.NoError(t, err)

	task, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, StateSubmitted, task.State)
	require.False(t, task.FinishedAt.Valid, "expected finished_at to be unset")
}

func TestUpsertUpdatesOnlyProvidedFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Upsert(ctx, "task-2", UpsertParams{
		Action:    strp("score_only"),
		Workspace: strp("/tmp/ws2"),
		State:     strp(StateSubmitted),
	})

	err := store.Upsert(ctx, "task-2", UpsertParams{
		State:    strp(StateSuccess),
		Result:   map[string]any{"score": 0.9},
		Finished: true,
	})
	require.NoError(t, err)

	task, err := store.Get(ctx, "task-2")
	require.NoError(t, err)
	require.Equal(t, "/tmp/ws2", task.Workspace, "expected workspace to be preserved")
	require.Equal(t, StateSuccess, task.State)
	require.True(t, task.FinishedAt.Valid, "expected finished_at to be set")
	require.Equal(t, 0.9, task.Result["score"])
}

func TestGetMissingTaskReturnsNil(t *testing.T) {
	store := newTestStore(t)
	task, err := store.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestFindByWorkspaceReturnsInFlightOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Upsert(ctx, "t-a", UpsertParams{Workspace: strp("/tmp/ws"), State: strp(StateSubmitted)})
	_ = store.Upsert(ctx, "t-b", UpsertParams{Workspace: strp("/tmp/ws"), State: strp(StateSuccess), Finished: true})

	ids, err := store.FindByWorkspace(ctx, "/tmp/ws")
	require.NoError(t, err)
	require.Equal(t, []string{"t-a"}, ids)
}

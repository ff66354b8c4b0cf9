package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreTTL(t *testing.T) {
	store := NewSessionStore(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &model.Session{Id: "sess-1", UserId: "u1"}))

	sess, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "u1", sess.UserId)

	time.Sleep(70 * time.Millisecond)
	_, err = store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionStoreCopiesValues(t *testing.T) {
	store := NewSessionStore(time.Hour)
	ctx := context.Background()

	sess := &model.Session{Id: "sess-1", UserId: "u1"}
	require.NoError(t, store.Save(ctx, sess))
	sess.UserId = "mutated"

	loaded, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "u1", loaded.UserId)
}

func TestRunStore(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &model.FlowRun{Id: "run-1", FlowId: "f", SessionId: "sess-1", Status: model.RUN_STATUS_ACTIVE}
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATUS_ACTIVE, loaded.Status)

	list, err := store.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, "run-1"))
	_, err = store.Get(ctx, "run-1")
	require.ErrorIs(t, err, model.ErrRunNotFound)
}

func TestTrainingQueueBatches(t *testing.T) {
	queue := NewTrainingQueue()
	ctx := context.Background()

	require.NoError(t, queue.Push(ctx, []byte("a")))
	require.NoError(t, queue.Push(ctx, []byte("b")))
	require.NoError(t, queue.Push(ctx, []byte("c")))

	batch, err := queue.Pop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	batch, err = queue.Pop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

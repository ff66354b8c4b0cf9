package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

func TestSqliteStores(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, runs *sqliteRunStore, defs *sqliteDefinitionStore,
	){
		"run round trip":           testRunRoundTrip,
		"run list by session":      testRunListBySession,
		"definition round trip":    testDefinitionRoundTrip,
		"missing rows map to errs": testNotFound,
	} {
		t.Run(scenario, func(t *testing.T) {
			db, err := Open(":memory:")
			require.NoError(t, err)
			defer db.Close()

			fn(t, NewSqliteRunStore(db), NewSqliteDefinitionStore(db))
		})
	}
}

func testRunRoundTrip(t *testing.T, runs *sqliteRunStore, defs *sqliteDefinitionStore) {
	ctx := context.Background()
	run := &model.FlowRun{
		Id:           "run-1",
		FlowId:       "food-order",
		SessionId:    "sess-1",
		CurrentState: "ask_item",
		Status:       model.RUN_STATUS_ACTIVE,
		Context: &model.FlowContext{
			System: model.SystemInfo{FlowId: "food-order", FlowRunId: "run-1", CurrentState: "ask_item"},
			Data:   map[string]any{"foodItem": "jollof rice"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, runs.Save(ctx, run))

	loaded, err := runs.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "jollof rice", loaded.Context.Data["foodItem"])
	require.Equal(t, model.RUN_STATUS_ACTIVE, loaded.Status)

	// save again updates in place
	run.Status = model.RUN_STATUS_COMPLETED
	run.CurrentState = "done"
	require.NoError(t, runs.Save(ctx, run))
	loaded, err = runs.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATUS_COMPLETED, loaded.Status)
	require.Equal(t, "done", loaded.CurrentState)
}

func testRunListBySession(t *testing.T, runs *sqliteRunStore, defs *sqliteDefinitionStore) {
	ctx := context.Background()
	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, runs.Save(ctx, &model.FlowRun{
			Id: id, FlowId: "f", SessionId: "sess-1", CurrentState: "s",
			Status: model.RUN_STATUS_ACTIVE, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
	}
	list, err := runs.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func testDefinitionRoundTrip(t *testing.T, runs *sqliteRunStore, defs *sqliteDefinitionStore) {
	ctx := context.Background()
	def := &model.FlowDefinition{
		Id:           "food-order",
		Trigger:      "order.food",
		Module:       model.MODULE_FOOD,
		InitialState: "start",
		States:       map[string]model.State{"start": {Type: model.STATE_TYPE_WAIT}},
	}
	require.NoError(t, defs.Save(ctx, def))

	loaded, err := defs.Get(ctx, "food-order")
	require.NoError(t, err)
	require.Equal(t, model.MODULE_FOOD, loaded.Module)

	list, err := defs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, defs.Delete(ctx, "food-order"))
	_, err = defs.Get(ctx, "food-order")
	require.ErrorIs(t, err, model.ErrFlowNotFound)
}

func testNotFound(t *testing.T, runs *sqliteRunStore, defs *sqliteDefinitionStore) {
	ctx := context.Background()
	_, err := runs.Get(ctx, "ghost")
	require.ErrorIs(t, err, model.ErrRunNotFound)
	_, err = defs.Get(ctx, "ghost")
	require.ErrorIs(t, err, model.ErrFlowNotFound)
}

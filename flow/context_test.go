package flow

import (
	"fmt"
	"testing"
	"time"

	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

func TestHydrateFromSession(t *testing.T) {
	sess := &model.Session{
		Id:          "sess-1",
		UserId:      "user-1",
		PhoneNumber: "+2348000000000",
		AuthToken:   "tok",
		Location:    &model.Location{Latitude: 6.5, Longitude: 3.3},
		History: []model.HistoryEntry{
			{Role: model.HISTORY_ROLE_USER, Content: "hi"},
			{Role: model.HISTORY_ROLE_BOT, Content: "hello!"},
		},
	}
	fctx := NewContext("flow-1", "run-1", "start")
	HydrateFromSession(fctx, sess)

	require.Equal(t, "user-1", fctx.Data[model.CTX_KEY_USER_ID])
	require.Equal(t, "tok", fctx.Data[model.CTX_KEY_AUTH_TOKEN])
	require.NotNil(t, fctx.Data[model.CTX_KEY_LOCATION])
	history := model.HistoryFromValue(fctx.Data[model.CTX_KEY_HISTORY])
	require.Len(t, history, 2)
}

func TestMergePrecedence(t *testing.T) {
	runCtx := NewContext("flow-1", "run-1", "middle")
	Set(runCtx, "foodItem", "jollof rice")
	Set(runCtx, model.CTX_KEY_USER_ID, "stale-user")
	sess := &model.Session{
		Id:       "sess-1",
		UserId:   "fresh-user",
		Location: &model.Location{Latitude: 1, Longitude: 2},
	}
	MergeSessionContext(runCtx, sess)

	// session wins for identity and location, run wins for step data
	require.Equal(t, "fresh-user", runCtx.Data[model.CTX_KEY_USER_ID])
	require.Equal(t, "jollof rice", runCtx.Data["foodItem"])
	require.NotNil(t, runCtx.Data[model.CTX_KEY_LOCATION])
}

func TestMergeDoesNotClearIdentity(t *testing.T) {
	runCtx := NewContext("flow-1", "run-1", "middle")
	Set(runCtx, model.CTX_KEY_AUTH_TOKEN, "established")
	MergeSessionContext(runCtx, &model.Session{Id: "sess-1"})
	require.Equal(t, "established", runCtx.Data[model.CTX_KEY_AUTH_TOKEN])
}

func TestMergeHistoryDedupAndCap(t *testing.T) {
	var runSide, sessSide []model.HistoryEntry
	for i := 0; i < 30; i++ {
		runSide = append(runSide, model.HistoryEntry{Role: "user", Content: fmt.Sprintf("run %d", i)})
	}
	sessSide = append(sessSide, model.HistoryEntry{Role: "user", Content: "run 5"}) // duplicate content
	for i := 0; i < 20; i++ {
		sessSide = append(sessSide, model.HistoryEntry{Role: "bot", Content: fmt.Sprintf("sess %d", i)})
	}

	merged := MergeHistory(runSide, sessSide)
	require.Len(t, merged, model.HISTORY_LIMIT)

	seen := map[string]int{}
	for _, e := range merged {
		seen[e.Content]++
		require.LessOrEqual(t, seen[e.Content], 1, "content %q duplicated", e.Content)
	}
	// oldest entries past the cap were dropped from the front
	require.Equal(t, 0, seen["run 0"])
	require.Equal(t, 1, seen["sess 19"])
}

func TestPreserveHistoryOutlivesRun(t *testing.T) {
	fctx := NewContext("flow-1", "run-1", "done")
	Set(fctx, model.CTX_KEY_HISTORY, []model.HistoryEntry{
		{Role: "user", Content: "order pizza", At: time.Now()},
	})
	sess := &model.Session{Id: "sess-1", History: []model.HistoryEntry{{Role: "bot", Content: "welcome"}}}
	PreserveHistory(sess, fctx)
	require.Len(t, sess.History, 2)
	require.Equal(t, "order pizza", sess.History[1].Content)
}

func TestProgress(t *testing.T) {
	fctx := NewContext("flow-1", "run-1", "middle")
	fctx.Data["visitedStates"] = []any{"start", "middle"}
	require.Equal(t, 50, Progress(fctx, 4, []string{"end"}))

	UpdateState(fctx, "end")
	require.Equal(t, 100, Progress(fctx, 4, []string{"end"}))
}

package flow

import (
	"github.com/chatflow/chatflow/model"
)

// NewContext creates a fresh flow context for a run starting at initialState.
func NewContext(flowId string, runId string, initialState string) *model.FlowContext {
	return &model.FlowContext{
		System: model.SystemInfo{
			FlowId:       flowId,
			FlowRunId:    runId,
			CurrentState: initialState,
		},
		Data: make(map[string]any),
	}
}

func Get(fctx *model.FlowContext, key string) (any, bool) {
	if fctx == nil || fctx.Data == nil {
		return nil, false
	}
	v, ok := fctx.Data[key]
	return v, ok
}

func Set(fctx *model.FlowContext, key string, value any) {
	if fctx.Data == nil {
		fctx.Data = make(map[string]any)
	}
	fctx.Data[key] = value
}

func UpdateState(fctx *model.FlowContext, stateName string) {
	fctx.System.CurrentState = stateName
}

// Progress estimates how far through the flow the run is, as a percentage.
// Final states count as 100 regardless of position.
func Progress(fctx *model.FlowContext, totalStates int, finalStates []string) int {
	if totalStates <= 0 {
		return 0
	}
	for _, fs := range finalStates {
		if fctx.System.CurrentState == fs {
			return 100
		}
	}
	visited, _ := Get(fctx, "visitedStates")
	count := 0
	if list, ok := visited.([]any); ok {
		count = len(list)
	} else if list, ok := visited.([]string); ok {
		count = len(list)
	}
	if count == 0 {
		count = 1
	}
	pct := count * 100 / totalStates
	if pct > 99 {
		pct = 99
	}
	return pct
}

// HydrateFromSession copies conversational continuity out of the session
// snapshot into a freshly created context: history (capped), last known
// location and established identity. A brand new run starts already knowing
// who it is talking to.
func HydrateFromSession(fctx *model.FlowContext, sess *model.Session) {
	if sess == nil {
		return
	}
	if len(sess.History) > 0 {
		history := sess.History
		if len(history) > model.HISTORY_LIMIT {
			history = history[len(history)-model.HISTORY_LIMIT:]
		}
		Set(fctx, model.CTX_KEY_HISTORY, history)
	}
	if sess.Location != nil {
		Set(fctx, model.CTX_KEY_LOCATION, sess.Location)
	}
	if sess.UserId != "" {
		Set(fctx, model.CTX_KEY_USER_ID, sess.UserId)
	}
	if sess.PhoneNumber != "" {
		Set(fctx, model.CTX_KEY_PHONE, sess.PhoneNumber)
	}
	if sess.AuthToken != "" {
		Set(fctx, model.CTX_KEY_AUTH_TOKEN, sess.AuthToken)
	}
}

// MergeSessionContext merges the session snapshot into a run context loaded
// from the durable store. Precedence is fixed and total: session wins for
// location and identity (it is freshest), the run wins for in-progress step
// data, and history is the union of both sides deduplicated by content with
// the oldest entries dropped past the cap.
func MergeSessionContext(runCtx *model.FlowContext, sess *model.Session) {
	if sess == nil {
		return
	}
	if sess.Location != nil {
		Set(runCtx, model.CTX_KEY_LOCATION, sess.Location)
	}
	if sess.UserId != "" {
		Set(runCtx, model.CTX_KEY_USER_ID, sess.UserId)
	}
	if sess.PhoneNumber != "" {
		Set(runCtx, model.CTX_KEY_PHONE, sess.PhoneNumber)
	}
	if sess.AuthToken != "" {
		Set(runCtx, model.CTX_KEY_AUTH_TOKEN, sess.AuthToken)
	}
	runHistory := model.HistoryFromValue(runCtx.Data[model.CTX_KEY_HISTORY])
	merged := MergeHistory(runHistory, sess.History)
	if len(merged) > 0 {
		Set(runCtx, model.CTX_KEY_HISTORY, merged)
	}
}

// MergeHistory unions two history rings, deduplicating by content and
// keeping only the newest HISTORY_LIMIT entries. Order within each side is
// preserved; the run side comes first so the session's fresher tail wins
// ties on position.
func MergeHistory(runSide []model.HistoryEntry, sessionSide []model.HistoryEntry) []model.HistoryEntry {
	seen := make(map[string]bool)
	merged := make([]model.HistoryEntry, 0, len(runSide)+len(sessionSide))
	for _, e := range runSide {
		if e.Content == "" || seen[e.Content] {
			continue
		}
		seen[e.Content] = true
		merged = append(merged, e)
	}
	for _, e := range sessionSide {
		if e.Content == "" || seen[e.Content] {
			continue
		}
		seen[e.Content] = true
		merged = append(merged, e)
	}
	if len(merged) > model.HISTORY_LIMIT {
		merged = merged[len(merged)-model.HISTORY_LIMIT:]
	}
	return merged
}

// PreserveHistory folds a completed run's conversation history into the
// session level history so it outlives the run's working context.
func PreserveHistory(sess *model.Session, fctx *model.FlowContext) {
	if fctx == nil {
		return
	}
	runHistory := model.HistoryFromValue(fctx.Data[model.CTX_KEY_HISTORY])
	sess.History = MergeHistory(sess.History, runHistory)
}

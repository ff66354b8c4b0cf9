package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/chatflow/chatflow/classify"
	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/flow"
	"github.com/chatflow/chatflow/metadata"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	gateway  *Gateway
	runs     *inmem.RunStore
	sessions *inmem.SessionStore
}

func newFixture(t *testing.T, dedupWindow time.Duration) *fixture {
	t.Helper()
	runs := inmem.NewRunStore()
	sessions := inmem.NewSessionStore(time.Hour)
	registry := executor.NewBuiltinRegistry()
	definitions := metadata.NewService(inmem.NewDefinitionStore(), registry)

	foodFlow := &model.FlowDefinition{
		Id:           "food-order",
		Name:         "Food Order",
		Trigger:      "order.food|food",
		Module:       model.MODULE_FOOD,
		InitialState: "ask_item",
		FinalStates:  []string{"done"},
		States: map[string]model.State{
			"ask_item": {
				Type: model.STATE_TYPE_WAIT,
				OnEntry: []model.ActionSpec{
					{Id: "p", Executor: "send_message", Config: map[string]any{"text": "What would you like to eat?"}},
				},
				Actions: []model.ActionSpec{
					{Id: "c", Executor: "collect_input", Config: map[string]any{"key": "foodItem"}},
				},
				Transitions: map[string]string{"default": "done"},
			},
			"done": {
				Type: model.STATE_TYPE_ACTION,
				OnEntry: []model.ActionSpec{
					{Id: "d", Executor: "send_message", Config: map[string]any{"text": "Ordering {$.foodItem} now."}},
				},
			},
		},
	}
	greetingFlow := &model.FlowDefinition{
		Id:           "greeting",
		Name:         "Greeting",
		Trigger:      "greeting|hello",
		Module:       model.MODULE_GENERAL,
		InitialState: "greet",
		FinalStates:  []string{"greet"},
		States: map[string]model.State{
			"greet": {
				Type: model.STATE_TYPE_ACTION,
				OnEntry: []model.ActionSpec{
					{Id: "g", Executor: "send_message", Config: map[string]any{"text": "Hi there!"}},
				},
			},
		},
	}
	for _, def := range []*model.FlowDefinition{foodFlow, greetingFlow} {
		_, err := definitions.Save(context.Background(), def)
		require.NoError(t, err)
	}

	classifier := classify.NewClassifier(nil, nil, nil, 0.5)
	engine := flow.NewEngine(registry, 10)
	gw := New(runs, sessions, definitions, classifier, engine, dedupWindow, 0.75)
	return &fixture{gateway: gw, runs: runs, sessions: sessions}
}

func textMsg(sessionId string, text string) *model.Message {
	return &model.Message{SessionId: sessionId, Type: model.MESSAGE_TYPE_TEXT, Text: text}
}

func TestDedupWindow(t *testing.T) {
	f := newFixture(t, 80*time.Millisecond)

	first, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	require.False(t, first.Deduped)

	second, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	require.True(t, second.Deduped)
	require.Empty(t, second.Replies)

	// a slightly different message passes
	third, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food!"))
	require.NoError(t, err)
	require.False(t, third.Deduped)

	// the same message after the window elapses passes
	time.Sleep(120 * time.Millisecond)
	fourth, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	require.False(t, fourth.Deduped)
}

func TestStartFlowAndFeedWaitState(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	result, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.Equal(t, "ask_item", result.NextState)
	require.NotEmpty(t, result.Replies)

	time.Sleep(2 * time.Millisecond)
	result, err = f.gateway.Handle(context.Background(), textMsg("sess-1", "jollof rice"))
	require.NoError(t, err)
	require.True(t, result.Completed)

	run, err := f.runs.Get(context.Background(), result.RunId)
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATUS_COMPLETED, run.Status)
	require.Equal(t, "jollof rice", run.Context.Data["foodItem"])
}

func TestInterruptSuspendsAndOffersResume(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	started, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	foodRunId := started.RunId

	// a confident greeting while the food flow waits interrupts it
	time.Sleep(2 * time.Millisecond)
	result, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "hello"))
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "greeting", result.FlowId)

	// the interrupting flow completed, so the suspended one is offered back
	require.NotNil(t, result.ResumeOffer)
	require.Equal(t, foodRunId, result.ResumeOffer.RunId)

	// the suspended run's context survived intact
	suspended, err := f.runs.Get(context.Background(), foodRunId)
	require.NoError(t, err)
	require.NotEqual(t, model.RUN_STATUS_CANCELLED, suspended.Status)
	require.Equal(t, "ask_item", suspended.CurrentState)

	resumed, err := f.gateway.ResumeSuspendedFlow(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, foodRunId, resumed.RunId)

	// the next message feeds the reactivated wait state
	time.Sleep(2 * time.Millisecond)
	result, err = f.gateway.Handle(context.Background(), textMsg("sess-1", "fried rice"))
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, foodRunId, result.RunId)
}

func TestIdentityNeverDowngraded(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	msg := textMsg("sess-1", "order food")
	msg.UserId = "user-1"
	msg.AuthToken = "token-1"
	_, err := f.gateway.Handle(context.Background(), msg)
	require.NoError(t, err)

	// a later message without auth fields keeps the established identity
	time.Sleep(2 * time.Millisecond)
	_, err = f.gateway.Handle(context.Background(), textMsg("sess-1", "jollof rice"))
	require.NoError(t, err)

	sess, err := f.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserId)
	require.Equal(t, "token-1", sess.AuthToken)
	require.True(t, sess.Authenticated())
}

func TestUnknownIntentFallsBackToGeneralModule(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	result, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "qwertyuiop"))
	require.NoError(t, err)
	require.Equal(t, "greeting", result.FlowId)
	require.NotEmpty(t, result.Replies)
}

func TestResetCancelsActiveRun(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	started, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	result, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "reset"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Replies)

	run, err := f.runs.Get(context.Background(), started.RunId)
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATUS_CANCELLED, run.Status)
}

func locationMsg(sessionId string, lat float64, lng float64) *model.Message {
	return &model.Message{
		SessionId: sessionId,
		Type:      model.MESSAGE_TYPE_LOCATION,
		Location:  &model.Location{Latitude: lat, Longitude: lng},
	}
}

func TestLocationMessagesNeverDeduped(t *testing.T) {
	f := newFixture(t, time.Hour)

	first, err := f.gateway.Handle(context.Background(), locationMsg("sess-1", 6.5244, 3.3792))
	require.NoError(t, err)
	require.False(t, first.Deduped)

	// a different pin inside the window is a different message
	second, err := f.gateway.Handle(context.Background(), locationMsg("sess-1", 6.4550, 3.3941))
	require.NoError(t, err)
	require.False(t, second.Deduped)

	sess, err := f.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 3.3941, sess.Location.Longitude)
}

func TestResumeSettlesCurrentActiveRun(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	started, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "order food"))
	require.NoError(t, err)
	suspendedId := started.RunId

	// a second live run occupies the active slot
	active := &model.FlowRun{
		Id:           "run-active",
		FlowId:       "greeting",
		SessionId:    "sess-1",
		CurrentState: "greet",
		Status:       model.RUN_STATUS_ACTIVE,
	}
	active.Context = flow.NewContext("greeting", active.Id, "greet")
	require.NoError(t, f.runs.Save(context.Background(), active))

	sess, err := f.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	sess.SuspendedRunId = suspendedId
	sess.ActiveRunId = active.Id
	require.NoError(t, f.sessions.Save(context.Background(), sess))

	resumed, err := f.gateway.ResumeSuspendedFlow(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, suspendedId, resumed.RunId)

	// the displaced run is closed out, not left active in the store
	displaced, err := f.runs.Get(context.Background(), "run-active")
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATUS_CANCELLED, displaced.Status)

	sess, err = f.sessions.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, suspendedId, sess.ActiveRunId)
	require.Empty(t, sess.SuspendedRunId)
}

func TestResumeOfferFallsBackWhenFlowNameUnknown(t *testing.T) {
	f := newFixture(t, time.Millisecond)

	ghost := &model.FlowRun{
		Id:           "run-ghost",
		FlowId:       "retired-flow",
		SessionId:    "sess-1",
		CurrentState: "ask",
		Status:       model.RUN_STATUS_ACTIVE,
	}
	ghost.Context = flow.NewContext("retired-flow", ghost.Id, "ask")
	require.NoError(t, f.runs.Save(context.Background(), ghost))

	sess := &model.Session{Id: "sess-1", SuspendedRunId: ghost.Id, UpdatedAt: time.Now()}
	require.NoError(t, f.sessions.Save(context.Background(), sess))

	result, err := f.gateway.Handle(context.Background(), textMsg("sess-1", "hello"))
	require.NoError(t, err)
	require.NotNil(t, result.ResumeOffer)
	last := result.Replies[len(result.Replies)-1]
	require.Contains(t, last.Content, "unfinished previous conversation")
	require.NotContains(t, last.Content, "  ")
}

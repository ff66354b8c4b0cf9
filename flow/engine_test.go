package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	name  string
	calls []string
	fail  bool
	event string
}

func (r *recordingExecutor) Name() string { return r.name }

func (r *recordingExecutor) Execute(ctx context.Context, in executor.Input) (executor.Output, error) {
	r.calls = append(r.calls, fmt.Sprintf("%v", in.Config["step"]))
	if r.fail {
		return executor.Output{}, fmt.Errorf("backend exploded")
	}
	return executor.Output{
		Event: r.event,
		Data:  map[string]any{"lastStep": in.Config["step"]},
		Reply: &model.Reply{Content: fmt.Sprintf("ran %v", in.Config["step"])},
	}, nil
}

func testRegistry(execs ...*recordingExecutor) *executor.Registry {
	reg := executor.NewRegistry()
	for _, ex := range execs {
		reg.Register(ex)
	}
	return reg
}

func newRun(def *model.FlowDefinition) *model.FlowRun {
	run := &model.FlowRun{
		Id:        "run-1",
		FlowId:    def.Id,
		SessionId: "sess-1",
		Status:    model.RUN_STATUS_ACTIVE,
	}
	run.Context = NewContext(def.Id, run.Id, def.InitialState)
	return run
}

func spec(id string, step string) model.ActionSpec {
	return model.ActionSpec{Id: id, Executor: "probe", Config: map[string]any{"step": step}}
}

func TestStartHaltsAtInitialWaitState(t *testing.T) {
	probe := &recordingExecutor{name: "probe"}
	def := &model.FlowDefinition{
		Id:           "wait-flow",
		Trigger:      "wait",
		InitialState: "ask",
		FinalStates:  []string{"end"},
		States: map[string]model.State{
			"ask": {
				Type:        model.STATE_TYPE_WAIT,
				OnEntry:     []model.ActionSpec{spec("a1", "entry")},
				Transitions: map[string]string{"default": "end"},
			},
			"end": {Type: model.STATE_TYPE_ACTION},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	result, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.Equal(t, "ask", result.NextState)
	require.Equal(t, []string{"entry"}, probe.calls)
	require.Equal(t, model.RUN_STATUS_ACTIVE, run.Status)
}

func TestChainedActionStatesCompleteInOneCall(t *testing.T) {
	probe := &recordingExecutor{name: "probe"}
	def := &model.FlowDefinition{
		Id:           "chain-flow",
		Trigger:      "chain",
		InitialState: "s1",
		FinalStates:  []string{"s4"},
		States: map[string]model.State{
			"s1": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a1", "s1")}, Transitions: map[string]string{"default": "s2"}},
			"s2": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a2", "s2")}, Transitions: map[string]string{"default": "s3"}},
			"s3": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a3", "s3")}, Transitions: map[string]string{"default": "s4"}},
			"s4": {Type: model.STATE_TYPE_ACTION, OnEntry: []model.ActionSpec{spec("a4", "s4")}},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	result, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "s4", result.NextState)
	require.Equal(t, []string{"s1", "s2", "s3", "s4"}, probe.calls)
	require.Equal(t, model.RUN_STATUS_COMPLETED, run.Status)
}

func TestCyclicFlowHaltsAtIterationCap(t *testing.T) {
	probe := &recordingExecutor{name: "probe"}
	def := &model.FlowDefinition{
		Id:           "cycle-flow",
		Trigger:      "cycle",
		InitialState: "ping",
		FinalStates:  []string{"end"},
		States: map[string]model.State{
			"ping": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a1", "ping")}, Transitions: map[string]string{"default": "pong"}},
			"pong": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a2", "pong")}, Transitions: map[string]string{"default": "ping"}},
			"end":  {Type: model.STATE_TYPE_ACTION},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	result, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.NotEqual(t, model.RUN_STATUS_COMPLETED, run.Status)
	require.LessOrEqual(t, len(probe.calls), 10)
}

func TestExecutorFailureMarksRunFailed(t *testing.T) {
	probe := &recordingExecutor{name: "probe", fail: true}
	def := &model.FlowDefinition{
		Id:           "fail-flow",
		Trigger:      "fail",
		InitialState: "s1",
		FinalStates:  []string{"s2"},
		States: map[string]model.State{
			"s1": {Type: model.STATE_TYPE_ACTION, Actions: []model.ActionSpec{spec("a1", "s1")}, Transitions: map[string]string{"default": "s2"}},
			"s2": {Type: model.STATE_TYPE_ACTION},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	result, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.Equal(t, model.RUN_STATUS_FAILED, run.Status)
	require.Contains(t, run.Error, "backend exploded")
	require.NotEmpty(t, result.Replies)
	require.Equal(t, FAILURE_REPLY, result.Replies[len(result.Replies)-1].Content)
	// the failing state committed nothing
	require.NotContains(t, run.Context.Data, "lastStep")
}

func TestDecisionStatePicksFirstMatchingCondition(t *testing.T) {
	probe := &recordingExecutor{name: "probe"}
	def := &model.FlowDefinition{
		Id:           "decision-flow",
		Trigger:      "decide",
		InitialState: "seed",
		FinalStates:  []string{"big", "small"},
		States: map[string]model.State{
			"seed": {
				Type:        model.STATE_TYPE_ACTION,
				Actions:     []model.ActionSpec{{Id: "seed", Executor: "probe", Config: map[string]any{"step": "seed"}}},
				Transitions: map[string]string{"default": "branch"},
			},
			"branch": {
				Type: model.STATE_TYPE_DECISION,
				Conditions: []model.Condition{
					{Key: "lastStep", Op: model.CONDITION_OP_EQ, Value: "seed", Outcome: "big"},
					{Key: "lastStep", Op: model.CONDITION_OP_EXISTS, Outcome: "small"},
				},
				Transitions: map[string]string{"big": "big", "small": "small", "default": "small"},
			},
			"big":   {Type: model.STATE_TYPE_ACTION, OnEntry: []model.ActionSpec{spec("b", "big")}},
			"small": {Type: model.STATE_TYPE_ACTION, OnEntry: []model.ActionSpec{spec("s", "small")}},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	result, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "big", result.NextState)
}

func TestResumeWaitStateTakesEventTransition(t *testing.T) {
	probe := &recordingExecutor{name: "probe"}
	def := &model.FlowDefinition{
		Id:           "resume-flow",
		Trigger:      "resume",
		InitialState: "confirm",
		FinalStates:  []string{"yes", "no"},
		States: map[string]model.State{
			"confirm": {
				Type:        model.STATE_TYPE_WAIT,
				OnEntry:     []model.ActionSpec{spec("p", "prompt")},
				Transitions: map[string]string{"confirm_yes": "yes", "confirm_no": "no", "default": "no"},
			},
			"yes": {Type: model.STATE_TYPE_ACTION, OnEntry: []model.ActionSpec{spec("y", "yes")}},
			"no":  {Type: model.STATE_TYPE_ACTION, OnEntry: []model.ActionSpec{spec("n", "no")}},
		},
	}
	engine := NewEngine(testRegistry(probe), 10)
	run := newRun(def)

	_, err := engine.Start(context.Background(), def, run, nil)
	require.NoError(t, err)

	result, err := engine.Resume(context.Background(), def, run, "confirm_yes", &model.Message{Type: model.MESSAGE_TYPE_BUTTON, Payload: "confirm_yes"})
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "yes", result.NextState)

	_, err = engine.Resume(context.Background(), def, run, "confirm_no", nil)
	require.ErrorIs(t, err, model.ErrRunFinished)
}

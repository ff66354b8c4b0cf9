package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/metrics"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/util"
	"go.uber.org/zap"
)

const DEFAULT_MAX_ITERATIONS = 10

// FAILURE_REPLY is what the user sees when a run can not continue. Anything
// recoverable is recovered silently before this point; this message closes
// the run out rather than leaving it ambiguous.
const FAILURE_REPLY = "Sorry, something went wrong. Please try again or type reset to start over."

// Engine executes a flow definition against a run's context. It is fully
// synchronous: one inbound event drives execution until the run completes,
// fails, or reaches a wait state, and then the engine returns. Per session
// serialization is the caller's contract.
type Engine struct {
	registry      *executor.Registry
	maxIterations int
}

func NewEngine(registry *executor.Registry, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = DEFAULT_MAX_ITERATIONS
	}
	return &Engine{
		registry:      registry,
		maxIterations: maxIterations,
	}
}

// Start begins executing a freshly created run at the flow's initial state
// and auto advances until the run blocks or finishes.
func (e *Engine) Start(ctx context.Context, def *model.FlowDefinition, run *model.FlowRun, msg *model.Message) (*model.EngineResult, error) {
	run.CurrentState = def.InitialState
	run.Context.System.CurrentState = def.InitialState
	run.Status = model.RUN_STATUS_RUNNING
	metrics.FlowsStarted.WithLabelValues(string(def.Module)).Inc()
	logger.Info("starting flow run", zap.String("flow", def.Id), zap.String("run", run.Id))
	return e.drive(ctx, def, run, model.DEFAULT_EVENT, msg, false)
}

// Resume continues a run halted at a wait state with a new inbound event.
func (e *Engine) Resume(ctx context.Context, def *model.FlowDefinition, run *model.FlowRun, event string, msg *model.Message) (*model.EngineResult, error) {
	if run.Finished() {
		return nil, model.ErrRunFinished
	}
	if event == "" {
		event = model.DEFAULT_EVENT
	}
	run.Status = model.RUN_STATUS_RUNNING
	return e.drive(ctx, def, run, event, msg, true)
}

type stepOutcome struct {
	next    string
	halted  bool
	replies []model.Reply
}

// drive is the auto advance loop shared by Start and Resume. It executes the
// current state, then keeps going while the next state exists, the run is
// not finished and the next state is non interactive. A wait state halts the
// loop after its own entry actions have run so prompts still go out; that
// single rule is what keeps the engine from skipping past states that are
// supposed to ask the user something. The iteration cap bounds cyclic
// definitions.
func (e *Engine) drive(ctx context.Context, def *model.FlowDefinition, run *model.FlowRun, event string, msg *model.Message, resuming bool) (*model.EngineResult, error) {
	result := &model.EngineResult{RunId: run.Id, FlowId: run.FlowId}
	current := run.CurrentState
	iterations := 0
	for {
		iterations++
		if iterations > e.maxIterations {
			logger.Error("auto advance iteration cap reached, likely cyclic flow definition",
				zap.String("flow", def.Id), zap.String("run", run.Id), zap.String("state", current))
			metrics.EngineLoopLimit.Inc()
			run.Status = model.RUN_STATUS_ACTIVE
			break
		}
		state, ok := def.States[current]
		if !ok {
			e.fail(run, fmt.Errorf("%w: %s", model.ErrStateNotFound, current))
			result.Replies = append(result.Replies, model.Reply{Content: FAILURE_REPLY})
			result.NextState = run.CurrentState
			return result, nil
		}
		var step stepOutcome
		var err error
		if resuming {
			step, err = e.resumeWaitState(ctx, def, run, current, state, event, msg)
			resuming = false
		} else {
			step, err = e.executeState(ctx, def, run, current, state, msg)
		}
		if err != nil {
			e.fail(run, err)
			result.Replies = append(result.Replies, model.Reply{Content: FAILURE_REPLY})
			result.NextState = run.CurrentState
			return result, nil
		}
		result.Replies = append(result.Replies, step.replies...)
		if run.Status == model.RUN_STATUS_COMPLETED {
			Set(run.Context, "progress", Progress(run.Context, len(def.States), def.FinalStates))
			result.Completed = true
			result.NextState = current
			return result, nil
		}
		if step.halted {
			run.Status = model.RUN_STATUS_ACTIVE
			result.NextState = current
			return result, nil
		}
		if step.next == "" {
			// nowhere to go and not final: validation should have caught
			// this, treat it as a configuration error
			e.fail(run, fmt.Errorf("state %s has no outgoing transition", current))
			result.Replies = append(result.Replies, model.Reply{Content: FAILURE_REPLY})
			result.NextState = run.CurrentState
			return result, nil
		}
		current = step.next
		run.CurrentState = current
		UpdateState(run.Context, current)
		Set(run.Context, "progress", Progress(run.Context, len(def.States), def.FinalStates))
		run.UpdatedAt = time.Now()
	}
	result.NextState = current
	return result, nil
}

// executeState runs one state: entry actions, then the type specific part.
// Context mutations are staged on a copy of the data bag and committed only
// when the whole state succeeded, so a failing executor never leaves a half
// mutated run record behind.
func (e *Engine) executeState(ctx context.Context, def *model.FlowDefinition, run *model.FlowRun, name string, state model.State, msg *model.Message) (stepOutcome, error) {
	staged := &model.FlowContext{
		System: run.Context.System,
		Data:   copyData(run.Context.Data),
	}
	var replies []model.Reply
	entryReplies, _, err := e.runActions(ctx, state.OnEntry, staged, run.SessionId, msg)
	if err != nil {
		return stepOutcome{}, err
	}
	replies = append(replies, entryReplies...)

	if def.IsFinal(name) {
		markVisited(staged, name)
		run.Context = staged
		e.complete(run)
		return stepOutcome{replies: replies}, nil
	}

	switch state.Type {
	case model.STATE_TYPE_WAIT:
		markVisited(staged, name)
		run.Context = staged
		return stepOutcome{halted: true, replies: replies}, nil
	case model.STATE_TYPE_DECISION:
		outcome := evalConditions(state.Conditions, staged.Data)
		next := resolveTransition(state, outcome)
		markVisited(staged, name)
		run.Context = staged
		return stepOutcome{next: next, replies: replies}, nil
	default:
		actionReplies, event, err := e.runActions(ctx, state.Actions, staged, run.SessionId, msg)
		if err != nil {
			return stepOutcome{}, err
		}
		replies = append(replies, actionReplies...)
		exitReplies, exitEvent, err := e.runActions(ctx, state.OnExit, staged, run.SessionId, msg)
		if err != nil {
			return stepOutcome{}, err
		}
		replies = append(replies, exitReplies...)
		if exitEvent != "" {
			event = exitEvent
		}
		next := resolveTransition(state, event)
		markVisited(staged, name)
		run.Context = staged
		return stepOutcome{next: next, replies: replies}, nil
	}
}

// resumeWaitState finishes a wait state when its awaited message arrives:
// the state's actions and exit actions run against the new message, then
// the transition keyed by the emitted or supplied event is taken. Entry
// actions already ran when the state was first reached.
func (e *Engine) resumeWaitState(ctx context.Context, def *model.FlowDefinition, run *model.FlowRun, name string, state model.State, event string, msg *model.Message) (stepOutcome, error) {
	staged := &model.FlowContext{
		System: run.Context.System,
		Data:   copyData(run.Context.Data),
	}
	var replies []model.Reply
	actionReplies, emitted, err := e.runActions(ctx, state.Actions, staged, run.SessionId, msg)
	if err != nil {
		return stepOutcome{}, err
	}
	replies = append(replies, actionReplies...)
	exitReplies, exitEvent, err := e.runActions(ctx, state.OnExit, staged, run.SessionId, msg)
	if err != nil {
		return stepOutcome{}, err
	}
	replies = append(replies, exitReplies...)
	if exitEvent != "" {
		emitted = exitEvent
	}
	if emitted == "" {
		emitted = event
	}
	if def.IsFinal(name) {
		run.Context = staged
		e.complete(run)
		return stepOutcome{replies: replies}, nil
	}
	next := resolveTransition(state, emitted)
	run.Context = staged
	return stepOutcome{next: next, replies: replies}, nil
}

// runActions executes an ordered action list against the staged context.
// Each action resolves its template placeholders first; the last non empty
// event emitted wins.
func (e *Engine) runActions(ctx context.Context, specs []model.ActionSpec, fctx *model.FlowContext, sessionId string, msg *model.Message) ([]model.Reply, string, error) {
	var replies []model.Reply
	var event string
	for _, spec := range specs {
		ex, err := e.registry.Get(spec.Executor)
		if err != nil {
			return nil, "", fmt.Errorf("action %s: %w", spec.Id, err)
		}
		resolved := util.ResolveTemplates(fctx.Data, spec.Config)
		out, err := ex.Execute(ctx, executor.Input{
			Config:      resolved,
			FlowContext: fctx,
			SessionId:   sessionId,
			Message:     msg,
		})
		if err != nil {
			return nil, "", fmt.Errorf("action %s (%s): %w", spec.Id, spec.Executor, err)
		}
		if out.Data != nil {
			if spec.Output != "" {
				Set(fctx, spec.Output, out.Data)
			} else {
				for k, v := range out.Data {
					Set(fctx, k, v)
				}
			}
		}
		if out.Reply != nil {
			replies = append(replies, *out.Reply)
		}
		if out.Event != "" {
			event = out.Event
		}
	}
	return replies, event, nil
}

func resolveTransition(state model.State, event string) string {
	if event == "" {
		event = model.DEFAULT_EVENT
	}
	if next, ok := state.Transitions[event]; ok {
		return next
	}
	return state.Transitions[model.DEFAULT_EVENT]
}

func (e *Engine) complete(run *model.FlowRun) {
	run.Status = model.RUN_STATUS_COMPLETED
	run.UpdatedAt = time.Now()
	metrics.FlowsCompleted.WithLabelValues(string(model.RUN_STATUS_COMPLETED)).Inc()
	logger.Info("flow run completed", zap.String("run", run.Id), zap.String("flow", run.FlowId))
}

func (e *Engine) fail(run *model.FlowRun, err error) {
	run.Status = model.RUN_STATUS_FAILED
	run.Error = err.Error()
	run.UpdatedAt = time.Now()
	metrics.FlowsCompleted.WithLabelValues(string(model.RUN_STATUS_FAILED)).Inc()
	logger.Error("flow run failed", zap.String("run", run.Id), zap.String("flow", run.FlowId), zap.Error(err))
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func markVisited(fctx *model.FlowContext, name string) {
	visited, _ := fctx.Data["visitedStates"].([]any)
	for _, v := range visited {
		if v == name {
			return
		}
	}
	fctx.Data["visitedStates"] = append(visited, any(name))
}

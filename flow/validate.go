package flow

import (
	"fmt"
	"sort"

	"github.com/chatflow/chatflow/executor"
	"github.com/chatflow/chatflow/model"
)

// Validate checks a flow definition before it is accepted for execution and
// again after every edit. Hard errors stop the save; warnings (unreachable
// states, unknown executor names) are returned to the author but do not
// block, so authoring stays flexible.
func Validate(def *model.FlowDefinition, registry *executor.Registry) ([]string, error) {
	var warnings []string
	if def.Id == "" {
		return nil, fmt.Errorf("flow id is required")
	}
	if def.Trigger == "" {
		return nil, fmt.Errorf("flow %s: trigger is required", def.Id)
	}
	if len(def.States) == 0 {
		return nil, fmt.Errorf("flow %s: at least one state is required", def.Id)
	}
	if def.InitialState == "" {
		return nil, fmt.Errorf("flow %s: initialState is required", def.Id)
	}
	if _, ok := def.States[def.InitialState]; !ok {
		return nil, fmt.Errorf("flow %s: initialState %s does not exist", def.Id, def.InitialState)
	}
	for _, fs := range def.FinalStates {
		if _, ok := def.States[fs]; !ok {
			return nil, fmt.Errorf("flow %s: final state %s does not exist", def.Id, fs)
		}
	}
	for name, state := range def.States {
		if !model.ValidStateType(string(state.Type)) {
			return nil, fmt.Errorf("flow %s: state %s has invalid type %s", def.Id, name, state.Type)
		}
		for event, target := range state.Transitions {
			if _, ok := def.States[target]; !ok {
				return nil, fmt.Errorf("flow %s: state %s transition %s targets unknown state %s", def.Id, name, event, target)
			}
		}
		if state.Type == model.STATE_TYPE_DECISION {
			if len(state.Conditions) == 0 {
				return nil, fmt.Errorf("flow %s: decision state %s has no conditions", def.Id, name)
			}
			if len(state.Transitions) == 0 {
				return nil, fmt.Errorf("flow %s: decision state %s has no transitions", def.Id, name)
			}
		}
		// no implicit termination: action and decision states must have a
		// way out unless they are declared final
		if (state.Type == model.STATE_TYPE_ACTION || state.Type == model.STATE_TYPE_DECISION) &&
			len(state.Transitions) == 0 && !def.IsFinal(name) {
			return nil, fmt.Errorf("flow %s: state %s has no transitions and is not final", def.Id, name)
		}
		for _, spec := range collectSpecs(state) {
			if spec.Executor == "" {
				return nil, fmt.Errorf("flow %s: state %s has an action without an executor name", def.Id, name)
			}
			if registry != nil && !registry.Has(spec.Executor) {
				warnings = append(warnings, fmt.Sprintf("state %s references unknown executor %s", name, spec.Executor))
			}
		}
	}
	for _, name := range unreachableStates(def) {
		warnings = append(warnings, fmt.Sprintf("state %s is unreachable from %s", name, def.InitialState))
	}
	return warnings, nil
}

func collectSpecs(state model.State) []model.ActionSpec {
	specs := make([]model.ActionSpec, 0, len(state.OnEntry)+len(state.Actions)+len(state.OnExit))
	specs = append(specs, state.OnEntry...)
	specs = append(specs, state.Actions...)
	specs = append(specs, state.OnExit...)
	return specs
}

func unreachableStates(def *model.FlowDefinition) []string {
	reachable := map[string]bool{def.InitialState: true}
	stack := []string{def.InitialState}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, target := range def.States[current].Transitions {
			if !reachable[target] {
				reachable[target] = true
				stack = append(stack, target)
			}
		}
	}
	var unreachable []string
	for name := range def.States {
		if !reachable[name] {
			unreachable = append(unreachable, name)
		}
	}
	sort.Strings(unreachable)
	return unreachable
}

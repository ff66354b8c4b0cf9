package model

import "time"

type StateType string

const STATE_TYPE_ACTION StateType = "action"
const STATE_TYPE_DECISION StateType = "decision"
const STATE_TYPE_WAIT StateType = "wait"

func ValidStateType(st string) bool {
	switch StateType(st) {
	case STATE_TYPE_ACTION, STATE_TYPE_DECISION, STATE_TYPE_WAIT:
		return true
	}
	return false
}

type ModuleName string

const MODULE_FOOD ModuleName = "food"
const MODULE_PARCEL ModuleName = "parcel"
const MODULE_ECOMMERCE ModuleName = "ecommerce"
const MODULE_GENERAL ModuleName = "general"

// FlowDefinition is a named, versioned conversation graph. Definitions are
// data, never code: states keyed by name, transitions as name to name edges,
// so they stay editable and hot reloadable at runtime.
type FlowDefinition struct {
	Id           string           `json:"id" yaml:"id"`
	Name         string           `json:"name" yaml:"name"`
	Description  string           `json:"description,omitempty" yaml:"description,omitempty"`
	Version      int              `json:"version" yaml:"version"`
	Trigger      string           `json:"trigger" yaml:"trigger"`
	Module       ModuleName       `json:"module" yaml:"module"`
	Enabled      *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	InitialState string           `json:"initialState" yaml:"initialState"`
	FinalStates  []string         `json:"finalStates" yaml:"finalStates"`
	States       map[string]State `json:"states" yaml:"states"`
	CreatedAt    time.Time        `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt    time.Time        `json:"updatedAt,omitempty" yaml:"-"`
}

// IsEnabled treats a nil Enabled as true; only an explicit false hides the
// flow from selection.
func (f *FlowDefinition) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

func (f *FlowDefinition) IsFinal(state string) bool {
	for _, s := range f.FinalStates {
		if s == state {
			return true
		}
	}
	return false
}

type State struct {
	Type        StateType         `json:"type" yaml:"type"`
	OnEntry     []ActionSpec      `json:"onEntry,omitempty" yaml:"onEntry,omitempty"`
	Actions     []ActionSpec      `json:"actions,omitempty" yaml:"actions,omitempty"`
	OnExit      []ActionSpec      `json:"onExit,omitempty" yaml:"onExit,omitempty"`
	Conditions  []Condition       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Transitions map[string]string `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// ActionSpec names an executor and carries its opaque config payload. Config
// values may contain {$.path} placeholders resolved from context data right
// before execution. Output, when set, is the context key the executor result
// is stored under.
type ActionSpec struct {
	Id       string         `json:"id" yaml:"id"`
	Executor string         `json:"executor" yaml:"executor"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Output   string         `json:"output,omitempty" yaml:"output,omitempty"`
}

// Condition picks the outcome token of a decision state. Either When holds a
// javascript expression evaluated against context data, or Key/Op/Value form
// a simple comparison. Conditions are evaluated in order, first match wins.
type Condition struct {
	When    string `json:"when,omitempty" yaml:"when,omitempty"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Op      string `json:"op,omitempty" yaml:"op,omitempty"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Outcome string `json:"outcome" yaml:"outcome"`
}

const CONDITION_OP_EQ = "eq"
const CONDITION_OP_NE = "ne"
const CONDITION_OP_CONTAINS = "contains"
const CONDITION_OP_EXISTS = "exists"
const CONDITION_OP_GT = "gt"
const CONDITION_OP_LT = "lt"

// DEFAULT_EVENT keys the transition taken when an executor emits no event of
// its own.
const DEFAULT_EVENT = "default"

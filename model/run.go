package model

import "time"

type RunStatus string

const RUN_STATUS_ACTIVE RunStatus = "active"
const RUN_STATUS_RUNNING RunStatus = "running"
const RUN_STATUS_COMPLETED RunStatus = "completed"
const RUN_STATUS_CANCELLED RunStatus = "cancelled"
const RUN_STATUS_FAILED RunStatus = "failed"

// FlowRun is one durable execution instance of a flow definition for one
// session. The run record is the source of truth for the flow's state; the
// session snapshot is only a cache of it.
type FlowRun struct {
	Id           string       `json:"id"`
	FlowId       string       `json:"flowId"`
	SessionId    string       `json:"sessionId"`
	PhoneNumber  string       `json:"phoneNumber,omitempty"`
	CurrentState string       `json:"currentState"`
	Context      *FlowContext `json:"context"`
	Status       RunStatus    `json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Finished reports whether the run reached a terminal status. Terminal runs
// are never executed again.
func (r *FlowRun) Finished() bool {
	switch r.Status {
	case RUN_STATUS_COMPLETED, RUN_STATUS_CANCELLED, RUN_STATUS_FAILED:
		return true
	}
	return false
}

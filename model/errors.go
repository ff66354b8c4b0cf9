package model

import "errors"

var ErrFlowNotFound = errors.New("flow not found")
var ErrStateNotFound = errors.New("state not found")
var ErrRunNotFound = errors.New("flow run not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrRunFinished = errors.New("flow run already finished")
var ErrUnknownExecutor = errors.New("unknown executor")

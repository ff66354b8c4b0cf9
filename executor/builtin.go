package executor

// NewBuiltinRegistry returns a registry preloaded with the built in
// executors. Business executors register on top of it at wiring time.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSendMessageExecutor())
	r.Register(NewCollectInputExecutor())
	r.Register(NewSetContextExecutor())
	r.Register(NewHttpCallExecutor())
	r.Register(NewScriptExecutor())
	r.Register(NewRecordHistoryExecutor())
	return r
}

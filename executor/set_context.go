package executor

import "context"

var _ Executor = new(setContextExecutor)

// setContextExecutor copies its resolved config pairs straight into context
// data. Useful for seeding defaults and for flows that stage values for a
// later decision state.
type setContextExecutor struct{}

func NewSetContextExecutor() *setContextExecutor {
	return &setContextExecutor{}
}

func (e *setContextExecutor) Name() string {
	return "set_context"
}

func (e *setContextExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	data := make(map[string]any, len(in.Config))
	for k, v := range in.Config {
		data[k] = v
	}
	return Output{Data: data}, nil
}

package executor

import (
	"context"
	"fmt"

	"github.com/chatflow/chatflow/model"
)

var _ Executor = new(collectInputExecutor)

// collectInputExecutor stores the inbound message under config key "key".
// A location message stores the location, a button message stores the
// payload, anything else stores the text.
type collectInputExecutor struct{}

func NewCollectInputExecutor() *collectInputExecutor {
	return &collectInputExecutor{}
}

func (e *collectInputExecutor) Name() string {
	return "collect_input"
}

func (e *collectInputExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	key, _ := in.Config["key"].(string)
	if key == "" {
		return Output{}, fmt.Errorf("collect_input requires a key config value")
	}
	data := make(map[string]any)
	if in.Message == nil {
		data[key] = ""
		return Output{Data: data}, nil
	}
	switch in.Message.Type {
	case model.MESSAGE_TYPE_LOCATION:
		data[key] = in.Message.Location
	case model.MESSAGE_TYPE_BUTTON:
		data[key] = in.Message.Payload
	default:
		data[key] = in.Message.Text
	}
	return Output{Data: data}, nil
}

package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

var _ Executor = new(scriptExecutor)

// scriptExecutor runs a javascript expression against context data. The data
// bag is bound as $; the script mutates $ and may set $.event to pick the
// outgoing transition. Config keys: expression.
type scriptExecutor struct{}

func NewScriptExecutor() *scriptExecutor {
	return &scriptExecutor{}
}

func (e *scriptExecutor) Name() string {
	return "script"
}

func (e *scriptExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	expression, _ := in.Config["expression"].(string)
	if expression == "" {
		return Output{}, fmt.Errorf("script requires an expression config value")
	}
	data, _ := json.Marshal(in.FlowContext.Data)
	script := fmt.Sprintf("var $ = %s;\n", data)
	script = script + expression
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return Output{}, fmt.Errorf("error executing javascript %w", err)
	}
	val, err := vm.RunString("$")
	if err != nil {
		return Output{}, fmt.Errorf("error executing javascript %w", err)
	}
	res, err := json.Marshal(val.Export())
	if err != nil {
		return Output{}, err
	}
	var output map[string]any
	json.Unmarshal(res, &output)
	event := ""
	if ev, ok := output["event"].(string); ok {
		event = ev
		delete(output, "event")
	}
	return Output{Event: event, Data: output}, nil
}

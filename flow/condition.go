package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatflow/chatflow/model"
	"github.com/dop251/goja"
	"github.com/oliveagle/jsonpath"
)

// evalConditions evaluates a decision state's conditions in order and
// returns the first matching outcome token. No match returns the default
// event so the decision falls through its default transition.
func evalConditions(conditions []model.Condition, data map[string]any) string {
	for _, cond := range conditions {
		if matchCondition(cond, data) {
			return cond.Outcome
		}
	}
	return model.DEFAULT_EVENT
}

func matchCondition(cond model.Condition, data map[string]any) bool {
	if cond.When != "" {
		return evalExpression(cond.When, data)
	}
	value, found := lookupKey(cond.Key, data)
	switch cond.Op {
	case model.CONDITION_OP_EXISTS:
		return found && value != nil
	case model.CONDITION_OP_EQ:
		return found && equalValues(value, cond.Value)
	case model.CONDITION_OP_NE:
		return !found || !equalValues(value, cond.Value)
	case model.CONDITION_OP_CONTAINS:
		return found && strings.Contains(strings.ToLower(fmt.Sprintf("%v", value)), strings.ToLower(fmt.Sprintf("%v", cond.Value)))
	case model.CONDITION_OP_GT:
		av, aok := asFloat(value)
		bv, bok := asFloat(cond.Value)
		return aok && bok && av > bv
	case model.CONDITION_OP_LT:
		av, aok := asFloat(value)
		bv, bok := asFloat(cond.Value)
		return aok && bok && av < bv
	}
	return false
}

// lookupKey supports both plain data keys and $ rooted jsonpath expressions.
func lookupKey(key string, data map[string]any) (any, bool) {
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(key, "$") {
		value, err := jsonpath.JsonPathLookup(data, key)
		if err != nil {
			return nil, false
		}
		return value, true
	}
	v, ok := data[key]
	return v, ok
}

func evalExpression(expression string, data map[string]any) bool {
	encoded, _ := json.Marshal(data)
	script := fmt.Sprintf("var $ = %s;\n%s", encoded, expression)
	vm := goja.New()
	val, err := vm.RunString(script)
	if err != nil {
		return false
	}
	return val.ToBoolean()
}

func equalValues(a any, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

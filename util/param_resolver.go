package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile(`\{(.*?)\}`)

// ResolveTemplates resolves {$.path} placeholders in an executor config
// against the flow context data. A string that is exactly one placeholder
// keeps the looked-up value's type; placeholders embedded in larger strings
// are stringified in place. Maps and lists are resolved recursively.
func ResolveTemplates(contextData map[string]any, config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	output := make(map[string]any)
	resolveParams(contextData, config, output)
	return output
}

func resolveParams(contextData map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(contextData, val, out)
		case string:
			output[k] = resolveString(contextData, val)
		case []any:
			output[k] = resolveList(contextData, val)
		default:
			output[k] = v
		}
	}
}

func resolveList(contextData map[string]any, list []any) []any {
	var output []any
	for _, v := range list {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			resolveParams(contextData, val, out)
			output = append(output, out)
		case string:
			output = append(output, resolveString(contextData, val))
		case []any:
			output = append(output, resolveList(contextData, val))
		default:
			output = append(output, v)
		}
	}
	return output
}

func resolveString(contextData map[string]any, in string) any {
	tokens := tokenRe.FindAllString(in, -1)
	if len(tokens) == 0 {
		return in
	}
	// a lone placeholder keeps the underlying type
	if len(tokens) == 1 && strings.TrimSpace(in) == tokens[0] {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(tokens[0], "{"), "}")
		if strings.HasPrefix(tmatch, "$") {
			value, err := jsonpath.JsonPathLookup(contextData, tmatch)
			if err != nil {
				return nil
			}
			return value
		}
		return in
	}
	newStr := in
	for _, token := range tokens {
		tmatch := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(contextData, tmatch)
		if err != nil {
			value = ""
		}
		newStr = strings.ReplaceAll(newStr, token, fmt.Sprintf("%v", value))
	}
	return newStr
}

// Package schema implements the outbound structural validation stage: an
// adapter's transformResponse output arrives as an opaque value (the
// adapter boundary is untrusted) and must be validated field-by-field
// before the orchestrator may treat it as a canonical types.Response.
package schema

import (
	"fmt"

	"github.com/nilgai-labs/guardproxy/internal/result"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Enforce validates raw (the value returned by an adapter's
// transformResponse) against the canonical response shape and the expected
// schema version. On pass, the carrier's caller may safely decode raw into
// a *types.Response; on block, every structural violation found is
// collected under CodeSchemaMismatch.
func Enforce(raw any, expectedSchemaVersion int) (result.Carrier, *types.Response) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return result.Blocked(mismatch("root", "value is not an object")), nil
	}

	var violations []types.Violation

	if v, ok := checkSchemaVersion(obj, expectedSchemaVersion); !ok {
		violations = append(violations, v)
	}

	id, ok := checkNonEmptyString(obj, "id")
	if !ok {
		violations = append(violations, mismatch("id", "must be a non-empty string"))
	}

	modelUsed, ok := checkString(obj, "model_used")
	if !ok {
		violations = append(violations, mismatch("model_used", "must be a string"))
	}

	content, contentOK := checkOptionalContent(obj)
	if !contentOK {
		violations = append(violations, mismatch("content", "must be a string or absent"))
	}

	toolCalls, toolsOK := checkToolCalls(obj)
	if !toolsOK {
		violations = append(violations, mismatch("tool_calls", "must be an ordered sequence of {function_name, arguments} string pairs"))
	}

	finish, finishOK := checkFinishReason(obj)
	if !finishOK {
		violations = append(violations, mismatch("finish_reason", "must be one of the closed set of finish reasons"))
	}

	usage, usageOK := checkUsage(obj)
	if !usageOK {
		violations = append(violations, mismatch("usage", "must be a record with numeric input_tokens, output_tokens, cost_usd"))
	}

	if len(violations) > 0 {
		return result.Blocked(violations...), nil
	}

	return result.Passed(), &types.Response{
		SchemaVersion: expectedSchemaVersion,
		ID:            id,
		ModelUsed:     modelUsed,
		Content:       content,
		ToolCalls:     toolCalls,
		FinishReason:  finish,
		Usage:         usage,
	}
}

func mismatch(field, message string) types.Violation {
	return types.Violation{
		Code:        types.CodeSchemaMismatch,
		Message:     message,
		Interceptor: types.InterceptorSchema,
		Payload:     map[string]any{"field": field},
	}
}

func checkSchemaVersion(obj map[string]any, expected int) (types.Violation, bool) {
	v, present := obj["schema_version"]
	if !present {
		return mismatch("schema_version", "missing"), false
	}
	n, ok := asInt(v)
	if !ok || n != expected {
		return mismatch("schema_version", fmt.Sprintf("must equal %d", expected)), false
	}
	return types.Violation{}, true
}

func checkNonEmptyString(obj map[string]any, field string) (string, bool) {
	s, ok := obj[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func checkString(obj map[string]any, field string) (string, bool) {
	s, ok := obj[field].(string)
	return s, ok
}

func checkOptionalContent(obj map[string]any) (*string, bool) {
	v, present := obj["content"]
	if !present || v == nil {
		return nil, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

func checkToolCalls(obj map[string]any) ([]types.ToolCall, bool) {
	v, present := obj["tool_calls"]
	if !present || v == nil {
		return nil, true
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	calls := make([]types.ToolCall, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		fn, ok := m["function_name"].(string)
		if !ok {
			return nil, false
		}
		args, ok := m["arguments"].(string)
		if !ok {
			return nil, false
		}
		id, _ := m["id"].(string)
		calls = append(calls, types.ToolCall{ID: id, FunctionName: fn, Arguments: args})
	}
	return calls, true
}

func checkFinishReason(obj map[string]any) (types.FinishReason, bool) {
	s, ok := obj["finish_reason"].(string)
	if !ok {
		return "", false
	}
	fr := types.FinishReason(s)
	if !fr.Valid() {
		return "", false
	}
	return fr, true
}

func checkUsage(obj map[string]any) (types.Usage, bool) {
	v, present := obj["usage"]
	if !present {
		return types.Usage{}, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return types.Usage{}, false
	}
	input, ok1 := asNumber(m["input_tokens"])
	output, ok2 := asNumber(m["output_tokens"])
	cost, ok3 := asNumber(m["cost_usd"])
	if !ok1 || !ok2 || !ok3 {
		return types.Usage{}, false
	}
	return types.Usage{
		InputTokens:  int(input),
		OutputTokens: int(output),
		CostUSD:      cost,
	}, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Package grounding implements the outbound stage that checks the model's
// tool calls against an optional Skill Registry. Grounding is only as
// strong as the registry injected by the caller; with none injected, this
// stage is a pure pass-through and grounding is deferred to observability.
package grounding

import (
	"encoding/json"
	"fmt"

	"github.com/nilgai-labs/guardproxy/internal/result"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Registry is the full Skill Registry contract this stage can use: tool
// presence, and optionally argument validation.
type Registry interface {
	Has(name string) bool
}

// ArgumentValidator is implemented by registries that can also validate a
// tool call's decoded arguments. Checked with a type assertion so a
// registry that only implements Registry still grounds by presence alone.
type ArgumentValidator interface {
	ValidateArguments(name string, args map[string]any) bool
}

// Ground checks resp's tool calls against registry (which may be nil).
func Ground(resp *types.Response, registry Registry) result.Carrier {
	if len(resp.ToolCalls) == 0 {
		return result.Passed()
	}
	if registry == nil {
		return result.Passed()
	}

	var violations []types.Violation
	validator, _ := registry.(ArgumentValidator)

	for _, call := range resp.ToolCalls {
		if !registry.Has(call.FunctionName) {
			violations = append(violations, types.Violation{
				Code:        types.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q is not present in the skill registry", call.FunctionName),
				Interceptor: types.InterceptorGrounding,
				Payload:     map[string]any{"tool_name": call.FunctionName},
			})
			continue
		}
		if validator == nil {
			continue
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			violations = append(violations, types.Violation{
				Code:        types.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q arguments are not valid JSON", call.FunctionName),
				Interceptor: types.InterceptorGrounding,
				Payload:     map[string]any{"tool_name": call.FunctionName, "raw_arguments": call.Arguments},
			})
			continue
		}
		if !validator.ValidateArguments(call.FunctionName, args) {
			violations = append(violations, types.Violation{
				Code:        types.CodeToolNotGrounded,
				Message:     fmt.Sprintf("tool %q arguments failed validation", call.FunctionName),
				Interceptor: types.InterceptorGrounding,
				Payload:     map[string]any{"tool_name": call.FunctionName},
			})
		}
	}

	if len(violations) > 0 {
		return result.Blocked(violations...)
	}
	return result.Passed()
}

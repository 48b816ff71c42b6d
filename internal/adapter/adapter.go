// Package adapter defines the provider adapter contract: the only
// boundary through which the orchestrator ever touches a concrete provider
// integration. No provider-specific type escapes this boundary — adapters
// hand back opaque values that pipeline/schema validates before the
// orchestrator trusts them as canonical.
package adapter

import (
	"context"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Capability names a feature an adapter may or may not support for a given
// model, reported by ValidateCapabilities.
type Capability string

const (
	CapabilityToolUse   Capability = "tool_use"
	CapabilityStreaming Capability = "streaming"
	CapabilitySystem    Capability = "system_prompt"
)

// Adapter is the four-operation provider contract described by the
// component design. Implementations live in package provideradapter; this
// package only fixes the shape they must honor.
type Adapter interface {
	// TransformRequest maps a canonical request into an opaque
	// provider-shaped value. It returns an ADAPTER_ERROR violation-shaped
	// error if a requested capability is unsupported by the model.
	TransformRequest(ctx context.Context, req *types.Request) (any, error)

	// Execute sends the opaque provider-shaped value and returns an
	// opaque provider-shaped response. It owns retry, backoff and
	// per-attempt timeout (see base.go); transport failures surface as
	// an *Error, never a bare error from the HTTP layer.
	Execute(ctx context.Context, providerReq any) (any, error)

	// TransformResponse maps an opaque provider response into a value
	// suitable for pipeline/schema.Enforce — in practice a
	// map[string]any built from the provider's JSON body. requestID is
	// threaded through so the canonical response carries the caller's
	// original identifier rather than any provider-assigned one.
	TransformResponse(ctx context.Context, providerResp any, requestID string) (any, error)

	// ValidateCapabilities is a read-only self-report from a model to
	// features matrix; it never performs I/O.
	ValidateCapabilities(model string, capability Capability) bool
}

// Error wraps any adapter failure — transport, retry exhaustion, timeout,
// non-success status, or unsupported capability — into the single
// ADAPTER_ERROR shape the orchestrator expects. No raw transport error
// crosses the adapter boundary.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Violation converts the error into the canonical ADAPTER_ERROR violation.
func (e *Error) Violation() types.Violation {
	return types.Violation{
		Code:        types.CodeAdapterError,
		Message:     e.Error(),
		Interceptor: types.InterceptorOrchestrator,
	}
}

// Package orchestrator implements the pipeline orchestrator: the single
// entry point that runs the six interceptors in strict order around an
// adapter call and never lets a failure escape as anything but data in its
// return pair.
package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/alignment"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/grounding"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/hallucination"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/injection"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/pii"
	"github.com/nilgai-labs/guardproxy/internal/pipeline/schema"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Options carries the per-call collaborators the orchestrator's caller may
// inject. A nil Registry simply disables tool-scope checking and
// grounding, per spec.
type Options struct {
	Registry alignment.Registry
}

// CallInfo reports facts about a single Run call that the response body and
// violation slice don't carry on their own, so a caller never has to
// reverse-engineer them from a sentinel like Response.ModelUsed.
type CallInfo struct {
	// ReachedOutbound is true once the call entered the outbound half of
	// the pipeline (schema enforcer onward) — i.e. adapter.Execute
	// returned successfully and TransformResponse produced a value for
	// pipeline/schema to validate. It is false for every inbound block
	// and for every adapter-boundary failure, even though in the latter
	// case the adapter itself may have been called.
	ReachedOutbound bool

	// ExecuteFailed is true only when adapter.Execute itself returned an
	// error — a transport/provider-level failure. It is false for every
	// other kind of block or error, including TransformRequest and
	// TransformResponse failures, which are local to this process and
	// say nothing about the provider's health. A circuit breaker should
	// key off this field alone, never off len(violations).
	ExecuteFailed bool
}

// Orchestrator wires together the six interceptors and an adapter.
type Orchestrator struct {
	scanner   *injection.Scanner
	masker    *pii.Masker
	grounding grounding.Registry
}

// New builds an Orchestrator with the default interceptor implementations.
func New() *Orchestrator {
	return &Orchestrator{
		scanner: injection.NewScanner(),
		masker:  pii.NewMasker(),
	}
}

// Run executes the full pipeline against req using a (adapter.resolve).
// It never panics and never returns a Go error for a policy outcome;
// every failure becomes data inside the returned *types.Response and
// violations slice.
func Run(ctx context.Context, o *Orchestrator, req *types.Request, a adapter.Adapter, policy *config.Policy, opts Options) (*types.Response, []types.Violation, CallInfo) {
	// 1. Injection scanner.
	scanResult := o.scanner.Scan(req, policy.SecurityTier)
	if scanResult.IsBlocked() {
		return syntheticBlockedResponse(req.ID), stampCorrelation(scanResult.Violations), CallInfo{}
	}

	// 2. PII masker. Never blocks; its output becomes the working request.
	masked := o.masker.Mask(req, policy.AgnosticSettings.RedactPII)

	// 3. Alignment checker.
	checker := alignment.NewChecker(opts.Registry)
	alignResult := checker.Check(ctx, masked, policy.AgnosticSettings)
	if alignResult.IsBlocked() {
		return syntheticBlockedResponse(req.ID), stampCorrelation(alignResult.Violations), CallInfo{}
	}

	// 4. adapter.transformRequest, then adapter.execute.
	providerReq, err := a.TransformRequest(ctx, masked)
	if err != nil {
		return syntheticBlockedResponse(req.ID), stampCorrelation([]types.Violation{adapterErrorViolation(err)}), CallInfo{}
	}
	providerResp, err := a.Execute(ctx, providerReq)
	if err != nil {
		return syntheticBlockedResponse(req.ID), stampCorrelation([]types.Violation{adapterErrorViolation(err)}), CallInfo{ExecuteFailed: true}
	}

	// 5. adapter.transformResponse.
	raw, err := a.TransformResponse(ctx, providerResp, req.ID)
	if err != nil {
		return syntheticBlockedResponse(req.ID), stampCorrelation([]types.Violation{adapterErrorViolation(err)}), CallInfo{}
	}

	// 6. Schema enforcer.
	schemaResult, resp := schema.Enforce(raw, types.SchemaVersion)
	if schemaResult.IsBlocked() {
		return syntheticBlockedResponse(req.ID), stampCorrelation(schemaResult.Violations), CallInfo{ReachedOutbound: true}
	}

	// 7. Tool grounder.
	groundResult := grounding.Ground(resp, asGroundingRegistry(opts.Registry))
	if groundResult.IsBlocked() {
		return syntheticBlockedResponse(req.ID), stampCorrelation(groundResult.Violations), CallInfo{ReachedOutbound: true}
	}

	// 8. Hallucination scraper. The one outbound block that preserves the
	// real response body rather than synthesizing a blank one.
	scrapeResult := hallucination.Scrape(resp, policy.DependencyWhitelist)
	if scrapeResult.IsBlocked() {
		resp.FinishReason = types.FinishContentFilter
		return resp, stampCorrelation(scrapeResult.Violations), CallInfo{ReachedOutbound: true}
	}

	// 9. Full pass.
	return resp, nil, CallInfo{ReachedOutbound: true}
}

// stampCorrelation attaches a single internal correlation id, shared across
// every violation raised by this call, to each violation's payload. It
// exists purely to give an audit sink a cheap way to group a multi-violation
// block back to one call without parsing timestamps; it never appears on
// the canonical Response itself.
func stampCorrelation(violations []types.Violation) []types.Violation {
	if len(violations) == 0 {
		return violations
	}
	id := uuid.New().String()
	for i := range violations {
		if violations[i].Payload == nil {
			violations[i].Payload = map[string]any{}
		}
		violations[i].Payload["correlation_id"] = id
	}
	return violations
}

// asGroundingRegistry adapts an alignment.Registry to grounding.Registry.
// Both are the same Has(name) shape; a nil interface value stays nil so
// grounding.Ground correctly treats "no registry injected" as a pass.
func asGroundingRegistry(r alignment.Registry) grounding.Registry {
	if r == nil {
		return nil
	}
	return r
}

func adapterErrorViolation(err error) types.Violation {
	if adapterErr, ok := err.(*adapter.Error); ok {
		return adapterErr.Violation()
	}
	return types.Violation{
		Code:        types.CodeAdapterError,
		Message:     err.Error(),
		Interceptor: types.InterceptorOrchestrator,
	}
}

// syntheticBlockedResponse builds the blank canonical response every
// blocked path (other than the hallucination case) returns.
func syntheticBlockedResponse(requestID string) *types.Response {
	return &types.Response{
		SchemaVersion: types.SchemaVersion,
		ID:            requestID,
		ModelUsed:     "guardrail",
		Content:       nil,
		ToolCalls:     nil,
		FinishReason:  types.FinishContentFilter,
		Usage:         types.Usage{},
	}
}

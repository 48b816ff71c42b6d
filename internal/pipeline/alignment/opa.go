package alignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

// RegoInput is the data handed to the optional Rego extension for
// evaluation. It carries only what the canonical Request already exposes;
// the extension never sees anything the rest of the core couldn't see.
type RegoInput struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	ToolsLen int    `json:"tools_len"`
	Hour     int    `json:"hour"`
	Weekday  string `json:"weekday"`
}

// RegoExtension is an optional, off-by-default fourth alignment check: a
// deployment may load an org-specific Rego bundle and have the checker
// consult it after the three mandatory checks run. It never gates whether
// those three checks run, and a Checker with no RegoExtension attached
// behaves exactly as if this file didn't exist.
type RegoExtension struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	timeout  time.Duration
}

// NewRegoExtension builds an unloaded extension. Call Load before attaching
// it to a Checker.
func NewRegoExtension(timeout time.Duration) *RegoExtension {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &RegoExtension{timeout: timeout}
}

// Load compiles the given Rego modules, keyed by module name, and prepares
// the query data.proxy.alignment.allow / data.proxy.alignment.reason.
func (e *RegoExtension) Load(modules map[string]string) error {
	opts := make([]func(*rego.Rego), 0, len(modules)+1)
	opts = append(opts, rego.Query("[data.proxy.alignment.allow, data.proxy.alignment.reason]"))
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego extension: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the prepared query against a request snapshot. With no
// bundle loaded, it fails closed: not-allowed, reason "no policy loaded".
func (e *RegoExtension) Evaluate(ctx context.Context, input RegoInput) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return false, "no policy loaded", nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}

// checkRego runs the extension, if one is attached, and reports a violation
// using the same closed code the provider allow-list check uses — a Rego
// denial is, semantically, another way a request can be outside what this
// deployment permits.
func checkRego(ctx context.Context, ext *RegoExtension, req *types.Request) *types.Violation {
	if ext == nil {
		return nil
	}
	now := time.Now().UTC()
	allowed, reason, err := ext.Evaluate(ctx, RegoInput{
		Provider: string(req.Provider),
		Model:    req.Model,
		ToolsLen: len(req.Tools),
		Hour:     now.Hour(),
		Weekday:  now.Weekday().String(),
	})
	if err != nil {
		return &types.Violation{
			Code:        types.CodeProviderNotAllowed,
			Message:     fmt.Sprintf("rego policy evaluation failed: %v", err),
			Interceptor: types.InterceptorAlignment,
			Payload:     map[string]any{"reason": reason},
		}
	}
	if allowed {
		return nil
	}
	return &types.Violation{
		Code:        types.CodeProviderNotAllowed,
		Message:     fmt.Sprintf("request denied by rego policy: %s", reason),
		Interceptor: types.InterceptorAlignment,
		Payload:     map[string]any{"reason": reason},
	}
}

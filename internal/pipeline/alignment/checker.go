// Package alignment implements the third inbound pipeline stage: checking
// the masked request against the provider allow-list, a pre-flight cost
// ceiling, and (when a Skill Registry is available) tool scope. All three
// checks run unconditionally and their violations are aggregated into a
// single carrier, unlike the short-circuiting injection scanner.
package alignment

import (
	"context"
	"fmt"
	"math"

	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/result"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// tokenRateUSD is the conservative per-token cost used for the pre-flight
// budget estimate: $15 per 1,000,000 tokens.
const tokenRateUSD = 15.0 / 1_000_000.0

// Registry is the subset of the Skill Registry contract the checker needs:
// a presence predicate over tool names. See internal/skillregistry for the
// full contract (it also optionally validates call arguments, used by the
// tool grounder rather than here).
type Registry interface {
	Has(name string) bool
}

// Checker runs the three mandatory alignment checks described above, plus
// an optional fourth: a Rego extension, off unless explicitly attached.
type Checker struct {
	registry Registry // may be nil; tool-scope check is skipped when nil
	rego     *RegoExtension
}

// NewChecker builds a Checker. registry may be nil.
func NewChecker(registry Registry) *Checker {
	return &Checker{registry: registry}
}

// WithRegoExtension attaches an optional supplementary policy check. It
// never replaces or gates the three mandatory checks.
func (c *Checker) WithRegoExtension(ext *RegoExtension) *Checker {
	c.rego = ext
	return c
}

// Check runs all mandatory checks against the already-masked request and
// aggregates every resulting violation into one carrier.
func (c *Checker) Check(ctx context.Context, req *types.Request, settings config.AgnosticSettings) result.Carrier {
	var violations []types.Violation

	if v := checkProviderAllowed(req, settings.AllowedProviders); v != nil {
		violations = append(violations, *v)
	}
	if v := checkBudget(req, settings.MaxTokenSpendPerCall); v != nil {
		violations = append(violations, *v)
	}
	violations = append(violations, c.checkToolScope(req)...)
	if v := checkRego(ctx, c.rego, req); v != nil {
		violations = append(violations, *v)
	}

	if len(violations) > 0 {
		return result.Blocked(violations...)
	}
	return result.Passed()
}

func checkProviderAllowed(req *types.Request, allowed []types.ProviderTag) *types.Violation {
	for _, p := range allowed {
		if p == req.Provider {
			return nil
		}
	}
	return &types.Violation{
		Code:        types.CodeProviderNotAllowed,
		Message:     fmt.Sprintf("provider %q is not in the allow-list", req.Provider),
		Interceptor: types.InterceptorAlignment,
		Payload: map[string]any{
			"requested_provider": req.Provider,
			"allowed_providers":  allowed,
		},
	}
}

func checkBudget(req *types.Request, ceilingUSD float64) *types.Violation {
	chars := totalCharacters(req)
	estimatedTokens := int(math.Ceil(float64(chars) / 4.0))
	estimatedCost := float64(estimatedTokens) * tokenRateUSD

	if estimatedCost <= ceilingUSD {
		return nil
	}
	return &types.Violation{
		Code:        types.CodeBudgetExceeded,
		Message:     fmt.Sprintf("estimated cost %.6f exceeds ceiling %.6f", estimatedCost, ceilingUSD),
		Interceptor: types.InterceptorAlignment,
		Payload: map[string]any{
			"estimated_tokens": estimatedTokens,
			"estimated_cost":   estimatedCost,
			"ceiling":          ceilingUSD,
		},
	}
}

func totalCharacters(req *types.Request) int {
	total := 0
	if req.SystemPrompt != nil {
		total += len(*req.SystemPrompt)
	}
	for _, m := range req.Messages {
		total += contentCharacters(m.Content)
	}
	return total
}

func contentCharacters(c types.MessageContent) int {
	if c.Text != nil {
		return len(*c.Text)
	}
	total := 0
	for _, b := range c.Blocks {
		if b.Text != nil {
			total += len(*b.Text)
		}
		if b.Content != nil {
			total += contentCharacters(*b.Content)
		}
	}
	return total
}

func (c *Checker) checkToolScope(req *types.Request) []types.Violation {
	if c.registry == nil || len(req.Tools) == 0 {
		return nil
	}
	var violations []types.Violation
	for _, tool := range req.Tools {
		if c.registry.Has(tool.Name) {
			continue
		}
		violations = append(violations, types.Violation{
			Code:        types.CodeToolNotGrounded,
			Message:     fmt.Sprintf("tool %q is not present in the skill registry", tool.Name),
			Interceptor: types.InterceptorAlignment,
			Payload: map[string]any{
				"tool_name": tool.Name,
			},
		})
	}
	return violations
}

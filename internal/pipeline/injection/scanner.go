// Package injection implements the first inbound pipeline stage: scanning
// the canonical request's text for prompt injection patterns. See the
// teacher's internal/filter/injection package for the pattern-table idiom
// this is grounded on; the scoring/threshold model is replaced by a
// tier-selected pattern set and a single block-on-first-match contract.
package injection

import (
	"fmt"

	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/result"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Scanner is the injection-detection interceptor. It is stateless and
// read-only: Scan never mutates the request it is given.
type Scanner struct {
	base   []pattern
	strict []pattern
}

// NewScanner builds a Scanner with the default rule set.
func NewScanner() *Scanner {
	return &Scanner{base: basePatterns(), strict: strictPatterns()}
}

func (s *Scanner) patternsFor(tier config.SecurityTier) []pattern {
	if tier == config.TierStrict {
		all := make([]pattern, 0, len(s.base)+len(s.strict))
		all = append(all, s.base...)
		all = append(all, s.strict...)
		return all
	}
	return s.base
}

// extractStrings pulls every textual field out of a request in the order
// the spec names: the system prompt if present, then each message's text
// content (string-form or block-form), walking nested blocks.
func extractStrings(req *types.Request) []string {
	var out []string
	if req.SystemPrompt != nil {
		out = append(out, *req.SystemPrompt)
	}
	for _, m := range req.Messages {
		out = append(out, extractFromContent(m.Content)...)
	}
	return out
}

func extractFromContent(c types.MessageContent) []string {
	if c.Text != nil {
		return []string{*c.Text}
	}
	var out []string
	for _, b := range c.Blocks {
		if b.Text != nil {
			out = append(out, *b.Text)
		}
		if b.Content != nil {
			out = append(out, extractFromContent(*b.Content)...)
		}
	}
	return out
}

// Scan runs the injection scanner against req under the given security
// tier. It never mutates req.
func (s *Scanner) Scan(req *types.Request, tier config.SecurityTier) result.Carrier {
	patterns := s.patternsFor(tier)
	for _, text := range extractStrings(req) {
		for _, p := range patterns {
			loc := p.regex.FindString(text)
			if loc == "" {
				continue
			}
			return result.Blocked(types.Violation{
				Code:        types.CodeInjectionDetected,
				Message:     fmt.Sprintf("prompt injection pattern %q matched", p.name),
				Interceptor: types.InterceptorInjection,
				Payload: map[string]any{
					"request_id": req.ID,
					"pattern":    loc,
				},
			})
		}
	}
	return result.Passed()
}

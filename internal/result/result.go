// Package result implements the tagged pass/block carrier every interceptor
// returns instead of raising an error. No interceptor in this repo ever
// panics or returns a Go error to signal a policy decision — see spec §9,
// "Tagged result over exceptions".
package result

import "github.com/nilgai-labs/guardproxy/internal/types"

// Outcome is the two-variant discriminator: pass or block.
type Outcome string

const (
	Pass  Outcome = "pass"
	Block Outcome = "block"
)

// Carrier is the interceptor-result value. A Pass carrier never carries
// violations; a Block carrier always carries at least one.
type Carrier struct {
	Outcome    Outcome
	Violations []types.Violation
}

// Passed returns a passing carrier.
func Passed() Carrier {
	return Carrier{Outcome: Pass}
}

// Blocked returns a blocking carrier aggregating one or more violations.
// Calling it with no violations is a programmer error in the caller, not a
// recoverable condition — every interceptor that blocks must name at least
// one violation.
func Blocked(violations ...types.Violation) Carrier {
	return Carrier{Outcome: Block, Violations: violations}
}

// IsBlocked reports whether this carrier represents a block.
func (c Carrier) IsBlocked() bool { return c.Outcome == Block }

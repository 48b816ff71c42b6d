// Package ledger implements the cost ledger collaborator: per-session
// accumulated spend. cmd/proxy records each call's cost after the call;
// nothing in this repo calls WouldExceed before a call. Grounded on the teacher's
// internal/ratelimit.BudgetTracker (Redis INCRBY-style accumulation) and
// internal/auth.CachedKeyStore (the Postgres+Redis pairing idiom).
package ledger

import "context"

// Ledger is the collaborator contract described by the component design.
type Ledger interface {
	// Record accumulates costUSD into session's running total.
	Record(ctx context.Context, sessionID string, costUSD float64) error
	// Total returns session's current running total, 0 for an unknown
	// session.
	Total(ctx context.Context, sessionID string) (float64, error)
	// WouldExceed reports whether adding additionalUSD to session's
	// current total would push it strictly over ceilingUSD.
	WouldExceed(ctx context.Context, sessionID string, additionalUSD, ceilingUSD float64) (bool, error)
}

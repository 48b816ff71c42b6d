package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger for local development and tests;
// it is the deployment config's "memory" backend, and cmd/proxy also falls
// back to it when the configured Redis or Postgres backend cannot be set up.
type MemoryLedger struct {
	mu     sync.Mutex
	totals map[string]float64
}

// NewMemoryLedger builds an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{totals: make(map[string]float64)}
}

func (l *MemoryLedger) Record(ctx context.Context, sessionID string, costUSD float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[sessionID] += costUSD
	return nil
}

func (l *MemoryLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID], nil
}

func (l *MemoryLedger) WouldExceed(ctx context.Context, sessionID string, additionalUSD, ceilingUSD float64) (bool, error) {
	l.mu.Lock()
	total := l.totals[sessionID]
	l.mu.Unlock()
	return total+additionalUSD > ceilingUSD, nil
}

// Package audit implements the audit log collaborator: a structured entry
// per orchestrator call, consumed by one or more concrete sinks.
package audit

import (
	"time"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Outcome is the call-level disposition recorded alongside an entry.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeBlocked Outcome = "blocked"
)

// Entry is one structured audit record, built by the orchestrator's
// caller after each call and handed to every configured Sink.
type Entry struct {
	Timestamp    time.Time
	RequestID    string
	Provider     types.ProviderTag
	Model        string
	SessionID    string
	Interceptors []types.Interceptor
	Violations   []types.Violation
	Outcome      Outcome
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
}

// Sink consumes audit entries. Every call is reported, blocked or not.
type Sink interface {
	Record(Entry)
}

// MultiSink fans an entry out to every configured sink, matching the
// teacher's pattern of composing independent observability backends
// rather than special-casing "the one sink in use".
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a MultiSink from zero or more sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(e Entry) {
	for _, s := range m.sinks {
		s.Record(e)
	}
}

// InterceptorsFor returns the ordered interceptor-name list the spec's
// audit entry carries: the three inbound interceptors always, and the
// three outbound ones only when the inbound path passed (i.e. the
// pipeline reached the adapter call).
func InterceptorsFor(reachedAdapter bool) []types.Interceptor {
	inbound := []types.Interceptor{
		types.InterceptorInjection,
		types.InterceptorPII,
		types.InterceptorAlignment,
	}
	if !reachedAdapter {
		return inbound
	}
	return append(inbound,
		types.InterceptorSchema,
		types.InterceptorGrounding,
		types.InterceptorHallucination,
	)
}

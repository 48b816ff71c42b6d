package audit

import (
	"testing"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

func TestPrometheusSink_Record(t *testing.T) {
	sink := NewPrometheusSink()

	sink.Record(Entry{
		Provider: types.ProviderAnthropic,
		Outcome:  OutcomeBlocked,
		CostUSD:  0.0001,
		Violations: []types.Violation{
			{Code: types.CodeInjectionDetected, Interceptor: types.InterceptorInjection},
		},
		DurationMS: 42,
	})

	if sink.callTotal == nil || sink.violationTotal == nil || sink.costUSDTotal == nil || sink.durationMS == nil {
		t.Fatalf("expected all metrics to be initialized")
	}
}

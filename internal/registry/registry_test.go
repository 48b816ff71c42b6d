package registry

import (
	"context"
	"testing"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

type stubAdapter struct{}

func (stubAdapter) TransformRequest(ctx context.Context, req *types.Request) (any, error) { return nil, nil }
func (stubAdapter) Execute(ctx context.Context, providerReq any) (any, error)              { return nil, nil }
func (stubAdapter) TransformResponse(ctx context.Context, providerResp any, requestID string) (any, error) {
	return nil, nil
}
func (stubAdapter) ValidateCapabilities(model string, capability adapter.Capability) bool { return true }

func TestResolve_Allowed(t *testing.T) {
	r := New([]types.ProviderTag{types.ProviderAnthropic})
	r.Register(types.ProviderAnthropic, stubAdapter{}, NewCircuitBreaker(5, 0))

	a, cb, err := r.Resolve(types.ProviderAnthropic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || cb == nil {
		t.Fatalf("expected non-nil adapter and breaker")
	}
}

func TestResolve_NotInAllowList(t *testing.T) {
	r := New([]types.ProviderTag{types.ProviderAnthropic})
	_, _, err := r.Resolve(types.ProviderOpenAI)
	if err == nil {
		t.Fatalf("expected error for disallowed provider")
	}
	naErr, ok := err.(*NotAllowedError)
	if !ok {
		t.Fatalf("expected *NotAllowedError, got %T", err)
	}
	if naErr.Violation().Code != types.CodeProviderNotAllowed {
		t.Errorf("unexpected violation code: %v", naErr.Violation().Code)
	}
}

func TestResolve_AllowedButUnregistered(t *testing.T) {
	r := New([]types.ProviderTag{types.ProviderAnthropic})
	_, _, err := r.Resolve(types.ProviderAnthropic)
	if err == nil {
		t.Fatalf("expected error for unregistered adapter")
	}
}

func TestCircuitBreaker_TripsOpenAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 0)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	if cb.Allow() {
		t.Fatalf("expected circuit to be open after reaching failure threshold")
	}
}

func TestCircuitBreaker_ResetReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 0)
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatalf("expected open circuit")
	}
	cb.Reset()
	if !cb.Allow() {
		t.Fatalf("expected closed circuit after reset")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 0)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.Allow() {
		t.Fatalf("expected circuit still closed since success reset the failure count")
	}
}

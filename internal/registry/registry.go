// Package registry implements the adapter registry described by the
// component design: allow-list-gated resolution of provider adapters, each
// guarded by its own circuit breaker. Grounded on the teacher's
// internal/router package (provider.go for registration/resolution,
// circuit.go for the breaker state machine).
package registry

import (
	"sync"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// Registry holds registered adapters gated by a provider allow-list,
// constructed once at startup. Registration happens only during startup
// wiring; thereafter resolution is read-only from multiple goroutines.
type Registry struct {
	mu       sync.RWMutex
	allowed  map[types.ProviderTag]bool
	adapters map[types.ProviderTag]adapter.Adapter
	breakers map[types.ProviderTag]*CircuitBreaker
}

// New builds a Registry gated by allowedProviders (the policy's
// allowed_providers list).
func New(allowedProviders []types.ProviderTag) *Registry {
	allowed := make(map[types.ProviderTag]bool, len(allowedProviders))
	for _, p := range allowedProviders {
		allowed[p] = true
	}
	return &Registry{
		allowed:  allowed,
		adapters: make(map[types.ProviderTag]adapter.Adapter),
		breakers: make(map[types.ProviderTag]*CircuitBreaker),
	}
}

// Register associates tag with an adapter and the circuit breaker cb
// supplied by the caller. Intended for startup wiring only.
func (r *Registry) Register(tag types.ProviderTag, a adapter.Adapter, cb *CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[tag] = a
	r.breakers[tag] = cb
}

// NotAllowedError reports that a provider tag failed allow-list gating,
// either because it is outright disallowed or because it has no
// registered adapter despite being allowed.
type NotAllowedError struct {
	Tag     types.ProviderTag
	Message string
}

func (e *NotAllowedError) Error() string { return e.Message }

func (e *NotAllowedError) Violation() types.Violation {
	return types.Violation{
		Code:        types.CodeProviderNotAllowed,
		Message:     e.Message,
		Interceptor: types.InterceptorOrchestrator,
		Payload:     map[string]any{"provider": e.Tag},
	}
}

// Resolve returns the adapter registered for tag, or a NotAllowedError if
// tag is outside the allow-list or has no registered adapter.
func (r *Registry) Resolve(tag types.ProviderTag) (adapter.Adapter, *CircuitBreaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.allowed[tag] {
		return nil, nil, &NotAllowedError{Tag: tag, Message: "provider is not in the allow-list"}
	}
	a, ok := r.adapters[tag]
	if !ok {
		return nil, nil, &NotAllowedError{Tag: tag, Message: "no adapter registered for allowed provider"}
	}
	return a, r.breakers[tag], nil
}

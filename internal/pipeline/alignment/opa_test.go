package alignment

import (
	"context"
	"testing"
	"time"

	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

const allowAllPolicy = `
package proxy.alignment

import rego.v1

default allow := true
default reason := ""
`

const denyOllamaPolicy = `
package proxy.alignment

import rego.v1

default allow := true
default reason := ""

deny contains msg if {
	input.provider == "local-ollama"
	msg := "local-ollama is not permitted outside business hours"
}

allow := false if {
	count(deny) > 0
}

reason := concat("; ", deny) if {
	count(deny) > 0
}
`

func loadTestExtension(t *testing.T, policy string) *RegoExtension {
	t.Helper()
	ext := NewRegoExtension(100 * time.Millisecond)
	if err := ext.Load(map[string]string{"test.rego": policy}); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return ext
}

func TestRegoExtension_AllowByDefault(t *testing.T) {
	ext := loadTestExtension(t, allowAllPolicy)

	allowed, _, err := ext.Evaluate(context.Background(), RegoInput{Provider: "anthropic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected allow, got deny")
	}
}

func TestRegoExtension_DeniesMatchingRule(t *testing.T) {
	ext := loadTestExtension(t, denyOllamaPolicy)

	allowed, reason, err := ext.Evaluate(context.Background(), RegoInput{Provider: "local-ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Errorf("expected deny, got allow")
	}
	if reason == "" {
		t.Errorf("expected a non-empty reason")
	}
}

func TestRegoExtension_NoPolicyLoadedFailsClosed(t *testing.T) {
	ext := NewRegoExtension(0)

	allowed, reason, err := ext.Evaluate(context.Background(), RegoInput{Provider: "anthropic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Errorf("expected fail-closed deny with no policy loaded")
	}
	if reason != "no policy loaded" {
		t.Errorf("reason = %q, want %q", reason, "no policy loaded")
	}
}

func TestChecker_WithNoRegoExtensionIsUnaffected(t *testing.T) {
	c := NewChecker(nil)
	req := &types.Request{
		ID:       "req-1",
		Provider: types.ProviderAnthropic,
		Messages: []types.Message{{Role: types.RoleUser, Content: types.TextContent("hi")}},
	}
	settings := config.AgnosticSettings{
		AllowedProviders:     []types.ProviderTag{types.ProviderAnthropic},
		MaxTokenSpendPerCall: 1.0,
	}

	got := c.Check(context.Background(), req, settings)
	if got.IsBlocked() {
		t.Errorf("expected pass with no extension attached, got blocked: %v", got.Violations)
	}
}

func TestChecker_WithRegoExtensionDenying(t *testing.T) {
	ext := loadTestExtension(t, denyOllamaPolicy)
	c := NewChecker(nil).WithRegoExtension(ext)

	req := &types.Request{
		ID:       "req-1",
		Provider: types.ProviderLocalOllama,
		Messages: []types.Message{{Role: types.RoleUser, Content: types.TextContent("hi")}},
	}
	settings := config.AgnosticSettings{
		AllowedProviders:     []types.ProviderTag{types.ProviderLocalOllama},
		MaxTokenSpendPerCall: 1.0,
	}

	got := c.Check(context.Background(), req, settings)
	if !got.IsBlocked() {
		t.Fatalf("expected the rego extension to block this request")
	}
	if got.Violations[0].Code != types.CodeProviderNotAllowed {
		t.Errorf("code = %v, want %v", got.Violations[0].Code, types.CodeProviderNotAllowed)
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

// SecurityTier is the closed set of policy tiers. STRICT enables the
// additional injection-pattern categories described in spec §4.2.
type SecurityTier string

const (
	TierStrict     SecurityTier = "STRICT"
	TierModerate   SecurityTier = "MODERATE"
	TierPermissive SecurityTier = "PERMISSIVE"
)

func (t SecurityTier) Valid() bool {
	switch t {
	case TierStrict, TierModerate, TierPermissive:
		return true
	default:
		return false
	}
}

// ExpectedSchemaVersion is the only schema_version a Policy file may carry.
const ExpectedSchemaVersion = 1

// AgnosticSettings holds the provider-agnostic guardrail knobs.
type AgnosticSettings struct {
	RedactPII            bool               `json:"redact_pii"`
	MaxTokenSpendPerCall float64            `json:"max_token_spend_per_call"`
	AllowedProviders     []types.ProviderTag `json:"allowed_providers"`
}

// SafetyHooks are free-form audit labels; the core never interprets them.
type SafetyHooks struct {
	PreFlight  []string `json:"pre_flight"`
	PostFlight []string `json:"post_flight"`
}

// Policy is the frozen policy configuration loaded once at startup and held
// for process lifetime (spec §3, §6). No interceptor mutates it.
type Policy struct {
	ProjectName         string           `json:"project_name"`
	SecurityTier        SecurityTier     `json:"security_tier"`
	SchemaVersion       int              `json:"schema_version"`
	AgnosticSettings    AgnosticSettings `json:"agnostic_settings"`
	SafetyHooks         SafetyHooks      `json:"safety_hooks"`
	DependencyWhitelist []string         `json:"dependency_whitelist,omitempty"`
}

// Error is raised by LoadPolicy when a field fails validation. It is a
// plain Go error, not a types.Violation — per spec §7, CONFIG_ERROR occurs
// before any canonical response exists, so it surfaces as a raised error
// from the loader rather than pipeline data.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// LoadPolicy reads the policy configuration file (JSON, per spec §6),
// expands ${VAR}/${VAR:default} references, and validates project_name,
// security_tier, schema_version, agnostic_settings.allowed_providers and
// agnostic_settings.max_token_spend_per_call. safety_hooks and
// agnostic_settings.redact_pii are not checked: when absent they decode to
// their zero values. The returned value is never mutated afterward by any
// caller in this repo.
func LoadPolicy(path string) (*Policy, error) {
	expanded, err := readExpanded(path)
	if err != nil {
		return nil, fmt.Errorf("load policy config: %w", err)
	}

	var p Policy
	if err := json.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("parse policy config %s: %w", path, err)
	}

	if err := validatePolicy(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validatePolicy(p *Policy) error {
	if p.ProjectName == "" {
		return &Error{Field: "project_name", Message: "must be a non-empty string"}
	}
	if !p.SecurityTier.Valid() {
		return &Error{Field: "security_tier", Message: "must be one of STRICT, MODERATE, PERMISSIVE"}
	}
	if p.SchemaVersion != ExpectedSchemaVersion {
		return &Error{Field: "schema_version", Message: fmt.Sprintf("must equal %d", ExpectedSchemaVersion)}
	}
	if len(p.AgnosticSettings.AllowedProviders) == 0 {
		return &Error{Field: "agnostic_settings.allowed_providers", Message: "must be a non-empty array"}
	}
	for _, pr := range p.AgnosticSettings.AllowedProviders {
		if !pr.Valid() {
			return &Error{Field: "agnostic_settings.allowed_providers", Message: fmt.Sprintf("unknown provider tag %q", pr)}
		}
	}
	if !isFiniteNumber(p.AgnosticSettings.MaxTokenSpendPerCall) {
		return &Error{Field: "agnostic_settings.max_token_spend_per_call", Message: "must be a finite number"}
	}
	return nil
}

func isFiniteNumber(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

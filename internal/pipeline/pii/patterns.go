package pii

import "regexp"

// replacement pairs a compiled pattern with the bracketed placeholder that
// replaces every match. Order matters: patterns are applied in this order
// against every text field, matching the teacher's secrets-pattern-table
// idiom (internal/filter/secrets/patterns.go) adapted to PII rather than
// credential leakage.
type replacement struct {
	name        string
	regex       *regexp.Regexp
	placeholder string
}

// DefaultReplacements returns the four PII categories the masker replaces,
// in the required application order: email, credit card, SSN, phone.
func DefaultReplacements() []replacement {
	return []replacement{
		{
			name:        "email",
			regex:       regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			placeholder: "[EMAIL]",
		},
		{
			name: "credit_card",
			regex: regexp.MustCompile(
				`\b(?:4[0-9]{3}(?:[ -]?[0-9]{4}){3}` + // Visa
					`|5[1-5][0-9]{2}(?:[ -]?[0-9]{4}){3}` + // Mastercard
					`|3[47][0-9]{2}[ -]?[0-9]{6}[ -]?[0-9]{5}` + // Amex
					`|6(?:011|5[0-9]{2})(?:[ -]?[0-9]{4}){3})\b`, // Discover
			),
			placeholder: "[CC]",
		},
		{
			name:        "ssn",
			// Area excludes 000, 666 and 9xx; group excludes 00; serial excludes 0000.
			regex:       regexp.MustCompile(`\b(?:00[1-9]|0[1-9]\d|[1-578]\d{2}|6[0-57-9]\d|66[0-57-9])[- ](?:0[1-9]|[1-9]\d)[- ](?:000[1-9]|00[1-9]\d|0[1-9]\d{2}|[1-9]\d{3})\b`),
			placeholder: "[SSN]",
		},
		{
			name:        "phone",
			regex:       regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(\d{3}\)[-.\s]?|\d{3}[-.\s])\d{3}[-.\s]?\d{4}`),
			placeholder: "[PHONE]",
		},
	}
}

// maskText applies every replacement, in order, to s.
func maskText(s string, replacements []replacement) string {
	for _, r := range replacements {
		s = r.regex.ReplaceAllString(s, r.placeholder)
	}
	return s
}

package injection

import "regexp"

// pattern pairs a compiled regex with the tier that enables it. The
// baseline categories run under every tier; the roleplay/hypothetical/
// pretend categories are STRICT-only per spec.
type pattern struct {
	name      string
	regex     *regexp.Regexp
	strictOnly bool
}

// basePatterns returns the four categories required for every tier:
// explicit override, role reassignment, priority inversion, context
// poisoning.
func basePatterns() []pattern {
	return []pattern{
		{
			name:  "explicit_override",
			regex: regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+|the\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|context|commands)`),
		},
		{
			name:  "role_reassignment_your_role",
			regex: regexp.MustCompile(`(?i)your\s+(real|true|actual|new|primary)\s+(role|purpose|goal|task|job|objective)\s+is`),
		},
		{
			name:  "role_reassignment_you_are_now",
			regex: regexp.MustCompile(`(?i)you\s+are\s+(now|actually|really)\s+(a|an)\b`),
		},
		{
			name:  "role_reassignment_act_as_if",
			regex: regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+(are|were)\b`),
		},
		{
			name:  "priority_inversion_reminder",
			regex: regexp.MustCompile(`(?i)as\s+a\s+reminder,\s*your\s+(real|actual|true|primary)\s+task`),
		},
		{
			name:  "priority_inversion_real_instructions",
			regex: regexp.MustCompile(`(?i)the\s+(real|actual|true)\s+instructions?\s+(are|is|follow)\b`),
		},
		{
			name:  "context_poisoning_system_tag",
			regex: regexp.MustCompile(`(?i)\[system\][^\n]{0,50}(ignore|override|forget|disregard)`),
		},
		{
			name:  "context_poisoning_literal_tag",
			regex: regexp.MustCompile(`(?i)</?system>`),
		},
	}
}

// strictPatterns returns the three additional categories enabled only
// under the STRICT security tier: roleplay/fiction framing, hypothetical
// framing, pretend/persona manipulation.
func strictPatterns() []pattern {
	return []pattern{
		{
			name:       "roleplay_framing",
			regex:      regexp.MustCompile(`(?i)in\s+this\s+(scenario|roleplay|game|story|fiction),?\s+(you\s+are|ignore)\b`),
			strictOnly: true,
		},
		{
			name:       "hypothetical_framing",
			regex:      regexp.MustCompile(`(?i)hypothetically,?\s+if\s+you\s+(were|had\s+no)\b`),
			strictOnly: true,
		},
		{
			name:       "pretend_persona",
			regex:      regexp.MustCompile(`(?i)pretend\s+you\s+(are|lack|have\s+no)\s+(restrictions|guidelines|rules|limits)`),
			strictOnly: true,
		},
	}
}

package pii

import (
	"testing"

	"github.com/nilgai-labs/guardproxy/internal/types"
)

func msgReq(id, text string) *types.Request {
	return &types.Request{
		ID:       id,
		Provider: types.ProviderAnthropic,
		Messages: []types.Message{
			{Role: types.RoleUser, Content: types.TextContent(text)},
		},
	}
}

func TestMask_Disabled(t *testing.T) {
	req := msgReq("r1", "Email me at spy@secret.com")
	m := NewMasker()

	got := m.Mask(req, false)
	if got != req {
		t.Fatalf("expected the same request value when redactPII is false")
	}
}

func TestMask_Patterns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "contact me at jane.doe@example.com please", "contact me at [EMAIL] please"},
		{"credit card", "card 4111 1111 1111 1111 on file", "card [CC] on file"},
		{"ssn", "ssn is 123-45-6789", "ssn is [SSN]"},
		{"ssn invalid prefix untouched", "ssn is 000-45-6789", "ssn is 000-45-6789"},
		{"phone", "call 555-123-4567 now", "call [PHONE] now"},
		{"clean text untouched", "nothing sensitive here", "nothing sensitive here"},
	}

	m := NewMasker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := msgReq("r1", tt.in)
			got := m.Mask(req, true)
			gotText := *got.Messages[0].Content.Text
			if gotText != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.in, gotText, tt.want)
			}
		})
	}
}

func TestMask_DoesNotMutateOriginal(t *testing.T) {
	req := msgReq("r1", "Email me at spy@secret.com")
	before := *req.Messages[0].Content.Text

	m := NewMasker()
	m.Mask(req, true)

	after := *req.Messages[0].Content.Text
	if before != after {
		t.Fatalf("Mask mutated the original request: before=%q after=%q", before, after)
	}
}

func TestMask_Idempotent(t *testing.T) {
	req := msgReq("r1", "Email me at spy@secret.com, card 4111 1111 1111 1111")
	m := NewMasker()

	once := m.Mask(req, true)
	twice := m.Mask(once, true)

	onceText := *once.Messages[0].Content.Text
	twiceText := *twice.Messages[0].Content.Text
	if onceText != twiceText {
		t.Fatalf("masking is not idempotent: once=%q twice=%q", onceText, twiceText)
	}
}

func TestMask_NestedBlocks(t *testing.T) {
	inner := types.TextContent("spy@secret.com")
	req := &types.Request{
		ID:       "r2",
		Provider: types.ProviderAnthropic,
		Messages: []types.Message{
			{
				Role:    types.RoleUser,
				Content: types.BlocksContent([]types.ContentBlock{{Content: &inner}}),
			},
		},
	}

	m := NewMasker()
	got := m.Mask(req, true)
	nested := got.Messages[0].Content.Blocks[0].Content
	if *nested.Text != "[EMAIL]" {
		t.Errorf("nested content = %q, want [EMAIL]", *nested.Text)
	}
}

func TestMask_SystemPrompt(t *testing.T) {
	prompt := "reach the admin at admin@corp.com"
	req := &types.Request{
		ID:           "r3",
		Provider:     types.ProviderAnthropic,
		SystemPrompt: &prompt,
	}

	m := NewMasker()
	got := m.Mask(req, true)
	if *got.SystemPrompt != "reach the admin at [EMAIL]" {
		t.Errorf("system prompt = %q, want masked", *got.SystemPrompt)
	}
	if *req.SystemPrompt != prompt {
		t.Errorf("original system prompt mutated: %q", *req.SystemPrompt)
	}
}

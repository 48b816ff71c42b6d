// Package pii implements the second inbound pipeline stage: masking
// personally identifying text with bracketed placeholders. Unlike every
// other interceptor the masker never blocks; it is a pure transformer that
// returns a structurally identical request (see types.Request.Clone), never
// mutating the value it was given.
package pii

import "github.com/nilgai-labs/guardproxy/internal/types"

// Masker replaces PII patterns in a request's textual fields.
type Masker struct {
	replacements []replacement
}

// NewMasker builds a Masker with the default pattern set.
func NewMasker() *Masker {
	return &Masker{replacements: DefaultReplacements()}
}

// Mask returns a request with PII patterns replaced by bracketed
// placeholders. When redactPII is false the original request is returned
// unchanged (not cloned — there is nothing to protect against mutating,
// since no transform runs). When true, a deep copy is returned with every
// textual field masked; the input value is never modified.
func (m *Masker) Mask(req *types.Request, redactPII bool) *types.Request {
	if !redactPII {
		return req
	}

	out := req.Clone()
	if out.SystemPrompt != nil {
		masked := maskText(*out.SystemPrompt, m.replacements)
		out.SystemPrompt = &masked
	}
	for i := range out.Messages {
		out.Messages[i].Content = m.maskContent(out.Messages[i].Content)
	}
	return out
}

func (m *Masker) maskContent(c types.MessageContent) types.MessageContent {
	if c.Text != nil {
		masked := maskText(*c.Text, m.replacements)
		return types.TextContent(masked)
	}
	blocks := make([]types.ContentBlock, len(c.Blocks))
	for i, b := range c.Blocks {
		blocks[i] = m.maskBlock(b)
	}
	return types.BlocksContent(blocks)
}

func (m *Masker) maskBlock(b types.ContentBlock) types.ContentBlock {
	out := types.ContentBlock{}
	if b.Text != nil {
		masked := maskText(*b.Text, m.replacements)
		out.Text = &masked
	}
	if b.Content != nil {
		nested := m.maskContent(*b.Content)
		out.Content = &nested
	}
	return out
}

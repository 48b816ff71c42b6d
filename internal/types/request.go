package types

import (
	"encoding/json"
	"fmt"
)

// ProviderTag names a supported LLM back-end. The set is closed — no
// adapter may be registered or resolved under a tag outside it.
type ProviderTag string

const (
	ProviderAnthropic   ProviderTag = "anthropic"
	ProviderOpenAI      ProviderTag = "openai"
	ProviderLocalOllama ProviderTag = "local-ollama"
)

// Valid reports whether p is one of the closed set of provider tags.
func (p ProviderTag) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderLocalOllama:
		return true
	default:
		return false
	}
}

// Role is the closed set of message roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// MessageContent is either a single text string or an ordered sequence of
// content blocks. It marshals and unmarshals as whichever form is present,
// mirroring the canonical wire shape described by the spec.
type MessageContent struct {
	Text   *string
	Blocks []ContentBlock
}

// TextContent builds a text-form MessageContent.
func TextContent(s string) MessageContent {
	return MessageContent{Text: &s}
}

// BlocksContent builds a block-sequence-form MessageContent.
func BlocksContent(blocks []ContentBlock) MessageContent {
	return MessageContent{Blocks: blocks}
}

// IsText reports whether the content is the single-string form.
func (m MessageContent) IsText() bool { return m.Text != nil }

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.Text != nil {
		return json.Marshal(*m.Text)
	}
	if m.Blocks != nil {
		return json.Marshal(m.Blocks)
	}
	return json.Marshal("")
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = &s
		m.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message content is neither a string nor a content block sequence: %w", err)
	}
	m.Blocks = blocks
	m.Text = nil
	return nil
}

// Clone returns a deep copy so callers may mutate it without affecting the
// original request value.
func (m MessageContent) Clone() MessageContent {
	out := MessageContent{}
	if m.Text != nil {
		t := *m.Text
		out.Text = &t
	}
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		for i, b := range m.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	return out
}

// ContentBlock carries an optional text field and an optional nested content
// field, the latter used for tool-result payloads that themselves contain
// text or further blocks.
type ContentBlock struct {
	Text    *string         `json:"text,omitempty"`
	Content *MessageContent `json:"content,omitempty"`
}

func (b ContentBlock) Clone() ContentBlock {
	out := ContentBlock{}
	if b.Text != nil {
		t := *b.Text
		out.Text = &t
	}
	if b.Content != nil {
		c := b.Content.Clone()
		out.Content = &c
	}
	return out
}

// Message is one turn of the canonical conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

func (m Message) Clone() Message {
	return Message{Role: m.Role, Content: m.Content.Clone()}
}

// ToolDefinition describes a tool the model may call. InputSchema is opaque
// to the core — its internal shape is never interpreted here.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// Request is the canonical, provider-agnostic inbound call. An orchestrator
// caller never hands a provider-native shape to the pipeline; everything
// downstream of intake operates on this type alone.
type Request struct {
	ID              string           `json:"id"`
	Provider        ProviderTag      `json:"provider"`
	Model           string           `json:"model"`
	SystemPrompt    *string          `json:"system_prompt,omitempty"`
	Messages        []Message        `json:"messages"`
	Tools           []ToolDefinition `json:"tools,omitempty"`
	MaxOutputTokens *int             `json:"max_output_tokens,omitempty"`
	SessionID       *string          `json:"session_id,omitempty"`
}

// Clone returns a deep copy of the request. The PII masker relies on this to
// avoid mutating the caller's original value (spec: "a new request value
// rather than mutating the original").
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := &Request{
		ID:       r.ID,
		Provider: r.Provider,
		Model:    r.Model,
	}
	if r.SystemPrompt != nil {
		s := *r.SystemPrompt
		out.SystemPrompt = &s
	}
	if r.Messages != nil {
		out.Messages = make([]Message, len(r.Messages))
		for i, m := range r.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	if r.Tools != nil {
		out.Tools = make([]ToolDefinition, len(r.Tools))
		copy(out.Tools, r.Tools)
	}
	if r.MaxOutputTokens != nil {
		v := *r.MaxOutputTokens
		out.MaxOutputTokens = &v
	}
	if r.SessionID != nil {
		s := *r.SessionID
		out.SessionID = &s
	}
	return out
}

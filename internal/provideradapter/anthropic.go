// Package provideradapter contains the concrete adapter.Adapter
// implementations: Anthropic, OpenAI, and a local Ollama adapter. Each maps
// the canonical request/response model onto its provider's wire format,
// grounded on the teacher's internal/router/adapters package. Every
// TransformResponse returns a map[string]any — the untyped shape
// internal/pipeline/schema.Enforce validates before it is trusted.
package provideradapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

// anthropicRates holds the per-model input/output USD rates per million
// tokens used by adapter.CalculateCost. Kept local to each adapter file since the
// rate table is provider-specific.
var anthropicRates = map[string][2]float64{
	"claude-3-opus":   {15.0, 75.0},
	"claude-3-sonnet": {3.0, 15.0},
	"claude-3-haiku":  {0.25, 1.25},
}

func anthropicRateFor(model string) (float64, float64) {
	if r, ok := anthropicRates[model]; ok {
		return r[0], r[1]
	}
	return 3.0, 15.0
}

// AnthropicAdapter talks to the Anthropic Messages API.
type AnthropicAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
	retry  adapter.RetryPolicy
}

// NewAnthropicAdapter builds an Anthropic adapter.
func NewAnthropicAdapter(cfg config.ProviderConfig, client *http.Client, retry adapter.RetryPolicy) *AnthropicAdapter {
	return &AnthropicAdapter{cfg: cfg, client: client, retry: retry}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequestBody struct {
	Model     string                  `json:"model"`
	Messages  []anthropicMessage      `json:"messages"`
	System    string                  `json:"system,omitempty"`
	MaxTokens int                     `json:"max_tokens"`
	Tools     []anthropicToolSpec     `json:"tools,omitempty"`
}

type anthropicToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponseBody struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Input any    `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) TransformRequest(ctx context.Context, req *types.Request) (any, error) {
	var system string
	if req.SystemPrompt != nil {
		system = *req.SystemPrompt
	}

	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, adapter.CapabilityToolUse) {
		return nil, &adapter.Error{Message: fmt.Sprintf("model %q does not support tool use", req.Model)}
	}

	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropicMessage{Role: string(m.Role), Content: flattenContent(m.Content)})
	}

	maxTokens := 4096
	if req.MaxOutputTokens != nil {
		maxTokens = *req.MaxOutputTokens
	}

	var tools []anthropicToolSpec
	for _, t := range req.Tools {
		tools = append(tools, anthropicToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	body := anthropicRequestBody{
		Model:     req.Model,
		Messages:  messages,
		System:    system,
		MaxTokens: maxTokens,
		Tools:     tools,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &adapter.Error{Message: "marshal anthropic request", Cause: err}
	}

	url := a.cfg.BaseURL + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &adapter.Error{Message: "build anthropic http request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

func (a *AnthropicAdapter) Execute(ctx context.Context, providerReq any) (any, error) {
	httpReq, ok := providerReq.(*http.Request)
	if !ok {
		return nil, &adapter.Error{Message: "anthropic execute received a non-*http.Request value"}
	}

	var httpResp *http.Response
	err := adapter.Retry(ctx, a.retry, func(attemptCtx context.Context) error {
		reqCopy := httpReq.Clone(attemptCtx)
		resp, err := a.client.Do(reqCopy)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("anthropic returned status %d", resp.StatusCode)
		}
		httpResp = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return httpResp, nil
}

func (a *AnthropicAdapter) TransformResponse(ctx context.Context, providerResp any, requestID string) (any, error) {
	httpResp, ok := providerResp.(*http.Response)
	if !ok {
		return nil, &adapter.Error{Message: "anthropic transformResponse received a non-*http.Response value"}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &adapter.Error{Message: "read anthropic response body", Cause: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &adapter.Error{Message: fmt.Sprintf("anthropic returned status %d: %s", httpResp.StatusCode, string(body))}
	}

	var parsed anthropicResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &adapter.Error{Message: "unmarshal anthropic response", Cause: err}
	}

	var content *string
	var toolCalls []any
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			t := block.Text
			content = &t
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			toolCalls = append(toolCalls, map[string]any{
				"id":            block.ID,
				"function_name": block.Name,
				"arguments":     string(args),
			})
		}
	}

	inRate, outRate := anthropicRateFor(parsed.Model)
	cost := adapter.CalculateCost(parsed.Usage.InputTokens, parsed.Usage.OutputTokens, inRate, outRate)

	out := map[string]any{
		"schema_version": types.SchemaVersion,
		"id":              requestID,
		"model_used":      parsed.Model,
		"tool_calls":      toolCalls,
		"finish_reason":   mapAnthropicStopReason(parsed.StopReason),
		"usage": map[string]any{
			"input_tokens":  parsed.Usage.InputTokens,
			"output_tokens": parsed.Usage.OutputTokens,
			"cost_usd":      cost,
		},
	}
	if content != nil {
		out["content"] = *content
	}
	return out, nil
}

func (a *AnthropicAdapter) ValidateCapabilities(model string, capability adapter.Capability) bool {
	switch capability {
	case adapter.CapabilityToolUse, adapter.CapabilitySystem:
		return true
	case adapter.CapabilityStreaming:
		return true
	default:
		return false
	}
}

func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return string(types.FinishStop)
	case "max_tokens":
		return string(types.FinishLength)
	case "tool_use":
		return string(types.FinishToolUse)
	default:
		return string(types.FinishContentFilter)
	}
}

// flattenContent collapses a MessageContent into a single string for
// providers (Anthropic's text-content turns) that expect plain text per
// message. Block-form content concatenates each block's text in order.
func flattenContent(c types.MessageContent) string {
	if c.Text != nil {
		return *c.Text
	}
	var out string
	for _, b := range c.Blocks {
		if b.Text != nil {
			out += *b.Text
		}
		if b.Content != nil {
			out += flattenContent(*b.Content)
		}
	}
	return out
}

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

var openAIRates = map[string][2]float64{
	"gpt-4o":      {5.0, 15.0},
	"gpt-4o-mini": {0.15, 0.6},
	"gpt-4-turbo": {10.0, 30.0},
}

func openAIRateFor(model string) (float64, float64) {
	if r, ok := openAIRates[model]; ok {
		return r[0], r[1]
	}
	return 5.0, 15.0
}

// OpenAIAdapter talks to the Chat Completions API.
type OpenAIAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
	retry  adapter.RetryPolicy
}

// NewOpenAIAdapter builds an OpenAI adapter.
func NewOpenAIAdapter(cfg config.ProviderConfig, client *http.Client, retry adapter.RetryPolicy) *OpenAIAdapter {
	return &OpenAIAdapter{cfg: cfg, client: client, retry: retry}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFunctionSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type openAIToolSpec struct {
	Type     string              `json:"type"`
	Function openAIFunctionSpec  `json:"function"`
}

type openAIRequestBody struct {
	Model    string            `json:"model"`
	Messages []openAIMessage   `json:"messages"`
	Tools    []openAIToolSpec  `json:"tools,omitempty"`
}

type openAIResponseBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a *OpenAIAdapter) TransformRequest(ctx context.Context, req *types.Request) (any, error) {
	if len(req.Tools) > 0 && !a.ValidateCapabilities(req.Model, adapter.CapabilityToolUse) {
		return nil, &adapter.Error{Message: fmt.Sprintf("model %q does not support tool use", req.Model)}
	}

	var messages []openAIMessage
	if req.SystemPrompt != nil {
		messages = append(messages, openAIMessage{Role: "system", Content: *req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: flattenContent(m.Content)})
	}

	var tools []openAIToolSpec
	for _, t := range req.Tools {
		tools = append(tools, openAIToolSpec{
			Type: "function",
			Function: openAIFunctionSpec{Name: t.Name, Description: t.Description, Parameters: t.InputSchema},
		})
	}

	body := openAIRequestBody{Model: req.Model, Messages: messages, Tools: tools}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &adapter.Error{Message: "marshal openai request", Cause: err}
	}

	url := a.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &adapter.Error{Message: "build openai http request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

func (a *OpenAIAdapter) Execute(ctx context.Context, providerReq any) (any, error) {
	httpReq, ok := providerReq.(*http.Request)
	if !ok {
		return nil, &adapter.Error{Message: "openai execute received a non-*http.Request value"}
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
			return fmt.Errorf("openai returned status %d", resp.StatusCode)
		}
		httpResp = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return httpResp, nil
}

func (a *OpenAIAdapter) TransformResponse(ctx context.Context, providerResp any, requestID string) (any, error) {
	httpResp, ok := providerResp.(*http.Response)
	if !ok {
		return nil, &adapter.Error{Message: "openai transformResponse received a non-*http.Response value"}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &adapter.Error{Message: "read openai response body", Cause: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &adapter.Error{Message: fmt.Sprintf("openai returned status %d: %s", httpResp.StatusCode, string(body))}
	}

	var parsed openAIResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &adapter.Error{Message: "unmarshal openai response", Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &adapter.Error{Message: "openai response carries no choices"}
	}
	choice := parsed.Choices[0]

	var toolCalls []any
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, map[string]any{
			"id":            tc.ID,
			"function_name": tc.Function.Name,
			"arguments":     tc.Function.Arguments,
		})
	}

	inRate, outRate := openAIRateFor(parsed.Model)
	cost := adapter.CalculateCost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, inRate, outRate)

	out := map[string]any{
		"schema_version": types.SchemaVersion,
		"id":              requestID,
		"model_used":      parsed.Model,
		"tool_calls":      toolCalls,
		"finish_reason":   mapOpenAIFinishReason(choice.FinishReason),
		"usage": map[string]any{
			"input_tokens":  parsed.Usage.PromptTokens,
			"output_tokens": parsed.Usage.CompletionTokens,
			"cost_usd":      cost,
		},
	}
	if choice.Message.Content != "" {
		out["content"] = choice.Message.Content
	}
	return out, nil
}

func (a *OpenAIAdapter) ValidateCapabilities(model string, capability adapter.Capability) bool {
	switch capability {
	case adapter.CapabilityToolUse, adapter.CapabilitySystem, adapter.CapabilityStreaming:
		return true
	default:
		return false
	}
}

func mapOpenAIFinishReason(reason string) string {
	switch reason {
	case "stop":
		return string(types.FinishStop)
	case "length":
		return string(types.FinishLength)
	case "tool_calls":
		return string(types.FinishToolUse)
	default:
		return string(types.FinishContentFilter)
	}
}

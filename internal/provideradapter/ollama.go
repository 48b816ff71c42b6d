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

// OllamaAdapter talks to a local Ollama chat endpoint. Local inference
// carries no metered cost, so its usage record always reports zero
// cost_usd even though token counts are still populated.
type OllamaAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
	retry  adapter.RetryPolicy
}

// NewOllamaAdapter builds a local Ollama adapter.
func NewOllamaAdapter(cfg config.ProviderConfig, client *http.Client, retry adapter.RetryPolicy) *OllamaAdapter {
	return &OllamaAdapter{cfg: cfg, client: client, retry: retry}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequestBody struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponseBody struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *OllamaAdapter) TransformRequest(ctx context.Context, req *types.Request) (any, error) {
	if len(req.Tools) > 0 {
		return nil, &adapter.Error{Message: fmt.Sprintf("model %q does not support tool use", req.Model)}
	}

	var messages []ollamaMessage
	if req.SystemPrompt != nil {
		messages = append(messages, ollamaMessage{Role: "system", Content: *req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: flattenContent(m.Content)})
	}

	body := ollamaRequestBody{Model: req.Model, Messages: messages, Stream: false}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &adapter.Error{Message: "marshal ollama request", Cause: err}
	}

	url := a.cfg.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &adapter.Error{Message: "build ollama http request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (a *OllamaAdapter) Execute(ctx context.Context, providerReq any) (any, error) {
	httpReq, ok := providerReq.(*http.Request)
	if !ok {
		return nil, &adapter.Error{Message: "ollama execute received a non-*http.Request value"}
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
			return fmt.Errorf("ollama returned status %d", resp.StatusCode)
		}
		httpResp = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return httpResp, nil
}

func (a *OllamaAdapter) TransformResponse(ctx context.Context, providerResp any, requestID string) (any, error) {
	httpResp, ok := providerResp.(*http.Response)
	if !ok {
		return nil, &adapter.Error{Message: "ollama transformResponse received a non-*http.Response value"}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &adapter.Error{Message: "read ollama response body", Cause: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &adapter.Error{Message: fmt.Sprintf("ollama returned status %d: %s", httpResp.StatusCode, string(body))}
	}

	var parsed ollamaResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &adapter.Error{Message: "unmarshal ollama response", Cause: err}
	}

	out := map[string]any{
		"schema_version": types.SchemaVersion,
		"id":              requestID,
		"model_used":      parsed.Model,
		"content":         parsed.Message.Content,
		"tool_calls":      []any{},
		"finish_reason":   mapOllamaDoneReason(parsed.DoneReason),
		"usage": map[string]any{
			"input_tokens":  parsed.PromptEvalCount,
			"output_tokens": parsed.EvalCount,
			"cost_usd":      0.0,
		},
	}
	return out, nil
}

func (a *OllamaAdapter) ValidateCapabilities(model string, capability adapter.Capability) bool {
	switch capability {
	case adapter.CapabilitySystem:
		return true
	default:
		return false
	}
}

func mapOllamaDoneReason(reason string) string {
	switch reason {
	case "stop":
		return string(types.FinishStop)
	case "length":
		return string(types.FinishLength)
	default:
		return string(types.FinishContentFilter)
	}
}

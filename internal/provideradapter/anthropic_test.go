package provideradapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nilgai-labs/guardproxy/internal/adapter"
	"github.com/nilgai-labs/guardproxy/internal/config"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

func testRetryPolicy() adapter.RetryPolicy {
	return adapter.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, BackoffFactor: 2, AttemptTimeout: 5 * time.Second}
}

func TestAnthropicAdapter_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"model":       "claude-3-haiku",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "Hi!"},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 8},
		})
	}))
	defer server.Close()

	a := NewAnthropicAdapter(config.ProviderConfig{BaseURL: server.URL, APIKey: "test-key"}, server.Client(), testRetryPolicy())

	req := &types.Request{
		ID:       "req-1",
		Provider: types.ProviderAnthropic,
		Model:    "claude-3-haiku",
		Messages: []types.Message{{Role: types.RoleUser, Content: types.TextContent("Hello")}},
	}

	ctx := context.Background()
	providerReq, err := a.TransformRequest(ctx, req)
	if err != nil {
		t.Fatalf("TransformRequest failed: %v", err)
	}

	providerResp, err := a.Execute(ctx, providerReq)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	raw, err := a.TransformResponse(ctx, providerResp, req.ID)
	if err != nil {
		t.Fatalf("TransformResponse failed: %v", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", raw)
	}
	if obj["id"] != "req-1" {
		t.Errorf("id = %v, want req-1", obj["id"])
	}
	if obj["content"] != "Hi!" {
		t.Errorf("content = %v, want Hi!", obj["content"])
	}
	if obj["finish_reason"] != "stop" {
		t.Errorf("finish_reason = %v, want stop", obj["finish_reason"])
	}
}

func TestAnthropicAdapter_ToolUseCapability(t *testing.T) {
	a := NewAnthropicAdapter(config.ProviderConfig{BaseURL: "http://unused"}, http.DefaultClient, testRetryPolicy())
	if !a.ValidateCapabilities("claude-3-opus", adapter.CapabilityToolUse) {
		t.Errorf("expected anthropic adapter to support tool use")
	}
}

func TestAnthropicAdapter_ServerErrorWrappedAsAdapterError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewAnthropicAdapter(config.ProviderConfig{BaseURL: server.URL, APIKey: "k"}, server.Client(), testRetryPolicy())
	req := &types.Request{ID: "r1", Provider: types.ProviderAnthropic, Model: "claude-3-haiku",
		Messages: []types.Message{{Role: types.RoleUser, Content: types.TextContent("hi")}}}

	providerReq, err := a.TransformRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("TransformRequest failed: %v", err)
	}

	_, err = a.Execute(context.Background(), providerReq)
	if err == nil {
		t.Fatalf("expected error on 500 response")
	}
	var adapterErr *adapter.Error
	if ok := asAdapterError(err, &adapterErr); !ok {
		t.Fatalf("expected *adapter.Error, got %T: %v", err, err)
	}
}

func asAdapterError(err error, target **adapter.Error) bool {
	if e, ok := err.(*adapter.Error); ok {
		*target = e
		return true
	}
	return false
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicServer(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		BaseURL: srv.URL,
	}, 0, 5*time.Second, 2)
	provider.retryDelay = time.Millisecond

	return provider
}

func TestAnthropicComplete(t *testing.T) {
	provider := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, defaultAnthropicMaxTokens, req.MaxTokens)

		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "generated text"}},
		})
	})

	got, err := provider.Complete(context.Background(), UserPrompt("refine", "rewrite this"))
	require.NoError(t, err)
	assert.Equal(t, "generated text", got)
}

func TestAnthropicSystemMessageLifted(t *testing.T) {
	provider := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "you are an editor", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, RoleUser, req.Messages[0].Role)

		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "ok"}},
		})
	})

	req := CompletionRequest{
		Operation: "refine",
		Messages: []Message{
			{Role: RoleSystem, Content: "you are an editor"},
			{Role: RoleUser, Content: "rewrite"},
		},
	}
	_, err := provider.Complete(context.Background(), req)
	require.NoError(t, err)
}

func TestAnthropicRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	provider := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
			return
		}
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "ok"}},
		})
	})

	got, err := provider.Complete(context.Background(), UserPrompt("refine", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicNoTextBlocks(t *testing.T) {
	provider := newAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "tool_use"}},
		})
	})

	_, err := provider.Complete(context.Background(), UserPrompt("refine", "hi"))
	assert.ErrorContains(t, err, "no text content blocks")
}

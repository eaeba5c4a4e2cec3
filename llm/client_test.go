package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model"})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestCompleteForcesToolCall(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "test-model",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "score_dimension", "arguments": "{\"score\": 91}"}}]
			}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	})

	resp, err := c.Complete(context.Background(), Request{
		System: "You are an editor.",
		Prompt: "Score this.",
		Tool: &Tool{
			Name:       "score_dimension",
			Parameters: ObjectSchema(map[string]any{"score": Integer("score", 0, 100)}),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 91}`, resp.ToolArguments)

	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 91, out.Score)

	assert.Equal(t, "test-model", got["model"])
	choice, ok := got["tool_choice"].(map[string]any)
	require.True(t, ok, "tool_choice should be an object")
	assert.Equal(t, "function", choice["type"])
	msgs, _ := got["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestCompleteJSONMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		format, _ := req["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Sure! `+"```json\\n{\\\"title\\\": \\\"x\\\",}\\n```"+`"}}]}`)
	})

	resp, err := c.Complete(context.Background(), Request{Prompt: "p", JSON: true})
	require.NoError(t, err)
	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "x", out.Title)
}

func TestCompleteClassifiesGatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(*testing.T, *GatewayError)
	}{
		{"rate limited", http.StatusTooManyRequests, func(t *testing.T, ge *GatewayError) { assert.True(t, ge.RateLimited()) }},
		{"payment required", http.StatusPaymentRequired, func(t *testing.T, ge *GatewayError) { assert.True(t, ge.PaymentRequired()) }},
		{"server error", http.StatusBadGateway, func(t *testing.T, ge *GatewayError) { assert.Equal(t, http.StatusBadGateway, ge.StatusCode) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":{"message":"upstream says no","type":"error"}}`)
			})
			_, err := c.Complete(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			var ge *GatewayError
			require.True(t, errors.As(err, &ge), "want *GatewayError, got %T", err)
			tt.check(t, ge)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestGenerateImageDecodesBase64(t *testing.T) {
	payload := []byte("fake-image-bytes")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(payload)}},
		})
	})
	data, err := c.GenerateImage(context.Background(), "a lighthouse")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDecodeReportsParseError(t *testing.T) {
	err := Response{Content: "I cannot score this post."}.Decode(&struct{}{})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "I cannot score this post.", pe.Raw)
}

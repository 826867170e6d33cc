package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/suitegen/internal/adapter/driven/openai"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

type chatRequestJSON struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature         float32 `json:"temperature"`
	TopP                float32 `json:"top_p"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := openai.NewClient("test-key", "test-model", server.URL+"/v1/")
	require.NoError(t, err)
	return client
}

func TestGenerate_SendsPromptAndParams(t *testing.T) {
	var got chatRequestJSON
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("[]"))
	})

	temperature := float32(0.7)
	topP := float32(0.95)
	topK := 40
	maxTokens := 8192

	text, err := client.Generate(context.Background(),
		driven.Prompt{System: "You write tests.", User: "Summarize add.ts"},
		driven.GenerationParams{Temperature: &temperature, TopP: &topP, TopK: &topK, MaxTokens: &maxTokens},
	)

	require.NoError(t, err)
	assert.Equal(t, "[]", text)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You write tests.", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Summarize add.ts", got.Messages[1].Content)
	assert.InDelta(t, 0.7, got.Temperature, 0.001)
	assert.InDelta(t, 0.95, got.TopP, 0.001)
	assert.Equal(t, 8192, got.MaxCompletionTokens)
}

func TestGenerate_OmitsEmptySystemPrompt(t *testing.T) {
	var got chatRequestJSON
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("ok"))
	})

	_, err := client.Generate(context.Background(), driven.Prompt{User: "hi"}, driven.GenerationParams{})

	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("   "))
	})

	_, err := client.Generate(context.Background(), driven.Prompt{User: "hi"}, driven.GenerationParams{})

	assert.ErrorIs(t, err, driven.ErrEmptyCompletion)
}

func TestGenerate_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit"},
		})
	})

	_, err := client.Generate(context.Background(), driven.Prompt{User: "hi"}, driven.GenerationParams{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := openai.NewClient("", "", "")
	assert.Error(t, err)
}

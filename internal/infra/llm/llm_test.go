package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, requests chan<- map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if requests != nil {
			requests <- body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	requests := make(chan map[string]any, 1)
	srv := chatServer(t, `  {"relevant": true}  `, requests)

	c, err := NewOpenAI(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "openrouter/openai/gpt-4o-mini"})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), Request{
		System:      "Only return valid JSON.",
		Prompt:      "is this a lead?",
		Temperature: Temperature(0.2),
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"relevant": true}`, got)

	body := <-requests
	assert.Equal(t, "openai/gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-6)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "is this a lead?", msgs[1].(map[string]any)["content"])
}

func TestOpenAIRequestModelOverride(t *testing.T) {
	requests := make(chan map[string]any, 1)
	srv := chatServer(t, "ok", requests)
	c, err := NewOpenAI(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{Prompt: "hi", Model: "openrouter/anthropic/claude-3.5-haiku"})
	require.NoError(t, err)
	body := <-requests
	assert.Equal(t, "anthropic/claude-3.5-haiku", body["model"])
	assert.NotContains(t, body, "response_format")
}

func TestOpenAIEmptyContent(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	c, err := NewOpenAI(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInitCompleter(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{"openrouter", "openai", "anthropic"} {
		t.Run(provider+" requires key", func(t *testing.T) {
			_, err := InitCompleter(ctx, config.LLMConfig{Provider: provider})
			assert.ErrorIs(t, err, ErrNoAPIKey)
		})
	}

	t.Run("unknown provider", func(t *testing.T) {
		_, err := InitCompleter(ctx, config.LLMConfig{Provider: "gemini", APIKey: "x"})
		assert.Error(t, err)
	})

	t.Run("rate limited wrapper", func(t *testing.T) {
		c, err := InitCompleter(ctx, config.LLMConfig{Provider: "OpenRouter", APIKey: "x", RPS: 2})
		require.NoError(t, err)
		assert.IsType(t, &RateLimited{}, c)
	})

	t.Run("anthropic", func(t *testing.T) {
		c, err := InitCompleter(ctx, config.LLMConfig{Provider: "anthropic", APIKey: "x"})
		require.NoError(t, err)
		assert.IsType(t, &Anthropic{}, c)
	})
}

type completerFunc func(ctx context.Context, req Request) (string, error)

func (f completerFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

func TestRateLimited(t *testing.T) {
	var calls atomic.Int32
	next := completerFunc(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	r := NewRateLimited(next, 0.001, 1)

	got, err := r.Complete(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Complete(ctx, Request{Prompt: "b"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatModelAdapter(t *testing.T) {
	var got Request
	c := completerFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "answer", nil
	})
	m := ChatModel(c)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("who is hiring?"),
	}, model.WithTemperature(0.5), model.WithModel("m1"))
	require.NoError(t, err)
	assert.Equal(t, "answer", msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, "who is hiring?", got.Prompt)
	assert.Equal(t, "m1", got.Model)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.5, *got.Temperature, 1e-6)

	t.Run("multi turn transcript", func(t *testing.T) {
		_, err := m.Generate(context.Background(), []*schema.Message{
			schema.UserMessage("hi"),
			schema.AssistantMessage("hello", nil),
			schema.UserMessage("leads?"),
		})
		require.NoError(t, err)
		assert.Equal(t, "user: hi\n\nassistant: hello\n\nuser: leads?", got.Prompt)
	})

	t.Run("stream yields one message", func(t *testing.T) {
		sr, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("x")})
		require.NoError(t, err)
		defer sr.Close()
		chunk, err := sr.Recv()
		require.NoError(t, err)
		assert.Equal(t, "answer", chunk.Content)
	})

	t.Run("errors propagate", func(t *testing.T) {
		boom := errors.New("down")
		m := ChatModel(completerFunc(func(context.Context, Request) (string, error) { return "", boom }))
		_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
		assert.ErrorIs(t, err, boom)
	})
}

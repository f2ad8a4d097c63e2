package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/llm"
	"github.com/edgard/expensebot/internal/logger"
)

type chatRequest struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, content string) (*httptest.Server, <-chan chatRequest) {
	t.Helper()
	requests := make(chan chatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		requests <- req
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()

	srv, requests := newOpenAIServer(t, "  {\"type\":\"conversation\"}  ")

	gen := llm.NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"}, logger.Discard())
	text, err := gen.Generate(context.Background(), llm.Request{
		Prompt:          "classify this as JSON",
		Temperature:     0.1,
		MaxOutputTokens: 250,
		JSON:            true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"type":"conversation"}` {
		t.Errorf("Generate() = %q, want trimmed JSON", text)
	}

	got := <-requests

	if got.Model != "test-model" || got.MaxTokens != 250 || got.Temperature != 0.1 {
		t.Errorf("request = %+v", got)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", got.ResponseFormat)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "classify this as JSON" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIGeneratePlainText(t *testing.T) {
	t.Parallel()

	srv, requests := newOpenAIServer(t, "Nice lunch!")

	gen := llm.NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"}, logger.Discard())
	text, err := gen.Generate(context.Background(), llm.Request{Prompt: "p", Temperature: 0.8, MaxOutputTokens: 100})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Nice lunch!" {
		t.Errorf("Generate() = %q", text)
	}
	if got := <-requests; got.ResponseFormat != nil {
		t.Errorf("response_format should be omitted for plain text, got %+v", got.ResponseFormat)
	}
}

func TestOpenAIGenerateEmpty(t *testing.T) {
	t.Parallel()

	srv, _ := newOpenAIServer(t, "   ")

	gen := llm.NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"}, logger.Discard())
	if _, err := gen.Generate(context.Background(), llm.Request{Prompt: "p"}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIGenerateServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	gen := llm.NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"}, logger.Discard())
	if _, err := gen.Generate(context.Background(), llm.Request{Prompt: "p"}); err == nil {
		t.Fatal("Generate() expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want exactly 1 (no retries)", n)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{name: "missing key", cfg: config.LLMConfig{Provider: "openai", Model: "m"}, wantErr: true},
		{name: "unknown provider", cfg: config.LLMConfig{Provider: "llama", APIKey: "k", Model: "m"}, wantErr: true},
		{name: "openai", cfg: config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m"}},
		{name: "gemini", cfg: config.LLMConfig{Provider: "gemini", APIKey: "k", Model: "gemini-2.0-flash"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen, err := llm.New(context.Background(), tc.cfg, logger.Discard())
			if tc.wantErr {
				if err == nil {
					t.Error("New() expected error")
				}
				return
			}
			if err != nil || gen == nil {
				t.Errorf("New() = %v, %v", gen, err)
			}
		})
	}
}

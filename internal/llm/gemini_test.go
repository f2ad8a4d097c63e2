package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/llm"
	"github.com/edgard/expensebot/internal/logger"
)

type geminiCall struct {
	path   string
	apiKey string
	body   struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature      *float64 `json:"temperature"`
			MaxOutputTokens  int      `json:"maxOutputTokens"`
			ResponseMIMEType string   `json:"responseMimeType"`
		} `json:"generationConfig"`
	}
}

func newGeminiServer(t *testing.T, candidates []map[string]any) (*httptest.Server, <-chan geminiCall) {
	t.Helper()
	calls := make(chan geminiCall, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := geminiCall{path: r.URL.Path, apiKey: r.Header.Get("x-goog-api-key")}
		if err := json.NewDecoder(r.Body).Decode(&call.body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		calls <- call
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": candidates})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func textCandidate(text string) []map[string]any {
	return []map[string]any{{
		"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
		"finishReason": "STOP",
	}}
}

func newGemini(t *testing.T, baseURL string) llm.Generator {
	t.Helper()
	gen, err := llm.NewGeminiClient(context.Background(), config.LLMConfig{
		APIKey:  "gemini-test-key",
		BaseURL: baseURL,
		Model:   "test-model",
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	return gen
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()

	srv, calls := newGeminiServer(t, textCandidate("  {\"type\":\"conversation\"}\n"))

	text, err := newGemini(t, srv.URL).Generate(context.Background(), llm.Request{
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

	got := <-calls
	if !strings.HasSuffix(got.path, "models/test-model:generateContent") {
		t.Errorf("path = %q, want generateContent for test-model", got.path)
	}
	if got.apiKey != "gemini-test-key" {
		t.Errorf("api key header = %q", got.apiKey)
	}
	cfg := got.body.GenerationConfig
	if cfg.Temperature == nil || math.Abs(*cfg.Temperature-0.1) > 1e-6 {
		t.Errorf("temperature = %v, want 0.1", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 250 {
		t.Errorf("maxOutputTokens = %d, want 250", cfg.MaxOutputTokens)
	}
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("responseMimeType = %q, want application/json", cfg.ResponseMIMEType)
	}
	if len(got.body.Contents) != 1 || len(got.body.Contents[0].Parts) != 1 ||
		got.body.Contents[0].Parts[0].Text != "classify this as JSON" {
		t.Errorf("contents = %+v", got.body.Contents)
	}
}

func TestGeminiGeneratePlainText(t *testing.T) {
	t.Parallel()

	srv, calls := newGeminiServer(t, textCandidate("Nice lunch!"))

	text, err := newGemini(t, srv.URL).Generate(context.Background(), llm.Request{Prompt: "p", Temperature: 0.8, MaxOutputTokens: 100})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Nice lunch!" {
		t.Errorf("Generate() = %q", text)
	}

	got := <-calls
	if got.body.GenerationConfig.ResponseMIMEType != "" {
		t.Errorf("responseMimeType = %q, want unset for plain text", got.body.GenerationConfig.ResponseMIMEType)
	}
	if got.body.GenerationConfig.MaxOutputTokens != 100 {
		t.Errorf("maxOutputTokens = %d, want 100", got.body.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiGenerateEmpty(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		candidates []map[string]any
	}{
		{name: "blank text", candidates: textCandidate("   ")},
		{name: "no candidates", candidates: []map[string]any{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newGeminiServer(t, tc.candidates)
			if _, err := newGemini(t, srv.URL).Generate(context.Background(), llm.Request{Prompt: "p"}); !errors.Is(err, llm.ErrEmptyResponse) {
				t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

func TestGeminiGenerateServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`))
	}))
	t.Cleanup(srv.Close)

	if _, err := newGemini(t, srv.URL).Generate(context.Background(), llm.Request{Prompt: "p"}); err == nil {
		t.Fatal("Generate() expected error")
	}
}

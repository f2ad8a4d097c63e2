// Package llm wraps the text-generation backends behind a single Generator
// interface. Clients are stateless per call and never retry; callers bound
// each call with a context deadline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/expensebot/internal/config"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Request is a single prompt-in, text-out call.
type Request struct {
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
	// JSON asks the backend to constrain output to a JSON document.
	JSON bool
}

// Generator produces text for a prompt. The model name is fixed per client.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New builds the Generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(ctx, cfg, logger)
	case "openai":
		return NewOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

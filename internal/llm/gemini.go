package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/expensebot/internal/config"
)

type geminiClient struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// NewGeminiClient creates a Generator backed by the Gemini API.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "gemini_client")
	log.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &geminiClient{client: gi, model: cfg.Model, log: log}, nil
}

func (c *geminiClient) Generate(ctx context.Context, req Request) (string, error) {
	temperature := req.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	startTime := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini API call failed", "error", err, "duration", time.Since(startTime))
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.log.WarnContext(ctx, "Gemini returned empty text")
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "Gemini call completed", "duration", time.Since(startTime), "response_len", len(text))
	return text, nil
}

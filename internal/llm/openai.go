package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/expensebot/internal/config"
)

type openAIClient struct {
	client *gopenai.Client
	model  string
	log    *slog.Logger
}

// NewOpenAIClient creates a Generator for any OpenAI-compatible chat
// completions endpoint. An empty BaseURL keeps the library default.
func NewOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) Generator {
	aiConfig := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = cfg.BaseURL
	}

	log := logger.With("component", "openai_client")
	log.Info("OpenAI client initialized successfully", "model", cfg.Model, "base_url", aiConfig.BaseURL)
	return &openAIClient{
		client: gopenai.NewClientWithConfig(aiConfig),
		model:  cfg.Model,
		log:    log,
	}
}

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	chatReq := gopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   int(req.MaxOutputTokens),
	}
	if req.JSON {
		chatReq.ResponseFormat = &gopenai.ChatCompletionResponseFormat{
			Type: gopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.log.ErrorContext(ctx, "OpenAI API call failed", "error", err, "duration", time.Since(startTime))
		return "", fmt.Errorf("openai API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "OpenAI call completed",
		"duration", time.Since(startTime),
		"total_tokens", resp.Usage.TotalTokens)
	return text, nil
}

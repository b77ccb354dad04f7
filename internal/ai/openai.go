package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/rules"
)

// OpenAIClient talks to any OpenAI-compatible chat endpoint (OpenAI, DeepSeek).
type OpenAIClient struct {
	client *openai.Client
	cfg    config.LLMConfig
	logger *logger.Logger
	now    func() time.Time
}

func NewOpenAIClient(cfg config.LLMConfig, log *logger.Logger) *OpenAIClient {
	ocfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(ocfg),
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

func (c *OpenAIClient) Extract(ctx context.Context, rawText string) (*rules.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	c.logger.Info("sending extraction request", "provider", c.cfg.Provider, "model", c.cfg.Model)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(rawText, c.now())},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, rules.ExtractionError(fmt.Errorf("%s API call: %w", c.cfg.Provider, err))
	}

	if len(resp.Choices) == 0 {
		return nil, rules.ExtractionError(fmt.Errorf("%s returned no choices", c.cfg.Provider))
	}

	rawResponse := resp.Choices[0].Message.Content
	c.logger.Debug("extraction raw response", "content", rawResponse)

	candidate, err := ParseCandidate(rawResponse)
	if err != nil {
		return nil, rules.ExtractionError(fmt.Errorf("parse response: %w", err))
	}
	return candidate, nil
}

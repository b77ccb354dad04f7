package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/rules"
)

type GeminiClient struct {
	client *genai.Client
	cfg    config.LLMConfig
	logger *logger.Logger
	now    func() time.Time
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}, nil
}

func (g *GeminiClient) Extract(ctx context.Context, rawText string) (*rules.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout())
	defer cancel()

	g.logger.Info("sending extraction request", "provider", "gemini", "model", g.cfg.Model)

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model,
		genai.Text(BuildUserPrompt(rawText, g.now())),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(g.cfg.Temperature),
			MaxOutputTokens:   int32(g.cfg.MaxTokens),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return nil, rules.ExtractionError(fmt.Errorf("gemini API call: %w", err))
	}

	rawResponse := resp.Text()
	g.logger.Debug("extraction raw response", "content", rawResponse)

	candidate, err := ParseCandidate(rawResponse)
	if err != nil {
		return nil, rules.ExtractionError(fmt.Errorf("parse response: %w", err))
	}
	return candidate, nil
}

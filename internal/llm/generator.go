package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCompletion is returned when the model produced no usable text
	ErrEmptyCompletion = errors.New("model returned no completion")
	// ErrMissingAPIKey is returned when no API key is configured
	ErrMissingAPIKey = errors.New("generation api key is not configured")
)

// Request is a single chat-completion call
type Request struct {
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
}

// Generator produces free text from a prompt
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// NewOpenAIGenerator builds a client from configuration
func NewOpenAIGenerator(cfg config.GenerationConfig, log *logger.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	log.Info("OpenAI generator initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", clientConfig.BaseURL),
	)

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: log,
	}, nil
}

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	g.logger.Debug("Completion received",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return content, nil
}

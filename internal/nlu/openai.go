package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/roach88/semlayer/internal/intent"
)

// OpenAIConfig configures OpenAIExtractor.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // Optional; defaults to the public API
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultModel is used when OpenAIConfig.Model is empty.
const DefaultModel = "gpt-4o-mini"

// OpenAIExtractor extracts intents with an OpenAI chat completion.
type OpenAIExtractor struct {
	client *openai.Client
	cfg    OpenAIConfig
	prompt string
	logger *slog.Logger
}

// NewOpenAIExtractor creates an extractor whose system prompt lists vocab.
func NewOpenAIExtractor(cfg OpenAIConfig, vocab Vocabulary, logger *slog.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	logger.Debug("nlu extractor initialized", "model", cfg.Model)

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		prompt: SystemPrompt(vocab),
		logger: logger,
	}, nil
}

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, question string) (*intent.StructuredIntent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &NoMatchError{Reason: "question is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.prompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: completion has no choices")
	}

	e.logger.Debug("nlu completion",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	in, err := DecodeResponse(question, resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Info("nlu extraction failed", "question", question, "error", err)
		return nil, err
	}
	return in, nil
}

// Package llm wraps the OpenAI chat completion API.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tileboardhq/tileboard/pkg/logger"
)

const maxAttempts = 3

// chatCompleter is the slice of the OpenAI client we call, extracted
// so tests can fake the upstream
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient wraps the OpenAI API client
type OpenAIClient struct {
	client      chatCompleter
	model       string
	temperature float32
	maxTokens   int
	logger      logger.Logger
	backoff     func(attempt int) time.Duration
}

// Config for OpenAI client
type Config struct {
	APIKey      string
	Model       string  // default: gpt-4-turbo-preview
	Temperature float32 // default: 0.7
	MaxTokens   int     // default: 2000
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg Config, log logger.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo-preview"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if log == nil {
		log = logger.Default()
	}

	return &OpenAIClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      log,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Message      string `json:"message"`
	TokensUsed   int    `json:"tokens_used"`
	FinishReason string `json:"finish_reason"`
}

// Chat sends a chat completion request to OpenAI, retrying transient
// failures with exponential backoff before giving up
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		duration := time.Since(start)

		if err != nil {
			lastErr = err
			c.logger.Warn("openai chat attempt failed",
				"attempt", attempt+1,
				"duration", duration.String(),
				"error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no response from openai")
		}

		c.logger.Debug("openai chat completed",
			"tokens", resp.Usage.TotalTokens,
			"duration", duration.String())

		return &ChatResponse{
			Message:      resp.Choices[0].Message.Content,
			TokensUsed:   resp.Usage.TotalTokens,
			FinishReason: string(resp.Choices[0].FinishReason),
		}, nil
	}

	return nil, fmt.Errorf("openai chat failed after %d attempts: %w", maxAttempts, lastErr)
}

// Complete sends a simple completion request (helper for single prompts)
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, systemPrompt ...string) (string, error) {
	messages := []ChatMessage{}

	if len(systemPrompt) > 0 && systemPrompt[0] != "" {
		messages = append(messages, ChatMessage{
			Role:    "system",
			Content: systemPrompt[0],
		})
	}

	messages = append(messages, ChatMessage{
		Role:    "user",
		Content: prompt,
	})

	resp, err := c.Chat(ctx, ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CountTokens estimates the number of tokens in a text.
// Rough estimate, ~4 characters per token.
func (c *OpenAIClient) CountTokens(text string) int {
	return len(text) / 4
}

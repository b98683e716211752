package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tileboardhq/tileboard/pkg/logger"
)

type fakeCompleter struct {
	calls     int
	failUntil int
	reply     string
	tokens    int
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return openai.ChatCompletionResponse{}, errors.New("upstream unavailable")
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}, FinishReason: openai.FinishReasonStop},
		},
		Usage: openai.Usage{TotalTokens: f.tokens},
	}, nil
}

func newTestClient(fake *fakeCompleter) *OpenAIClient {
	return &OpenAIClient{
		client:      fake,
		model:       "gpt-4-turbo-preview",
		temperature: 0.7,
		maxTokens:   2000,
		logger:      logger.Default(),
		backoff:     func(int) time.Duration { return 0 },
	}
}

func TestChat(t *testing.T) {
	fake := &fakeCompleter{reply: "hello", tokens: 42}
	c := newTestClient(fake)

	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, 1, fake.calls)
}

func TestChatRetriesTransientFailures(t *testing.T) {
	fake := &fakeCompleter{failUntil: 2, reply: "eventually", tokens: 10}
	c := newTestClient(fake)

	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp.Message)
	assert.Equal(t, 3, fake.calls)
}

func TestChatGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakeCompleter{failUntil: 10}
	c := newTestClient(fake)

	_, err := c.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, fake.calls)
}

func TestChatStopsOnCanceledContext(t *testing.T) {
	fake := &fakeCompleter{failUntil: 10}
	c := newTestClient(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComplete(t *testing.T) {
	fake := &fakeCompleter{reply: "done"}
	c := newTestClient(fake)

	got, err := c.Complete(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestCountTokens(t *testing.T) {
	c := newTestClient(&fakeCompleter{})
	assert.Equal(t, 3, c.CountTokens("twelve chars"))
}

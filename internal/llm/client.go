// internal/llm/client.go
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"campus-ai-bot/internal/models"
)

// Backend is the capability every chat model variant provides: one
// prompt in, one full response out. Calls are bounded by ctx; a hung
// upstream surfaces as a context error, not a stuck turn.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Registry maps a model variant to its backend.
type Registry map[models.ModelVariant]Backend

const systemPrompt = "Ты — ассистент студентов МИСИС. Отвечай кратко и по делу; " +
	"если вопрос касается учёбы в университете, давай практичные ответы."

// OpenAIBackend talks to the OpenAI chat completion API, or to any
// OpenAI-compatible endpoint when constructed with a base URL.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewGPT4o returns the backend for the flagship model.
func NewGPT4o(apiKey, model string) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewLlama3 returns a backend pointed at an OpenAI-compatible serving
// endpoint for Llama 3.
func NewLlama3(baseURL, apiKey, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   2500,
		Temperature: 0.7,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion API")
	}

	return resp.Choices[0].Message.Content, nil
}

package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/jarvis-gateway/internal/config"
)

// Client is minimal subset of the OpenAI API used by the Provider; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

// ChatStream is the receive side of a streaming completion.
// Recv returns io.EOF once the provider has finished.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

type sdkClient struct {
	*openai.Client
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return sdkClient{openai.NewClientWithConfig(config)}
}

func (c sdkClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	return c.Client.CreateChatCompletionStream(ctx, req)
}

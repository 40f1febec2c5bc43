// Package llm isolates the backing model provider. Callers speak in plain
// role/content messages and get back text; the OpenAI SDK shape stays here.
package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/jarvis-gateway/internal/config"
	"github.com/comigor/jarvis-gateway/internal/logger"
)

// Message is one provider-bound turn.
type Message struct {
	Role    string
	Content string
}

// Result is a successful single-shot completion.
type Result struct {
	Text  string
	Model string // attribution reported by the provider, or the configured model
}

// Fragment is one non-empty piece of streamed text. Model is the attribution
// the provider reported on the stream so far, or the configured model.
type Fragment struct {
	Text  string
	Model string
}

// Params carries optional sampling parameters from the client request.
// Nil fields are left to the provider's defaults.
type Params struct {
	Temperature      *float32
	MaxTokens        *int
	TopP             *float32
	FrequencyPenalty *float32
	PresencePenalty  *float32
	Stop             []string
}

// Provider wraps one fixed backend model.
type Provider struct {
	client    Client
	model     string
	maxTokens int
}

// NewProvider creates a Provider for the configured model.
func NewProvider(client Client, cfg config.LLMConfig) *Provider {
	return &Provider{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Model returns the configured backend model id.
func (p *Provider) Model() string { return p.model }

func (p *Provider) request(msgs []Message, params Params, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(msgs)),
		MaxTokens: p.maxTokens,
		Stop:      params.Stop,
		Stream:    stream,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.Temperature != nil {
		req.Temperature = nonZero(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = nonZero(*params.TopP)
	}
	if params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *params.FrequencyPenalty
	}
	if params.PresencePenalty != nil {
		req.PresencePenalty = *params.PresencePenalty
	}
	return req
}

// nonZero keeps an explicit 0 on the wire; the SDK tags these fields
// omitempty, which would otherwise fall back to the provider default.
func nonZero(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

// Invoke runs a single-shot completion.
func (p *Provider) Invoke(ctx context.Context, msgs []Message, params Params) (Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(msgs, params, false))
	if err != nil {
		logger.L.Error("LLM call failed", "error", err)
		return Result{}, classify("invoke", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, malformed("invoke", errNoChoices)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	logger.L.Debug("LLM response received", "id", resp.ID, "model", model, "finish_reason", resp.Choices[0].FinishReason)
	return Result{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

// Stream runs a streaming completion and yields each non-empty text fragment
// in the order the provider sends them. The sequence ends when the provider
// signals completion. A broken stream yields a final *ProviderError; a
// cancelled ctx yields ctx.Err(). Fragments already yielded stay yielded.
// Breaking out of the loop closes the upstream stream.
func (p *Provider) Stream(ctx context.Context, msgs []Message, params Params) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(msgs, params, true))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(Fragment{}, ctxErr)
				return
			}
			logger.L.Error("LLM stream open failed", "error", err)
			yield(Fragment{}, classify("stream", err))
			return
		}
		defer stream.Close()

		model := p.model
		for {
			if err := ctx.Err(); err != nil {
				yield(Fragment{}, err)
				return
			}
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(Fragment{}, ctxErr)
					return
				}
				logger.L.Error("LLM stream broke", "error", err)
				yield(Fragment{}, classify("stream", err))
				return
			}
			if resp.Model != "" {
				model = resp.Model
			}
			if len(resp.Choices) == 0 {
				continue
			}
			text := resp.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			if !yield(Fragment{Text: text, Model: model}, nil) {
				return
			}
		}
	}
}

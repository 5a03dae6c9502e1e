// Package openai adapts github.com/sashabaranov/go-openai into this
// system's interfaces.ChatModel and interfaces.Embedder contracts. It backs
// both C9's answerer (streaming chat) and C1/C3's embedding calls, and
// points at any OpenAI-compatible endpoint (OpenAI itself, or a
// self-hosted gateway) via a configurable base URL.
package openai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// ChatModel streams chat completions through an OpenAI-compatible API.
type ChatModel struct {
	client *openai.Client
	model  string
}

// NewChatModel builds a ChatModel. baseURL overrides the default OpenAI
// endpoint when pointed at a compatible gateway; pass "" to use OpenAI's.
func NewChatModel(apiKey, baseURL, model string) *ChatModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatModel{client: openai.NewClientWithConfig(cfg), model: model}
}

var _ interfaces.ChatModel = (*ChatModel)(nil)

func (c *ChatModel) GetModelName() string { return c.model }

// ChatStream streams deltas from the chat completions endpoint, translating
// go-openai's stream events into types.StreamResponse frames. The returned
// channel is closed once the stream ends or errors.
func (c *ChatModel) ChatStream(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (<-chan types.StreamResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if opts != nil {
		req.Temperature = float32(opts.Temperature)
		req.TopP = float32(opts.TopP)
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		if opts.ReasoningEffort != "" {
			req.ReasoningEffort = opts.ReasoningEffort
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan types.StreamResponse, 8)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- types.StreamResponse{Done: true}
				return
			}
			if err != nil {
				out <- types.StreamResponse{ResponseType: types.ResponseTypeError, Content: err.Error()}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			out <- types.StreamResponse{ResponseType: types.ResponseTypeAnswer, Content: delta}
		}
	}()
	return out, nil
}

func toOpenAIMessages(messages []interfaces.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

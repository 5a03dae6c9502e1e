// Package ollama adapts github.com/ollama/ollama/api into this system's
// interfaces.ChatModel and interfaces.Embedder, for deployments that run a
// local model server instead of an OpenAI-compatible endpoint (see
// internal/models/openai for that path).
package ollama

import (
	"context"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// ChatModel streams chat completions through a local Ollama server.
type ChatModel struct {
	client *ollamaapi.Client
	model  string
}

// NewChatModel builds a ChatModel against client, which the caller
// constructs via ollamaapi.ClientFromEnvironment or ollamaapi.NewClient so
// the server URL stays a deployment concern, not a library one.
func NewChatModel(client *ollamaapi.Client, model string) *ChatModel {
	return &ChatModel{client: client, model: model}
}

var _ interfaces.ChatModel = (*ChatModel)(nil)

func (c *ChatModel) GetModelName() string { return c.model }

// ChatStream streams deltas from the local model's /api/chat endpoint.
func (c *ChatModel) ChatStream(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (<-chan types.StreamResponse, error) {
	req := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   boolPtr(true),
	}
	if opts != nil {
		req.Options = map[string]interface{}{}
		if opts.Temperature > 0 {
			req.Options["temperature"] = opts.Temperature
		}
		if opts.TopP > 0 {
			req.Options["top_p"] = opts.TopP
		}
		if opts.MaxTokens > 0 {
			req.Options["num_predict"] = opts.MaxTokens
		}
	}

	out := make(chan types.StreamResponse, 8)
	go func() {
		defer close(out)
		err := c.client.Chat(ctx, req, func(resp ollamaapi.ChatResponse) error {
			if resp.Message.Content != "" {
				out <- types.StreamResponse{ResponseType: types.ResponseTypeAnswer, Content: resp.Message.Content}
			}
			if resp.Done {
				out <- types.StreamResponse{Done: true}
			}
			return nil
		})
		if err != nil {
			out <- types.StreamResponse{ResponseType: types.ResponseTypeError, Content: err.Error()}
		}
	}()
	return out, nil
}

func toOllamaMessages(messages []interfaces.Message) []ollamaapi.Message {
	out := make([]ollamaapi.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollamaapi.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

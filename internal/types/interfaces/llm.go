package interfaces

import (
	"context"

	"github.com/dfroberg/coursepilot/internal/types"
)

// ChatOptions carries the sampling knobs the provider adapters accept. This
// system only sets ReasoningEffort to "minimal", but keeps the wider field
// set so both the OpenAI and Ollama adapters compile against one shape.
type ChatOptions struct {
	Temperature      float64
	TopP             float64
	MaxTokens        int
	ReasoningEffort  string
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatModel is the streaming chat-completion collaborator: system
// instructions, a single user input, and delta events carrying partial
// answer text as they arrive.
type ChatModel interface {
	ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan types.StreamResponse, error)
	GetModelName() string
}

// Embedder is the embedding collaborator: "an embedding endpoint returning a
// float vector."
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	GetModelName() string
	GetDimensions() int
}

// IntentPredictor classifies a raw, embedded query into one of
// {general, summarize, overview, unknown}. It is treated as an
// externally-provided predictor — a small injectable collaborator so tests
// can supply a deterministic stub.
type IntentPredictor interface {
	Predict(ctx context.Context, query string, embedding []float32) (types.Intent, error)
}

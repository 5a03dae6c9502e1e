package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// Embedder embeds text through an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbedder builds an Embedder. dimensions is reported via GetDimensions
// for callers that size vector storage ahead of the first call.
func NewEmbedder(apiKey, baseURL, model string, dimensions int) *Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Embedder{client: openai.NewClientWithConfig(cfg), model: model, dimensions: dimensions}
}

var _ interfaces.Embedder = (*Embedder)(nil)

func (e *Embedder) GetModelName() string { return e.model }
func (e *Embedder) GetDimensions() int   { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

package ollama

import (
	"context"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// Embedder embeds text through a local Ollama server's /api/embed endpoint.
type Embedder struct {
	client     *ollamaapi.Client
	model      string
	dimensions int
}

func NewEmbedder(client *ollamaapi.Client, model string, dimensions int) *Embedder {
	return &Embedder{client: client, model: model, dimensions: dimensions}
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
	resp, err := e.client.Embed(ctx, &ollamaapi.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		out[i] = v
	}
	return out, nil
}

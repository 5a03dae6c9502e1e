package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
)

// fakeEmbedder assigns each exemplar phrase a fixed vector by simple keyword
// match so the centroid math is exercised without a real embedding service.
type fakeEmbedder struct{}

func (fakeEmbedder) GetModelName() string { return "fake" }
func (fakeEmbedder) GetDimensions() int   { return 3 }

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vs, _ := fakeEmbedder{}.BatchEmbed(nil, []string{text})
	return vs[0], nil
}

func (fakeEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch {
		case contains(t, "summar") || contains(t, "tldr"):
			out[i] = []float32{1, 0, 0}
		case contains(t, "overview") || contains(t, "covered") || contains(t, "week"):
			out[i] = []float32{0, 1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestCentroidPredictor_ClassifiesByNearestExemplar(t *testing.T) {
	p, err := NewCentroidPredictor(context.Background(), fakeEmbedder{}, 0)
	require.NoError(t, err)

	intent, err := p.Predict(context.Background(), "summarize this thread", []float32{1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, types.IntentSummarize, intent)

	intent, err = p.Predict(context.Background(), "when is office hours", []float32{0, 0, 1})
	require.NoError(t, err)
	require.Equal(t, types.IntentGeneral, intent)
}

func TestCentroidPredictor_FloorFallsBackToUnknown(t *testing.T) {
	p, err := NewCentroidPredictor(context.Background(), fakeEmbedder{}, 0.99)
	require.NoError(t, err)

	intent, err := p.Predict(context.Background(), "what has this course covered", []float32{0, 1, 0})
	require.NoError(t, err)
	require.Equal(t, types.IntentUnknown, intent)
}

package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
)

func TestNormalize_RewritesMidtermShorthand(t *testing.T) {
	assert.Equal(t, "When is midterm 2 due?", Normalize("When is mt2 due?"))
	assert.Equal(t, "When is midterm 1 due?", Normalize("When is MT 1 due?"))
}

func TestNormalize_RewritesPsetShorthand(t *testing.T) {
	assert.Equal(t, "Help with problem set 4 please", Normalize("Help with pset4 please"))
	assert.Equal(t, "Help with problem set 12 please", Normalize("Help with PSET 12 please"))
}

func TestNormalize_LeavesUnrelatedTextUntouched(t *testing.T) {
	assert.Equal(t, "What time is office hours?", Normalize("What time is office hours?"))
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (f *fakeEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) GetModelName() string { return "fake" }
func (f *fakeEmbedder) GetDimensions() int   { return 2 }

type fakePredictor struct{ intent types.Intent }

func (f *fakePredictor) Predict(ctx context.Context, query string, embedding []float32) (types.Intent, error) {
	return f.intent, nil
}

func TestRoute_EmbedsAndClassifies(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakePredictor{intent: types.IntentSummarize})
	result, err := r.Route(context.Background(), "catch me up")
	require.NoError(t, err)
	assert.Equal(t, types.IntentSummarize, result.Intent)
	assert.Equal(t, []float32{0.1, 0.2}, result.Embedding)
}

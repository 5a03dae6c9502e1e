package intent

import (
	"context"
	"math"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// exemplars seed the centroid each intent is classified against. The
// original system's predictor is an opaque external layer (no algorithm to
// ground this on); CentroidPredictor is a deterministic stand-in documented
// as an open-question decision.
var exemplars = map[types.Intent][]string{
	types.IntentSummarize: {
		"summarize the discussion on this post",
		"give me a tldr of this thread",
		"what's the summary of the replies here",
	},
	types.IntentOverview: {
		"what has this course covered so far",
		"give me an overview of the class topics",
		"summarize everything posted this week",
	},
	types.IntentGeneral: {
		"when is the midterm",
		"how do I submit problem set 3",
		"what office hours are available this week",
	},
}

// CentroidPredictor classifies a query embedding by cosine similarity to the
// mean embedding of each intent's exemplar phrases, computed once at
// construction time.
type CentroidPredictor struct {
	centroids map[types.Intent][]float32
	floor     float64
}

// NewCentroidPredictor builds a CentroidPredictor. embedder computes the
// exemplar centroids; floor is the minimum cosine similarity required to
// pick a labeled intent over types.IntentUnknown (0.15 is a permissive
// default since exemplar coverage is thin).
func NewCentroidPredictor(ctx context.Context, embedder interfaces.Embedder, floor float64) (*CentroidPredictor, error) {
	if floor <= 0 {
		floor = 0.15
	}
	centroids := make(map[types.Intent][]float32, len(exemplars))
	for intent, phrases := range exemplars {
		vectors, err := embedder.BatchEmbed(ctx, phrases)
		if err != nil {
			return nil, err
		}
		centroids[intent] = mean(vectors)
	}
	return &CentroidPredictor{centroids: centroids, floor: floor}, nil
}

var _ interfaces.IntentPredictor = (*CentroidPredictor)(nil)

func (p *CentroidPredictor) Predict(_ context.Context, _ string, embedding []float32) (types.Intent, error) {
	best := types.IntentUnknown
	bestScore := p.floor
	for intent, centroid := range p.centroids {
		score := cosine(embedding, centroid)
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}
	return best, nil
}

func mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

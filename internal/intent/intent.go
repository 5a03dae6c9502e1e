// Package intent implements C7: embedding and classifying a raw student
// query, and normalizing course-specific shorthand before it reaches
// retrieval.
package intent

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

var (
	midtermPattern = regexp.MustCompile(`(?i)\bmt\s*([1-3])\b`)
	psetPattern    = regexp.MustCompile(`(?i)\bpset\s*([1-9]|1[0-2])\b`)
)

// Normalize rewrites course shorthand ("mt2", "pset 4") into the spelled-out
// form the embedder and LLM were trained to expect.
func Normalize(query string) string {
	q := midtermPattern.ReplaceAllString(query, "midterm $1")
	q = psetPattern.ReplaceAllString(q, "problem set $1")
	return q
}

// Router embeds and classifies a query. Normalize is expected to run before
// Route (the caller controls whether the raw or normalized query is what
// gets embedded; embedding uses the raw query, with normalization applied
// separately).
type Router struct {
	embedder  interfaces.Embedder
	predictor interfaces.IntentPredictor
}

// New builds a Router.
func New(embedder interfaces.Embedder, predictor interfaces.IntentPredictor) *Router {
	return &Router{embedder: embedder, predictor: predictor}
}

// Result is the outcome of routing one query.
type Result struct {
	Embedding []float32
	Intent    types.Intent
}

// Route embeds rawQuery and classifies it into {general, summarize,
// overview, unknown}.
func (r *Router) Route(ctx context.Context, rawQuery string) (Result, error) {
	embedding, err := r.embedder.Embed(ctx, rawQuery)
	if err != nil {
		return Result{}, fmt.Errorf("intent: embed query: %w", err)
	}
	classified, err := r.predictor.Predict(ctx, rawQuery, embedding)
	if err != nil {
		return Result{}, fmt.Errorf("intent: predict: %w", err)
	}
	return Result{Embedding: embedding, Intent: classified}, nil
}

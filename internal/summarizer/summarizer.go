// Package summarizer implements C6: scanning for posts whose major-update
// timestamp has outrun their summary, and refreshing each with a bounded
// worker pool.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/dfroberg/coursepilot/internal/common"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const (
	postsTable = "posts"
	diffsTable = "diffs"
)

// Summarizer refreshes stale post summaries via a bounded concurrent pool.
type Summarizer struct {
	kv         interfaces.KVStore
	chat       interfaces.ChatModel
	poolSize   int
	staleAfter time.Duration
	now        func() time.Time
}

// New builds a Summarizer. poolSize is the max concurrent post summaries
// in flight (default: 10); staleAfter is the fresh-start gap threshold
// (default: 2 days).
func New(kv interfaces.KVStore, chat interfaces.ChatModel, poolSize int, staleAfter time.Duration) *Summarizer {
	if poolSize <= 0 {
		poolSize = 10
	}
	if staleAfter <= 0 {
		staleAfter = 48 * time.Hour
	}
	return &Summarizer{kv: kv, chat: chat, poolSize: poolSize, staleAfter: staleAfter, now: time.Now}
}

// Run scans every post table partition for items needing a refreshed
// summary and processes them concurrently. A single post's failure is
// reported and does not block the others.
func (s *Summarizer) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "summarizer", "run")
	defer span.End()

	posts, err := s.findStalePosts(ctx)
	if err != nil {
		return fmt.Errorf("summarizer: scan posts: %w", err)
	}
	if len(posts) == 0 {
		common.PipelineInfo(ctx, "summarizer", "no_posts_to_summarize", nil)
		return nil
	}
	common.PipelineInfo(ctx, "summarizer", "found_posts", map[string]interface{}{"count": len(posts)})

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return fmt.Errorf("summarizer: create pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, p := range posts {
		p := p
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := s.summarizePost(ctx, p); err != nil {
				common.PipelineWarn(ctx, "summarizer", "summarize_post_failed", map[string]interface{}{
					"course_id": p.CourseID, "post_id": p.PostID, "error": err.Error(),
				})
			}
		})
		if submitErr != nil {
			wg.Done()
			common.PipelineWarn(ctx, "summarizer", "submit_failed", map[string]interface{}{"error": submitErr.Error()})
		}
	}
	wg.Wait()
	return nil
}

func (s *Summarizer) findStalePosts(ctx context.Context) ([]types.Post, error) {
	var stale []types.Post
	page := interfaces.Page{}
	for {
		rows, next, err := s.kv.Scan(ctx, postsTable, page, 200)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var p types.Post
			if err := decodeInto(row, &p); err != nil {
				continue
			}
			if p.SummaryLastUpdated.Before(types.EpochSentinel) || p.LastMajorUpdate.After(p.SummaryLastUpdated) {
				stale = append(stale, p)
			}
		}
		if next.Token == "" {
			break
		}
		page = next
	}
	return stale, nil
}

// summarizePost loads a post's new diffs, prompts the model for an updated
// summary, and persists it.
func (s *Summarizer) summarizePost(ctx context.Context, p types.Post) error {
	diffs, err := s.loadNewDiffs(ctx, p)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		return nil
	}

	prompt := s.buildPrompt(p, diffs)
	summary, err := s.callModel(ctx, prompt)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	p.CurrentSummary = summary
	p.SummaryLastUpdated = now
	p.NeedsNewSummary = false
	return s.kv.Put(ctx, postsTable, p.CourseID, p.PostID, p)
}

func (s *Summarizer) loadNewDiffs(ctx context.Context, p types.Post) ([]types.Diff, error) {
	partition := p.CourseID + "#" + p.PostID
	cutoff := p.SummaryLastUpdated
	if cutoff.IsZero() {
		cutoff = types.EpochSentinel
	}
	predicate := &interfaces.SortKeyPredicate{GreaterThan: cutoff.UTC().Format(time.RFC3339Nano)}

	var diffs []types.Diff
	page := interfaces.Page{}
	for {
		rows, next, err := s.kv.Query(ctx, diffsTable, partition, predicate, page, 200)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var d types.Diff
			if err := decodeInto(row, &d); err != nil {
				continue
			}
			diffs = append(diffs, d)
		}
		if next.Token == "" {
			break
		}
		page = next
	}
	return diffs, nil
}

// buildPrompt chooses between the running-log-update and fresh-summary
// strategies, including the never-summarized special case.
func (s *Summarizer) buildPrompt(p types.Post, diffs []types.Diff) string {
	eventsText := formatDiffs(diffs)
	neverSummarized := !p.SummaryLastUpdated.After(types.EpochSentinel)

	freshStart := !neverSummarized && (p.NeedsNewSummary || s.now().UTC().Sub(p.SummaryLastUpdated) > s.staleAfter)

	if freshStart {
		return fmt.Sprintf(
			"Post Title: %s\nContent & Updates:\n%s\n\nTask: Create a concise summary of this post.",
			p.Title, eventsText,
		)
	}

	current := p.CurrentSummary
	if current == "" {
		current = "No summary available."
	}
	return fmt.Sprintf(
		"Current Summary: %s\n\nNew Updates to Post:\n%s\n\nTask: Update the Current Summary to reflect the New Updates.",
		current, eventsText,
	)
}

func formatDiffs(diffs []types.Diff) string {
	var out string
	for _, d := range diffs {
		out += fmt.Sprintf("[%s] %s\n", d.Timestamp.UTC().Format(time.RFC3339), d.Type)
		if d.Subject != "" {
			out += "Subject: " + d.Subject + "\n"
		}
		if d.Content != "" {
			content := d.Content
			if len(content) > 500 {
				content = content[:500]
			}
			out += "Content: " + content + "...\n"
		}
		out += "\n"
	}
	return out
}

const summarySystemPrompt = "You are a backend summarization engine for a technical course forum. " +
	"Your output is for a 'Catch Me Up' dashboard. The user should know what's been happening on the forum.\n" +
	"RULES:\n" +
	"1. ATTRIBUTED BREVITY: Always identify the source of key info (e.g., 'Instructor confirmed...', 'Student reported issue with...').\n" +
	"2. IF RESOLVED: State the solution clearly.\n" +
	"3. IF UNRESOLVED: Summarize the core question; note that it is unresolved.\n" +
	"4. FORMATTING: Max 2 sentences. No bullet points."

func (s *Summarizer) callModel(ctx context.Context, prompt string) (string, error) {
	stream, err := s.chat.ChatStream(ctx, []interfaces.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: prompt},
	}, &interfaces.ChatOptions{ReasoningEffort: "minimal"})
	if err != nil {
		return "", err
	}

	var out string
	for chunk := range stream {
		if chunk.ResponseType == types.ResponseTypeError {
			return "", fmt.Errorf("summarizer: model stream error: %s", chunk.Content)
		}
		out += chunk.Content
	}
	return out, nil
}

// decodeInto round-trips a KV row (a generic map) back into a typed struct.
func decodeInto(row map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

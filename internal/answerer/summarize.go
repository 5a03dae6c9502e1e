package answerer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/dfroberg/coursepilot/internal/common"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const postsTable = "posts"

const recentSummaryDays = 2

const noUpdatesChunkSize = 5

const digestSystemPrompt = `You are a helpful assistant that creates high-level digests of forum activity.

When given post summaries, create a brief overview that tells the user WHAT topics are being discussed, not the detailed content. Your goal is to help them decide what to read, not replace reading the posts.

Format your digest using markdown with this structure:

## Topic Category (number of posts)

Brief 1-2 sentence description of activity.

Guidelines:
- Keep it concise - aim for 3-7 topic sections total
- Group related posts together under one topic
- Highlight when instructors/TAs provided important responses
- Use proper markdown formatting (##, **, etc.)
- Be specific about what's being discussed, not generic`

type recentSummary struct {
	courseID string
	postID   string
	title    string
	summary  string
	updated  time.Time
}

// runSummarize is the summarize-intent handler: a "catch me up" digest of
// posts summarized within the last recentSummaryDays days.
func (a *Answerer) runSummarize(
	ctx context.Context, req Request, normalizedQuery string, embedding []float32,
	out chan<- types.AnswerEvent, sq *types.StudentQuery,
) {
	sq.SummaryDays = recentSummaryDays
	out <- types.AnswerEvent{Type: types.AnswerEventStart, Message: "Start streaming"}

	summaries, err := a.loadRecentSummaries(ctx, req.CourseID, recentSummaryDays)
	if err != nil {
		common.PipelineWarn(ctx, "answerer", "load_summaries_failed", map[string]interface{}{"course_id": req.CourseID, "error": err.Error()})
		out <- types.AnswerEvent{Type: types.AnswerEventChunk, Message: errorChunkMessage}
		out <- types.AnswerEvent{Type: types.AnswerEventDone}
		return
	}
	sq.NumSummariesProcessed = len(summaries)

	if len(summaries) == 0 {
		message := fmt.Sprintf("You're all caught up! There have been no updates in the last %d days.", recentSummaryDays)
		streamChunked(out, message)
		out <- types.AnswerEvent{Type: types.AnswerEventDone}
		return
	}

	prompt := fmt.Sprintf(
		"Here are summaries of %d forum posts from the last %d days:\n\n%s\n\n"+
			"Create a brief digest that tells the user what topics are being discussed and where there's activity. "+
			"Don't include all the details - just help them know what's happening and what might need their attention.",
		len(summaries), recentSummaryDays, formatSummariesForLLM(summaries),
	)

	stream, err := a.chat.ChatStream(ctx, []interfaces.Message{
		{Role: "system", Content: digestSystemPrompt},
		{Role: "user", Content: prompt},
	}, &interfaces.ChatOptions{ReasoningEffort: "minimal"})
	if err != nil {
		common.PipelineWarn(ctx, "answerer", "digest_stream_failed", map[string]interface{}{"course_id": req.CourseID, "error": err.Error()})
		out <- types.AnswerEvent{Type: types.AnswerEventChunk, Message: errorChunkMessage}
		out <- types.AnswerEvent{Type: types.AnswerEventDone}
		return
	}
	for chunk := range stream {
		if chunk.ResponseType == types.ResponseTypeError {
			out <- types.AnswerEvent{Type: types.AnswerEventChunk, Message: errorChunkMessage}
			break
		}
		if chunk.Content != "" {
			out <- types.AnswerEvent{Type: types.AnswerEventChunk, Message: chunk.Content}
		}
	}
	out <- types.AnswerEvent{Type: types.AnswerEventDone}
}

// loadRecentSummaries lists the course's posts (the posts table partitions
// on course_id, so this is a plain partition query, not a table scan),
// keeps only those with a non-empty summary updated within the last `days`
// days, and flips needs_new_summary on for any not already flagged so the
// summarizer takes a fresh-start view next time this course is asked.
func (a *Answerer) loadRecentSummaries(ctx context.Context, courseID string, days int) ([]recentSummary, error) {
	cutoff := a.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	var recent []recentSummary
	page := interfaces.Page{}
	for {
		rows, next, err := a.kv.Query(ctx, postsTable, courseID, nil, page, 200)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var p types.Post
			if err := decodeRow(row, &p); err != nil {
				continue
			}
			if p.CurrentSummary == "" || !p.SummaryLastUpdated.After(cutoff) {
				continue
			}
			recent = append(recent, recentSummary{
				courseID: p.CourseID, postID: p.PostID, title: p.Title,
				summary: p.CurrentSummary, updated: p.SummaryLastUpdated,
			})
			if !p.NeedsNewSummary {
				p.NeedsNewSummary = true
				if err := a.kv.Put(ctx, postsTable, p.CourseID, p.PostID, p); err != nil {
					common.PipelineWarn(ctx, "answerer", "flag_needs_new_summary_failed", map[string]interface{}{
						"course_id": p.CourseID, "post_id": p.PostID, "error": err.Error(),
					})
				}
			}
		}
		if next.Token == "" {
			break
		}
		page = next
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].updated.After(recent[j].updated) })
	return recent, nil
}

func formatSummariesForLLM(summaries []recentSummary) string {
	var lines []string
	for i, s := range summaries {
		title := s.title
		if title == "" {
			title = "Untitled Post"
		}
		lines = append(lines, fmt.Sprintf("%d. **%s**", i+1, title), "   "+s.summary, "")
	}
	return strings.Join(lines, "\n")
}

// streamChunked emits message in fixed-size chunks with a short random delay
// between each, matching the original UX pacing for the literal
// "you're all caught up" response.
func streamChunked(out chan<- types.AnswerEvent, message string) {
	for i := 0; i < len(message); i += noUpdatesChunkSize {
		end := i + noUpdatesChunkSize
		if end > len(message) {
			end = len(message)
		}
		time.Sleep(time.Duration(5+rand.Intn(26)) * time.Millisecond)
		out <- types.AnswerEvent{Type: types.AnswerEventChunk, Message: message[i:end]}
	}
}

func decodeRow(row map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

package answerer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
)

func TestRunSummarize_NoRecentSummaries_StreamsLiteralMessage(t *testing.T) {
	kv := newFakeKV()
	a := newTestAnswerer(kv, &fakeVector{}, &fakeChat{}, types.IntentSummarize)
	a.now = func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

	events := collect(a.Answer(context.Background(), Request{CourseID: "cs101", QueryID: "q1", RawQuery: "catch me up"}))

	var body string
	for _, e := range events {
		if e.Type == types.AnswerEventChunk {
			body += e.Message
		}
	}
	assert.Equal(t, "You're all caught up! There have been no updates in the last 2 days.", body)
	assert.Equal(t, types.AnswerEventDone, events[len(events)-1].Type)
}

func TestRunSummarize_FlagsNeedsNewSummaryOnUnflaggedPosts(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	kv.putPost(types.Post{
		CourseID: "cs101", PostID: "p1", Title: "Midterm logistics",
		CurrentSummary: "Midterm is Friday.", SummaryLastUpdated: now.Add(-1 * time.Hour),
		NeedsNewSummary: false,
	})

	chat := &fakeChat{responses: [][]types.StreamResponse{{{ResponseType: types.ResponseTypeAnswer, Content: "## Midterm\n\nIt's Friday."}}}}
	a := newTestAnswerer(kv, &fakeVector{}, chat, types.IntentSummarize)
	a.now = func() time.Time { return now }

	collect(a.Answer(context.Background(), Request{CourseID: "cs101", QueryID: "q1", RawQuery: "catch me up"}))

	require.Len(t, kv.postRows["cs101"], 1)
	flagged, _ := kv.postRows["cs101"][0]["NeedsNewSummary"].(bool)
	assert.True(t, flagged)
}

func TestRunSummarize_SkipsPostsOutsideWindow(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	kv.putPost(types.Post{
		CourseID: "cs101", PostID: "old", Title: "Old post",
		CurrentSummary: "stale", SummaryLastUpdated: now.Add(-10 * 24 * time.Hour),
	})
	a := newTestAnswerer(kv, &fakeVector{}, &fakeChat{}, types.IntentSummarize)
	a.now = func() time.Time { return now }

	events := collect(a.Answer(context.Background(), Request{CourseID: "cs101", QueryID: "q1", RawQuery: "catch me up"}))

	var sawLiteral bool
	for _, e := range events {
		if e.Type == types.AnswerEventChunk && e.Message != "" {
			sawLiteral = true
		}
	}
	assert.True(t, sawLiteral)
}

func TestRunSummarize_StreamsDigestVerbatim(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	kv.putPost(types.Post{
		CourseID: "cs101", PostID: "p1", Title: "Midterm logistics",
		CurrentSummary: "Midterm is Friday.", SummaryLastUpdated: now.Add(-1 * time.Hour),
	})
	chat := &fakeChat{responses: [][]types.StreamResponse{{
		{ResponseType: types.ResponseTypeAnswer, Content: "## Midterm\n\n"},
		{ResponseType: types.ResponseTypeAnswer, Content: "It's Friday."},
	}}}
	a := newTestAnswerer(kv, &fakeVector{}, chat, types.IntentSummarize)
	a.now = func() time.Time { return now }

	events := collect(a.Answer(context.Background(), Request{CourseID: "cs101", QueryID: "q1", RawQuery: "catch me up"}))

	var body string
	for _, e := range events {
		if e.Type == types.AnswerEventChunk {
			body += e.Message
		}
	}
	assert.Equal(t, "## Midterm\n\nIt's Friday.", body)
}

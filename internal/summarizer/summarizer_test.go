package summarizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

type fakeKV struct {
	posts map[string]types.Post
	diffs map[string][]types.Diff
	puts  []types.Post
}

func newFakeKV() *fakeKV {
	return &fakeKV{posts: map[string]types.Post{}, diffs: map[string][]types.Diff{}}
}

func (f *fakeKV) Get(ctx context.Context, table, partitionKey, sortKey string, out interface{}) (bool, error) {
	return false, nil
}

func (f *fakeKV) BatchGet(ctx context.Context, table string, keys [][2]string) (map[string]map[string]interface{}, error) {
	return nil, nil
}

func (f *fakeKV) Put(ctx context.Context, table, partitionKey, sortKey string, item interface{}) error {
	if table == postsTable {
		p := item.(types.Post)
		f.posts[partitionKey+"#"+sortKey] = p
		f.puts = append(f.puts, p)
	}
	return nil
}

func (f *fakeKV) ConditionalUpdate(ctx context.Context, table, partitionKey, sortKey string, updates map[string]interface{}, condition func(map[string]interface{}) bool) error {
	return nil
}

func (f *fakeKV) BatchPut(ctx context.Context, table string, items []interfaces.KVItem) error {
	return nil
}

func (f *fakeKV) BatchDelete(ctx context.Context, table string, keys [][2]string) error { return nil }

func (f *fakeKV) Query(ctx context.Context, table, partitionKey string, sp *interfaces.SortKeyPredicate, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	if table != diffsTable {
		return nil, interfaces.Page{}, nil
	}
	var out []map[string]interface{}
	for _, d := range f.diffs[partitionKey] {
		sortKey := d.SortKey()
		if sp != nil && sp.GreaterThan != "" && sortKey <= sp.GreaterThan {
			continue
		}
		out = append(out, map[string]interface{}{
			"CourseID": d.CourseID, "PostID": d.PostID, "Timestamp": d.Timestamp,
			"Seq": d.Seq, "Type": d.Type, "Subject": d.Subject, "Content": d.Content,
		})
	}
	return out, interfaces.Page{}, nil
}

func (f *fakeKV) QueryIndex(ctx context.Context, table, index, partitionKey string, sp *interfaces.SortKeyPredicate, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	return f.Query(ctx, table, partitionKey, sp, page, limit)
}

func (f *fakeKV) Scan(ctx context.Context, table string, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	if table != postsTable {
		return nil, interfaces.Page{}, nil
	}
	var out []map[string]interface{}
	for _, p := range f.posts {
		out = append(out, map[string]interface{}{
			"CourseID": p.CourseID, "PostID": p.PostID, "PostNumber": p.PostNumber, "Title": p.Title,
			"Created": p.Created, "IsAnnouncement": p.IsAnnouncement, "CurrentSummary": p.CurrentSummary,
			"SummaryLastUpdated": p.SummaryLastUpdated, "LastUpdated": p.LastUpdated,
			"LastMajorUpdate": p.LastMajorUpdate, "NumChanges": p.NumChanges, "NeedsNewSummary": p.NeedsNewSummary,
		})
	}
	return out, interfaces.Page{}, nil
}

type fakeChat struct {
	reply string
}

func (f *fakeChat) ChatStream(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (<-chan types.StreamResponse, error) {
	ch := make(chan types.StreamResponse, 1)
	ch <- types.StreamResponse{ResponseType: types.ResponseTypeAnswer, Content: f.reply}
	close(ch)
	return ch, nil
}

func (f *fakeChat) GetModelName() string { return "fake" }

func seedPost(kv *fakeKV, courseID, postID string, summaryLastUpdated, lastMajorUpdate time.Time, needsNew bool, currentSummary string) {
	kv.posts[courseID+"#"+postID] = types.Post{
		CourseID: courseID, PostID: postID, Title: "When is the midterm?",
		SummaryLastUpdated: summaryLastUpdated, LastMajorUpdate: lastMajorUpdate,
		NeedsNewSummary: needsNew, CurrentSummary: currentSummary,
	}
}

func seedDiff(kv *fakeKV, courseID, postID string, ts time.Time, diffType types.DiffType) {
	seedDiffWithContent(kv, courseID, postID, ts, diffType, "It is on Friday.")
}

func seedDiffWithContent(kv *fakeKV, courseID, postID string, ts time.Time, diffType types.DiffType, content string) {
	partition := courseID + "#" + postID
	kv.diffs[partition] = append(kv.diffs[partition], types.Diff{
		CourseID: courseID, PostID: postID, Timestamp: ts, Seq: len(kv.diffs[partition]),
		Type: diffType, Subject: "Midterm date", Content: content,
	})
}

func TestRun_NoOpWhenNoPostsStale(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	seedPost(kv, "cs101", "p1", now, now.Add(-time.Hour), false, "Already summarized.")

	chat := &fakeChat{reply: "should not be called"}
	s := New(kv, chat, 4, 48*time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, kv.puts, "no diffs newer than summary means no post is rewritten")
}

func TestRun_RunningLogStrategyByDefault(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	lastSummary := now.Add(-time.Hour)
	seedPost(kv, "cs101", "p1", lastSummary, now, false, "Prior summary text.")
	seedDiff(kv, "cs101", "p1", now.Add(-30*time.Minute), types.DiffStudentAnswer)

	chat := &fakeChat{reply: "Updated summary."}
	s := New(kv, chat, 4, 48*time.Hour)
	s.now = func() time.Time { return now }

	prompt := s.buildPrompt(kv.posts["cs101#p1"], kv.diffs["cs101#p1"])
	assert.Contains(t, prompt, "Update the Current Summary")

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, kv.puts, 1)
	assert.Equal(t, "Updated summary.", kv.puts[0].CurrentSummary)
	assert.False(t, kv.puts[0].NeedsNewSummary)
}

func TestBuildPrompt_RunningLogWhenNeverSummarized(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, &fakeChat{}, 4, 48*time.Hour)
	s.now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }

	p := types.Post{Title: "When is the midterm?", SummaryLastUpdated: types.EpochSentinel}
	diffs := []types.Diff{{Timestamp: s.now(), Type: types.DiffNewQuestion, Subject: "Midterm date", Content: "Friday."}}

	prompt := s.buildPrompt(p, diffs)
	assert.Contains(t, prompt, "Current Summary: No summary available.")
}

func TestBuildPrompt_FreshStartWhenNeedsNewSummaryFlagSet(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, &fakeChat{}, 4, 48*time.Hour)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	p := types.Post{
		Title: "When is the midterm?", CurrentSummary: "Old.",
		SummaryLastUpdated: now.Add(-time.Hour), NeedsNewSummary: true,
	}
	diffs := []types.Diff{{Timestamp: now, Type: types.DiffQuestionUpdate, Content: "Changed."}}

	prompt := s.buildPrompt(p, diffs)
	assert.Contains(t, prompt, "Create a concise summary")
}

func TestBuildPrompt_FreshStartWhenStalenessExceeded(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, &fakeChat{}, 4, 48*time.Hour)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	p := types.Post{
		Title: "When is the midterm?", CurrentSummary: "Old.",
		SummaryLastUpdated: now.Add(-72 * time.Hour),
	}
	diffs := []types.Diff{{Timestamp: now, Type: types.DiffQuestionUpdate, Content: "Changed."}}

	prompt := s.buildPrompt(p, diffs)
	assert.Contains(t, prompt, "Create a concise summary")
}

func TestRun_PerPostFailureIsolation(t *testing.T) {
	kv := newFakeKV()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	seedPost(kv, "cs101", "bad", now.Add(-time.Hour), now, false, "")
	seedPost(kv, "cs101", "good", now.Add(-time.Hour), now, false, "")
	seedDiffWithContent(kv, "cs101", "bad", now.Add(-30*time.Minute), types.DiffStudentAnswer, "explosive content marker")
	seedDiff(kv, "cs101", "good", now.Add(-30*time.Minute), types.DiffStudentAnswer)

	chat := &failOnceChat{failFor: "explosive content marker"}
	s := New(kv, chat, 4, 48*time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Run(context.Background()))

	good, ok := kv.posts["cs101#good"]
	require.True(t, ok)
	assert.Equal(t, "summarized", good.CurrentSummary)
}

type failOnceChat struct{ failFor string }

func (f *failOnceChat) ChatStream(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (<-chan types.StreamResponse, error) {
	ch := make(chan types.StreamResponse, 1)
	failing := false
	for _, m := range messages {
		if m.Role == "user" && containsSubstr(m.Content, f.failFor) {
			failing = true
		}
	}
	if failing {
		ch <- types.StreamResponse{ResponseType: types.ResponseTypeError, Content: "boom"}
	} else {
		ch <- types.StreamResponse{ResponseType: types.ResponseTypeAnswer, Content: "summarized"}
	}
	close(ch)
	return ch, nil
}

func (f *failOnceChat) GetModelName() string { return "fake" }

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return []float32{0.1}, nil }
func (f *fakeEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) GetModelName() string { return "fake-embed" }
func (f *fakeEmbedder) GetDimensions() int   { return 1 }

type fakeVector struct {
	hits []interfaces.VectorHit
}

func (f *fakeVector) UpsertRecords(ctx context.Context, namespace string, records []interfaces.VectorRecord) error {
	return nil
}
func (f *fakeVector) Search(ctx context.Context, namespace string, topK int, classID string, q []float32) ([]interfaces.VectorHit, error) {
	if topK >= len(f.hits) {
		return f.hits, nil
	}
	return f.hits[:topK], nil
}

type sentEmail struct{ to, subject, text, html string }

type fakeEmail struct {
	sent []sentEmail
	fail map[string]bool // chunk substring in body -> force failure
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	for substr := range f.fail {
		if substr != "" && contains(textBody, substr) {
			return assert.AnError
		}
	}
	f.sent = append(f.sent, sentEmail{to, subject, textBody, htmlBody})
	return nil
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

type fakeKV struct {
	rows map[string]map[string]map[string]interface{} // table -> partitionKey -> sortKey -> row
}

func newFakeKV() *fakeKV {
	return &fakeKV{rows: map[string]map[string]map[string]interface{}{}}
}

func toRow(v interface{}) map[string]interface{} {
	b, _ := json.Marshal(v)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}

func (f *fakeKV) Get(ctx context.Context, table, partitionKey, sortKey string, out interface{}) (bool, error) {
	row, ok := f.rows[table][partitionKey][sortKey]
	if !ok {
		return false, nil
	}
	b, _ := json.Marshal(row)
	return true, json.Unmarshal(b, out)
}

func (f *fakeKV) BatchGet(ctx context.Context, table string, keys [][2]string) (map[string]map[string]interface{}, error) {
	return nil, nil
}

func (f *fakeKV) Put(ctx context.Context, table, partitionKey, sortKey string, item interface{}) error {
	if f.rows[table] == nil {
		f.rows[table] = map[string]map[string]interface{}{}
	}
	if f.rows[table][partitionKey] == nil {
		f.rows[table][partitionKey] = map[string]map[string]interface{}{}
	}
	f.rows[table][partitionKey][sortKey] = toRow(item)
	return nil
}

func (f *fakeKV) ConditionalUpdate(ctx context.Context, table, partitionKey, sortKey string, updates map[string]interface{}, condition func(map[string]interface{}) bool) error {
	return nil
}

func (f *fakeKV) BatchPut(ctx context.Context, table string, items []interfaces.KVItem) error {
	for _, item := range items {
		if err := f.Put(ctx, table, item.PartitionKey, item.SortKey, item.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeKV) BatchDelete(ctx context.Context, table string, keys [][2]string) error {
	for _, k := range keys {
		if f.rows[table] != nil {
			delete(f.rows[table][k[0]], k[1])
		}
	}
	return nil
}

func (f *fakeKV) Query(ctx context.Context, table, partitionKey string, sp *interfaces.SortKeyPredicate, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	var out []map[string]interface{}
	for _, row := range f.rows[table][partitionKey] {
		out = append(out, row)
	}
	return out, interfaces.Page{}, nil
}

func (f *fakeKV) QueryIndex(ctx context.Context, table, index, partitionKey string, sp *interfaces.SortKeyPredicate, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	return f.Query(ctx, table, partitionKey, sp, page, limit)
}

func (f *fakeKV) Scan(ctx context.Context, table string, page interfaces.Page, limit int) ([]map[string]interface{}, interfaces.Page, error) {
	var out []map[string]interface{}
	for _, partition := range f.rows[table] {
		for _, row := range partition {
			out = append(out, row)
		}
	}
	return out, interfaces.Page{}, nil
}

func TestComputeThreshold_ClampsToBounds(t *testing.T) {
	assert.InDelta(t, MaxThreshold, ComputeThreshold(0.7), 1e-9)
	assert.InDelta(t, MinThreshold, ComputeThreshold(0.0), 1e-9)
	assert.InDelta(t, 0.42, ComputeThreshold(0.32), 1e-9)
}

func TestNotifier_StandingQueryFiresOnceOnly(t *testing.T) {
	kv := newFakeKV()
	vec := &fakeVector{}
	email := &fakeEmail{fail: map[string]bool{}}
	n := New(vec, kv, email, &fakeEmbedder{}, "default@example.com")
	n.now = func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, kv.Put(context.Background(), usersTable, "u1", "u1", &types.User{UserID: "u1", Email: "student@example.com"}))

	// scenario 1: instructor answer is the only match, score 0.7.
	vec.hits = []interfaces.VectorHit{{ID: "ans1#0", Score: 0.7, RootID: "p1", Title: "Midterm time?"}}
	sq, err := n.Register(context.Background(), "u1", "cs101", "midterm 1 time", "CS 101")
	require.NoError(t, err)
	assert.InDelta(t, MaxThreshold, sq.NotificationThreshold, 1e-9)
	assert.Equal(t, initialSearchWidth, sq.MaxNotifications)

	vec.hits = []interfaces.VectorHit{
		{ID: "ans1#0", Score: 0.5, RootID: "p1", Title: "Midterm time?"},
	}
	sent, err := n.runOne(context.Background(), sq)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "student@example.com", email.sent[0].to)
	assert.Equal(t, "GP-TA found a relevant post for CS 101", email.sent[0].subject)

	var updated types.StandingQuery
	ok, err := kv.Get(context.Background(), standingQueriesTable, sq.UserID, sq.SortKey(), &updated)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, initialSearchWidth+1, updated.MaxNotifications)

	sent, err = n.runOne(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, email.sent, 1)
}

func TestNotifier_SkipsBelowThreshold(t *testing.T) {
	kv := newFakeKV()
	vec := &fakeVector{hits: []interfaces.VectorHit{{ID: "c1", Score: 0.2, RootID: "p1", Title: "low score"}}}
	email := &fakeEmail{}
	n := New(vec, kv, email, &fakeEmbedder{}, "default@example.com")

	sq := types.StandingQuery{UserID: "u1", CourseID: "cs101", Query: "q", CourseDisplayName: "CS 101", NotificationThreshold: 0.45, MaxNotifications: 3}
	sent, err := n.runOne(context.Background(), sq)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, email.sent)
}

func TestNotifier_FallsBackToDefaultRecipient(t *testing.T) {
	kv := newFakeKV()
	vec := &fakeVector{hits: []interfaces.VectorHit{{ID: "c1", Score: 0.9, RootID: "p1", Title: "hit"}}}
	email := &fakeEmail{}
	n := New(vec, kv, email, &fakeEmbedder{}, "default@example.com")

	sq := types.StandingQuery{UserID: "unknown-user", CourseID: "cs101", Query: "q", CourseDisplayName: "CS 101", NotificationThreshold: 0.45, MaxNotifications: 3}
	_, err := n.runOne(context.Background(), sq)
	require.NoError(t, err)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "default@example.com", email.sent[0].to)
}

func TestNotifier_EmailFailureSkipsSentWrite(t *testing.T) {
	kv := newFakeKV()
	vec := &fakeVector{hits: []interfaces.VectorHit{{ID: "fails-chunk", Score: 0.9, RootID: "p1", Title: "fails-chunk"}}}
	email := &fakeEmail{fail: map[string]bool{"fails-chunk": true}}
	n := New(vec, kv, email, &fakeEmbedder{}, "default@example.com")

	sq := types.StandingQuery{UserID: "u1", CourseID: "cs101", Query: "q", CourseDisplayName: "CS 101", NotificationThreshold: 0.45, MaxNotifications: 3}
	sent, err := n.runOne(context.Background(), sq)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, email.sent)

	rows, err := n.sentChunkRows(context.Background(), sq)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNotifier_DeregisterCascadesSentNotifications(t *testing.T) {
	kv := newFakeKV()
	n := New(&fakeVector{}, kv, &fakeEmail{}, &fakeEmbedder{}, "default@example.com")
	sq := types.StandingQuery{UserID: "u1", CourseID: "cs101", Query: "q"}

	require.NoError(t, kv.Put(context.Background(), standingQueriesTable, sq.UserID, sq.SortKey(), &sq))
	require.NoError(t, kv.Put(context.Background(), sentNotificationsTable, sq.NotificationKey(), "c1", &types.SentNotification{
		UserID: sq.UserID, CourseID: sq.CourseID, Query: sq.Query, ChunkID: "c1",
	}))

	require.NoError(t, n.Deregister(context.Background(), sq))

	rows, err := n.sentChunkRows(context.Background(), sq)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var out types.StandingQuery
	found, err := kv.Get(context.Background(), standingQueriesTable, sq.UserID, sq.SortKey(), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

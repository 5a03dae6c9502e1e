package forum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c, err := New(5 * time.Second)
	require.NoError(t, err)
	c.baseURL = srv.URL
	return c, srv
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, result interface{}) {
	t.Helper()
	b, err := json.Marshal(result)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"result":` + string(b) + `}`))
}

func TestClient_AuthenticateSetsCookie(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "abc123"})
		writeEnvelope(t, w, map[string]string{})
	})
	defer srv.Close()

	err := c.Authenticate(context.Background(), "student@example.com", "hunter2")
	require.NoError(t, err)
}

func TestClient_ListPostIDs(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, map[string]interface{}{
			"feed": []map[string]string{{"id": "p1"}, {"id": "p2"}},
		})
	})
	defer srv.Close()

	ids, err := c.ListPostIDs(context.Background(), "cs101")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestClient_FetchPost_DecodesNestedTree(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, map[string]interface{}{
			"id": "p1", "type": "question", "nr": 7, "created": "2026-07-01T00:00:00Z",
			"config": map[string]bool{"is_announcement": true},
			"history": []map[string]string{
				{"subject": "When is midterm?", "content": "<p>asking</p>", "created": "2026-07-01T00:00:00Z", "uid": "u1"},
			},
			"tag_endorse": []map[string]bool{{"admin": true}},
			"change_log":  []map[string]string{{"type": "create", "cid": "c1"}},
			"children": []map[string]interface{}{
				{
					"id": "c1", "type": "i_answer",
					"history": []map[string]string{{"subject": "", "content": "Friday.", "created": "2026-07-01T01:00:00Z", "uid": "u2"}},
				},
			},
		})
	})
	defer srv.Close()

	node, err := c.FetchPost(context.Background(), "cs101", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", node.ID)
	assert.Equal(t, 7, node.PostNumber)
	assert.True(t, node.IsAnnouncement)
	require.Len(t, node.History, 1)
	assert.Equal(t, "When is midterm?", node.History[0].Subject)
	require.Len(t, node.TagEndorse, 1)
	assert.True(t, node.TagEndorse[0].Admin)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "Friday.", node.Children[0].History[0].Content)
}

func TestClient_ResolveUserName_EmptyIDIsAnonymous(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call the forum for an empty user id")
	})
	defer srv.Close()

	name, err := c.ResolveUserName(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", name)
}

func TestClient_ResolveUserName_FallsBackWhenNameMissing(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, map[string]string{})
	})
	defer srv.Close()

	name, err := c.ResolveUserName(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, "Unknown User", name)
}

func TestClient_RetriesOn5xxThenFails(t *testing.T) {
	calls := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.ListPostIDs(context.Background(), "cs101")
	require.Error(t, err)
	assert.Equal(t, c.maxRetries+1, calls)
}

func TestClient_ErrorEnvelopePropagates(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"bad session"}}`))
	})
	defer srv.Close()

	err := c.Authenticate(context.Background(), "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad session")
}

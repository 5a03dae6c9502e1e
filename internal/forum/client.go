// Package forum implements C5's ForumClient collaborator: a thin HTTP
// client over the forum's private JSON-RPC-shaped API (authenticate, list a
// course's post ids, fetch one post's full tree, resolve a user id to a
// display name).
package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const defaultBaseURL = "https://piazza.com/logic/api"

// Client is a net/http + cookiejar client for the forum's private API.
// Authentication is session-cookie based: a successful Authenticate call
// populates the jar, and every later call rides on the same cookies.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// New builds a Client. timeout bounds every individual request.
func New(timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("forum: create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
		maxRetries: 3,
	}, nil
}

var _ interfaces.ForumClient = (*Client)(nil)

type rpcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
}

// call POSTs one JSON-RPC-shaped request and decodes its result field into
// out. Retries transient HTTP failures up to maxRetries times with a short
// linear backoff.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("forum: encode %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"?method="+method, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("forum: build %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("forum: %s returned status %d", method, resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("forum: %s returned status %d", method, resp.StatusCode)
		}

		var env rpcEnvelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("forum: decode %s envelope: %w", method, err)
		}
		if env.Error != nil {
			return fmt.Errorf("forum: %s: %s", method, env.Error.Message)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(env.Result, out)
	}
	return fmt.Errorf("forum: %s failed after %d attempts: %w", method, c.maxRetries+1, lastErr)
}

// Authenticate logs in via the forum's user.login method. A successful call
// leaves the session cookie in the client's jar for every later request.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	return c.call(ctx, "user.login", map[string]string{
		"email": username, "password": password,
	}, nil)
}

type feedPost struct {
	ID string `json:"id"`
}

type feedResult struct {
	Feed []feedPost `json:"feed"`
}

// ListPostIDs lists every post id in a course via network.get_all_content,
// the full-backfill scraper's enumeration mode.
func (c *Client) ListPostIDs(ctx context.Context, courseID string) ([]string, error) {
	var result feedResult
	if err := c.call(ctx, "network.get_all_content", map[string]interface{}{
		"nid": courseID, "config": "search",
	}, &result); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Feed))
	for _, p := range result.Feed {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

type wireHistoryEntry struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
	Created string `json:"created"`
	UID     string `json:"uid"`
}

type wireChangeLogEntry struct {
	Type     string `json:"type"`
	ChangeID string `json:"cid"`
}

type wireTagEndorse struct {
	Admin bool `json:"admin"`
}

type wireConfig struct {
	IsAnnouncement bool `json:"is_announcement"`
}

type wirePostNode struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	History    []wireHistoryEntry   `json:"history"`
	Children   []wirePostNode       `json:"children"`
	ChangeLog  []wireChangeLogEntry `json:"change_log"`
	TagEndorse []wireTagEndorse     `json:"tag_endorse"`
	PostNumber int                  `json:"nr"`
	Created    string               `json:"created"`
	Config     wireConfig           `json:"config"`
}

func (w wirePostNode) toDomain() *interfaces.PostNode {
	node := &interfaces.PostNode{
		ID: w.ID, Type: w.Type, PostNumber: w.PostNumber, Created: w.Created,
		IsAnnouncement: w.Config.IsAnnouncement,
	}
	for _, h := range w.History {
		node.History = append(node.History, interfaces.HistoryEntry{
			Subject: h.Subject, Content: h.Content, Created: h.Created, UserID: h.UID,
		})
	}
	for _, cl := range w.ChangeLog {
		node.ChangeLog = append(node.ChangeLog, interfaces.ChangeLogEntry{Type: cl.Type, ChangeID: cl.ChangeID})
	}
	for _, te := range w.TagEndorse {
		node.TagEndorse = append(node.TagEndorse, interfaces.TagEndorse{Admin: te.Admin})
	}
	for _, child := range w.Children {
		node.Children = append(node.Children, child.toDomain())
	}
	return node
}

// FetchPost fetches one post's full tree via content.get.
func (c *Client) FetchPost(ctx context.Context, courseID, postID string) (*interfaces.PostNode, error) {
	var wire wirePostNode
	if err := c.call(ctx, "content.get", map[string]interface{}{
		"nid": courseID, "cid": postID,
	}, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

type userProfile struct {
	Name string `json:"name"`
}

// ResolveUserName resolves a user id to a display name via
// content.get_user_profile, used to attribute anonymized post authors.
func (c *Client) ResolveUserName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "Anonymous", nil
	}
	var profile userProfile
	if err := c.call(ctx, "content.get_user_profile", map[string]string{"user_id": userID}, &profile); err != nil {
		return "", err
	}
	if profile.Name == "" {
		return "Unknown User", nil
	}
	return profile.Name, nil
}

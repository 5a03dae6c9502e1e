package interfaces

import "context"

// HistoryEntry is one revision of a post or child node's content.
type HistoryEntry struct {
	Subject string
	Content string
	Created string // ISO-8601, as returned by the forum; normalization happens in internal/blob
	UserID  string
}

// ChangeLogEntry is one entry in a post's change_log, identifying what kind
// of edit happened and which node (by change-id) it touched.
type ChangeLogEntry struct {
	Type     string
	ChangeID string
}

// TagEndorse is one endorsement tag on a child node.
type TagEndorse struct {
	Admin bool
}

// PostNode is a node in the recursively-nested post tree (root question or
// a descendant reply): history[], children[], change_log[] (root only),
// tag_endorse[], nr, created, config.is_announcement (root only).
type PostNode struct {
	ID             string
	Type           string
	History        []HistoryEntry
	Children       []*PostNode
	ChangeLog      []ChangeLogEntry
	TagEndorse     []TagEndorse
	PostNumber     int
	Created        string
	IsAnnouncement bool
}

// ForumClient is C5's collaborator: authenticate, list posts in a course,
// fetch one post's full tree, resolve a user id to a display name.
type ForumClient interface {
	Authenticate(ctx context.Context, username, password string) error
	ListPostIDs(ctx context.Context, courseID string) ([]string, error)
	FetchPost(ctx context.Context, courseID, postID string) (*PostNode, error)
	ResolveUserName(ctx context.Context, userID string) (string, error)
}

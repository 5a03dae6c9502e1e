// Package blob implements recursive decomposition of a forum post tree into
// an ordered list of typed Blob records, root first, then depth-first across
// children.
package blob

import (
	"context"
	"time"

	"github.com/dfroberg/coursepilot/internal/textproc"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// Extractor turns a forum PostNode tree into blobs. It caches user-id →
// display-name lookups for its own lifetime (one call to Extract), mirroring
// PiazzaDataExtractor's per-request person_name_cache.
type Extractor struct {
	forum interfaces.ForumClient
	cache map[string]string
}

// NewExtractor creates an Extractor bound to a forum client used only for
// author-name resolution.
func NewExtractor(forum interfaces.ForumClient) *Extractor {
	return &Extractor{forum: forum, cache: map[string]string{}}
}

// Extract walks post depth-first and returns the ordered blob list: the root
// question first, then a DFS of its children.
func (e *Extractor) Extract(ctx context.Context, post *interfaces.PostNode) []types.Blob {
	e.cache = map[string]string{}

	root := e.rootBlob(ctx, post)
	blobs := []types.Blob{root}
	blobs = append(blobs, e.extractChildren(ctx, post.Children, root.RootID, root.Title, root.ID, root.RootPostNum)...)
	return blobs
}

func (e *Extractor) rootBlob(ctx context.Context, post *interfaces.PostNode) types.Blob {
	history := firstHistory(post.History)
	title := history.Subject
	return types.Blob{
		ID:          post.ID,
		ParentID:    post.ID,
		RootID:      post.ID,
		RootPostNum: post.PostNumber,
		Type:        types.BlobType(defaultString(post.Type, string(types.BlobQuestion))),
		Title:       title,
		Content:     textproc.Clean(history.Content),
		Date:        normalizeDate(history.Created),
		AuthorID:    defaultString(history.UserID, "anonymous"),
		AuthorName:  e.authorName(ctx, history.UserID),
		Endorsement: types.EndorsementNA,
	}
}

func (e *Extractor) extractChildren(
	ctx context.Context, children []*interfaces.PostNode, rootID, rootTitle, parentID string, rootPostNum int,
) []types.Blob {
	var blobs []types.Blob
	for _, child := range children {
		history := firstHistory(child.History)

		content := history.Content
		if content == "" {
			// Discussion replies (followup/feedback) stash their text in the
			// subject field on the wire, a forum quirk.
			content = lastNodeSubject(child)
		}

		blobType := types.BlobType(child.Type)
		b := types.Blob{
			ID:          child.ID,
			ParentID:    parentID,
			RootID:      rootID,
			RootPostNum: rootPostNum,
			Type:        blobType,
			Title:       rootTitle,
			Content:     textproc.Clean(content),
			Date:        normalizeDate(defaultString(history.Created, child.Created)),
			AuthorID:    defaultString(history.UserID, "anonymous"),
			AuthorName:  e.authorName(ctx, history.UserID),
			Endorsement: endorsementFor(blobType, child.TagEndorse),
		}
		blobs = append(blobs, b)
		blobs = append(blobs, e.extractChildren(ctx, child.Children, rootID, rootTitle, b.ID, rootPostNum)...)
	}
	return blobs
}

// authorName resolves userID to a display name, caching within this
// extraction pass. Empty id -> "Anonymous"; unknown id -> "Unknown User".
func (e *Extractor) authorName(ctx context.Context, userID string) string {
	if userID == "" {
		return "Anonymous"
	}
	if name, ok := e.cache[userID]; ok {
		return name
	}
	name, err := e.forum.ResolveUserName(ctx, userID)
	if err != nil || name == "" {
		name = "Unknown User"
	}
	e.cache[userID] = name
	return name
}

// endorsementFor reports endorsement state: only s_answer blobs can be
// yes/no; every other type is n/a. yes requires an admin-tagged endorsement.
func endorsementFor(blobType types.BlobType, tags []interfaces.TagEndorse) types.Endorsement {
	if blobType != types.BlobSAnswer {
		return types.EndorsementNA
	}
	for _, tag := range tags {
		if tag.Admin {
			return types.EndorsementYes
		}
	}
	return types.EndorsementNo
}

func firstHistory(history []interfaces.HistoryEntry) interfaces.HistoryEntry {
	if len(history) == 0 {
		return interfaces.HistoryEntry{}
	}
	return history[0]
}

// lastNodeSubject returns the subject of a node's first history entry, the
// text carrier used by discussion replies.
func lastNodeSubject(node *interfaces.PostNode) string {
	history := firstHistory(node.History)
	return history.Subject
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// normalizeDate parses an ISO-8601 timestamp (with or without trailing Z),
// attaching UTC when naive. An unparseable or empty value yields the zero
// time; callers treat that as "no usable date" rather than failing the blob.
func normalizeDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

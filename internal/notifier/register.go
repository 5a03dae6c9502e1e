// Package notifier implements C10: per-standing-query vector search,
// threshold gating, at-most-once email delivery, and counter maintenance.
package notifier

import (
	"context"
	"fmt"

	"github.com/dfroberg/coursepilot/internal/types"
)

const (
	standingQueriesTable   = "standing_queries"
	sentNotificationsTable = "sent_notifications"
	usersTable             = "users"

	// MinThreshold and MaxThreshold bound notification_threshold per the
	// registration invariant: notification_threshold in [0.38, 0.45].
	MinThreshold   = 0.38
	MaxThreshold   = 0.45
	thresholdAdder = 0.1

	// initialSearchWidth is the starting value of max_notifications for a
	// freshly registered standing query: both the first run's vector search
	// width and the lifetime-sent counter.
	initialSearchWidth = 3
)

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ComputeThreshold implements the registration-time threshold math:
// threshold = clamp(s + 0.1, MIN=0.38, MAX=0.45).
func ComputeThreshold(closestScore float64) float64 {
	return clamp(closestScore+thresholdAdder, MinThreshold, MaxThreshold)
}

// Register creates a standing query for (userID, courseID, query), computing
// its registration threshold from the query's current top-1 similarity in
// the course's vector index. Re-registering an existing (user, course,
// query) is idempotent: it overwrites the prior row with a freshly computed
// threshold and resets the search-width counter.
func (n *Notifier) Register(ctx context.Context, userID, courseID, query, courseDisplayName string) (types.StandingQuery, error) {
	embedding, err := n.embedder.Embed(ctx, query)
	if err != nil {
		return types.StandingQuery{}, fmt.Errorf("notifier: embed registration query: %w", err)
	}
	hits, err := n.vector.Search(ctx, vectorNamespace, 1, courseID, embedding)
	if err != nil {
		return types.StandingQuery{}, fmt.Errorf("notifier: registration search: %w", err)
	}

	var closest float64
	if len(hits) > 0 {
		closest = hits[0].Score
	}

	sq := types.StandingQuery{
		UserID:                userID,
		CourseID:              courseID,
		Query:                 query,
		CourseDisplayName:     courseDisplayName,
		ClosestScore:          closest,
		NotificationThreshold: ComputeThreshold(closest),
		MaxNotifications:      initialSearchWidth,
	}
	if err := n.kv.Put(ctx, standingQueriesTable, sq.UserID, sq.SortKey(), &sq); err != nil {
		return types.StandingQuery{}, fmt.Errorf("notifier: persist standing query: %w", err)
	}
	return sq, nil
}

// Deregister removes a standing query and cascades deletion to every
// SentNotification row recorded under it.
func (n *Notifier) Deregister(ctx context.Context, sq types.StandingQuery) error {
	sent, err := n.sentChunkRows(ctx, sq)
	if err != nil {
		return fmt.Errorf("notifier: load sent rows for cascade delete: %w", err)
	}
	keys := make([][2]string, 0, len(sent)+1)
	for _, row := range sent {
		keys = append(keys, [2]string{sq.NotificationKey(), row.ChunkID})
	}
	if len(keys) > 0 {
		if err := n.kv.BatchDelete(ctx, sentNotificationsTable, keys); err != nil {
			return fmt.Errorf("notifier: cascade delete sent notifications: %w", err)
		}
	}
	return n.kv.BatchDelete(ctx, standingQueriesTable, [][2]string{{sq.UserID, sq.SortKey()}})
}

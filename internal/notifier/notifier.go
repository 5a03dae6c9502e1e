package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dfroberg/coursepilot/internal/common"
	"github.com/dfroberg/coursepilot/internal/tracing"
	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

const vectorNamespace = "piazza"

// Notifier runs the scheduled notification sweep: per active standing
// query, search for newly-relevant chunks, gate on score/sent-set, and
// email at most once per (user, course, query, chunk).
type Notifier struct {
	vector           interfaces.VectorStore
	kv               interfaces.KVStore
	email            interfaces.EmailSender
	embedder         interfaces.Embedder
	defaultRecipient string
	now              func() time.Time
}

// New builds a Notifier. defaultRecipient is the SES_RECP_EMAIL fallback
// used when a standing query's user record has no email on file.
func New(vector interfaces.VectorStore, kv interfaces.KVStore, email interfaces.EmailSender, embedder interfaces.Embedder, defaultRecipient string) *Notifier {
	return &Notifier{vector: vector, kv: kv, email: email, embedder: embedder, defaultRecipient: defaultRecipient, now: time.Now}
}

// Run scans every active standing query and processes it sequentially.
// Multiple runs never overlap (scheduled singleton); a single standing
// query's failure is logged and does not block the others.
func (n *Notifier) Run(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "notifier", "run")
	defer span.End()

	queries, err := n.loadStandingQueries(ctx)
	if err != nil {
		return fmt.Errorf("notifier: scan standing queries: %w", err)
	}
	if len(queries) == 0 {
		common.PipelineInfo(ctx, "notifier", "no_standing_queries", nil)
		return nil
	}

	total := 0
	for _, sq := range queries {
		sent, err := n.runOne(ctx, sq)
		if err != nil {
			common.PipelineWarn(ctx, "notifier", "run_one_failed", map[string]interface{}{
				"user_id": sq.UserID, "course_id": sq.CourseID, "query": sq.Query, "error": err.Error(),
			})
			continue
		}
		total += sent
	}
	common.PipelineInfo(ctx, "notifier", "sweep_complete", map[string]interface{}{"sent": total})
	return nil
}

// runOne implements the six-step per-standing-query algorithm and returns
// the number of emails sent this run.
func (n *Notifier) runOne(ctx context.Context, sq types.StandingQuery) (int, error) {
	to, err := n.resolveEmail(ctx, sq.UserID)
	if err != nil {
		return 0, err
	}

	embedding, err := n.embedder.Embed(ctx, sq.Query)
	if err != nil {
		return 0, fmt.Errorf("embed standing query: %w", err)
	}
	topK := sq.MaxNotifications
	if topK <= 0 {
		topK = initialSearchWidth
	}
	hits, err := n.vector.Search(ctx, vectorNamespace, topK, sq.CourseID, embedding)
	if err != nil {
		return 0, fmt.Errorf("search: %w", err)
	}

	sentChunks, err := n.sentChunkSet(ctx, sq)
	if err != nil {
		return 0, fmt.Errorf("load sent set: %w", err)
	}

	var sentThisRun []types.SentNotification
	for _, hit := range hits {
		if hit.Score < sq.NotificationThreshold {
			continue
		}
		if sentChunks[hit.ID] {
			continue
		}
		if err := n.sendOne(ctx, sq, to, hit); err != nil {
			common.PipelineWarn(ctx, "notifier", "send_failed", map[string]interface{}{
				"user_id": sq.UserID, "course_id": sq.CourseID, "chunk_id": hit.ID, "error": err.Error(),
			})
			continue
		}
		sentThisRun = append(sentThisRun, types.SentNotification{
			UserID: sq.UserID, CourseID: sq.CourseID, Query: sq.Query, ChunkID: hit.ID,
		})
	}

	if len(sentThisRun) == 0 {
		return 0, nil
	}
	if err := n.persistSent(ctx, sq, sentThisRun); err != nil {
		return 0, fmt.Errorf("persist sent notifications: %w", err)
	}
	return len(sentThisRun), nil
}

func (n *Notifier) sendOne(ctx context.Context, sq types.StandingQuery, to string, hit interfaces.VectorHit) error {
	subject := fmt.Sprintf("GP-TA found a relevant post for %s", sq.CourseDisplayName)
	postURL := fmt.Sprintf("https://piazza.com/class/%s/post/%s", sq.CourseID, hit.RootID)
	text, html := renderNotification(sq, hit, postURL)
	return n.email.Send(ctx, to, subject, text, html)
}

// persistSent writes the "sent this run" batch and bumps max_notifications
// by the number sent. max_notifications grows monotonically: it is both the
// next run's search width and a lifetime sent count.
func (n *Notifier) persistSent(ctx context.Context, sq types.StandingQuery, sent []types.SentNotification) error {
	items := make([]interfaces.KVItem, 0, len(sent))
	for _, s := range sent {
		items = append(items, interfaces.KVItem{PartitionKey: sq.NotificationKey(), SortKey: s.ChunkID, Value: s})
	}
	if err := n.kv.BatchPut(ctx, sentNotificationsTable, items); err != nil {
		return err
	}

	sq.MaxNotifications += len(sent)
	return n.kv.Put(ctx, standingQueriesTable, sq.UserID, sq.SortKey(), &sq)
}

func (n *Notifier) resolveEmail(ctx context.Context, userID string) (string, error) {
	var user types.User
	found, err := n.kv.Get(ctx, usersTable, userID, userID, &user)
	if err != nil {
		return "", err
	}
	if found && user.Email != "" {
		return user.Email, nil
	}
	return n.defaultRecipient, nil
}

func (n *Notifier) loadStandingQueries(ctx context.Context) ([]types.StandingQuery, error) {
	var all []types.StandingQuery
	page := interfaces.Page{}
	for {
		rows, next, err := n.kv.Scan(ctx, standingQueriesTable, page, 200)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var sq types.StandingQuery
			if err := decodeRow(row, &sq); err != nil {
				continue
			}
			all = append(all, sq)
		}
		if next.Token == "" {
			break
		}
		page = next
	}
	return all, nil
}

func (n *Notifier) sentChunkRows(ctx context.Context, sq types.StandingQuery) ([]types.SentNotification, error) {
	var all []types.SentNotification
	page := interfaces.Page{}
	for {
		rows, next, err := n.kv.Query(ctx, sentNotificationsTable, sq.NotificationKey(), nil, page, 200)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var s types.SentNotification
			if err := decodeRow(row, &s); err != nil {
				continue
			}
			all = append(all, s)
		}
		if next.Token == "" {
			break
		}
		page = next
	}
	return all, nil
}

func (n *Notifier) sentChunkSet(ctx context.Context, sq types.StandingQuery) (map[string]bool, error) {
	rows, err := n.sentChunkRows(ctx, sq)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[r.ChunkID] = true
	}
	return set, nil
}

func decodeRow(row map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
